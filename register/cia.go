package register

// CIA wraps Bus with the peripheral and timer registers used for drive
// selection, motor control, head stepping and write-protect/disk-change
// sensing (original_source/.../floppy.c portBout/movehead/writeprotect/
// disk_changed/connected).
type CIA struct {
	Bus Bus
}

// portBOut sets or clears bits in PRBB, matching original_source's
// portBout(): BSET ORs the mask in, BCLR ANDs its complement out.
func (c CIA) portBOut(setclr byte, mask byte) {
	cur := c.Bus.ReadByte(AddrPRBB)
	if setclr == BSET {
		c.Bus.WriteByte(AddrPRBB, cur|mask)
	} else {
		c.Bus.WriteByte(AddrPRBB, cur&^mask)
	}
}

// SelectDrive sets (assert=true) or clears (assert=false) the PRBB
// drive-select bit for the given drive index. The select lines are
// active low, so assert=false is the call that selects the drive and
// assert=true releases it.
func (c CIA) SelectDrive(drive int, assert bool) {
	if assert {
		c.portBOut(BSET, SelectMask(drive))
	} else {
		c.portBOut(BCLR, SelectMask(drive))
	}
}

// MotorOn/MotorOff drive the shared motor line. On real hardware the motor
// line is latched per-drive through the select lines (see start_motor in
// original_source): release select, clear/set DSK_MOTOR, then select the
// drive so it latches the motor level. MotorOn leaves the drive selected;
// MotorOff releases select again afterwards.
func (c CIA) MotorOn(drive int) {
	sel := SelectMask(drive)
	c.portBOut(BSET, sel)
	c.portBOut(BCLR, DskMotor)
	c.portBOut(BCLR, sel)
}

func (c CIA) MotorOff(drive int) {
	sel := SelectMask(drive)
	c.portBOut(BSET, DskMotor|sel)
	c.portBOut(BCLR, sel)
	c.portBOut(BSET, sel)
}

// SetSide selects head 0 or 1 on the currently-selected drive.
func (c CIA) SetSide(side int) {
	if side == 0 {
		c.portBOut(BSET, DskSide)
	} else {
		c.portBOut(BCLR, DskSide)
	}
}

// StepPulse pulses the step line once in the given direction (dir>0 steps
// toward higher cylinders), matching original_source's movehead().
func (c CIA) StepPulse(drive int, dir int) {
	c.portBOut(BCLR, SelectMask(drive))
	if dir > 0 {
		c.portBOut(BCLR, DskDirec)
	} else {
		c.portBOut(BSET, DskDirec)
	}
	c.portBOut(BCLR, DskStep)
	c.portBOut(BSET, DskStep) // active-low pulse
}

// WriteProtected reads the write-protect sense line.
func (c CIA) WriteProtected() bool {
	return c.Bus.ReadByte(AddrPRAA)&DskWriteProt == 0
}

// DiskChanged reads the disk-change sense line. Reading does not clear
// it; the drive clears its latch when it receives a step pulse.
func (c CIA) DiskChanged() bool {
	return c.Bus.ReadByte(AddrPRAA)&DskChange == 0
}

// Ready reads the drive-ready sense line, used by the connected() probe.
func (c CIA) Ready() bool {
	return c.Bus.ReadByte(AddrPRAA)&DskReady != 0
}

// StepTimer wraps the CIA-B timer B registers used to clock head-stepping
// pulses once per programmed interval (original_source's TBLOB/TBHIB/CRBB).
type StepTimer struct {
	Bus Bus
}

// Program loads the timer's countdown value (in CIA clock ticks).
func (t StepTimer) Program(rate uint16) {
	t.Bus.WriteByte(AddrTBLOB, byte(rate&0xFF))
	t.Bus.WriteByte(AddrTBHIB, byte(rate>>8))
}

// Start arms the timer for continuous (reloading) operation.
func (t StepTimer) Start() {
	t.Bus.WriteByte(AddrCRBB, 0x11)
}

// Stop halts the timer.
func (t StepTimer) Stop() {
	t.Bus.WriteByte(AddrCRBB, 0x00)
}
