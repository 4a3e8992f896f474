package bridge

import (
	"sync"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/register"
)

// NumDrives matches floppy.NumDrives; bridge.Bus addresses units the same
// way simdisk.Bus does, purely by PRBB select-line bit position.
const NumDrives = 4

// device is the command surface bus.go needs from a connected adapter —
// satisfied by *Client, and small enough that bus_test.go can satisfy it
// with a fake instead of a real serial port.
type device interface {
	selectDrive(unit byte) error
	deselectDrive() error
	setMotor(unit byte, on bool) error
	setHead(head byte) error
	seek(cylinder byte) error
	readFlux() ([]byte, error)
	writeFlux(intervals []byte) error
	getPin(pin byte) (bool, error)
	SampleFreqHz() uint32
}

// IBM-PC floppy interface sense pins, per the 34-pin ribbon cable
// (original_source has no IBM-PC wiring table of its own — the Amiga side
// of this driver never runs over this bus — so these are the standard
// pin assignments every IBM-PC floppy cable uses).
const (
	pinDiskChange = 34
	pinTrack0     = 26
	pinWriteProt  = 28
)

// Bus is a register.Bus backed by a real Greaseweazle-class USB adapter.
// It mirrors simdisk.Bus's register-state bookkeeping (selected drive,
// PRBB shadow, per-drive cylinder) but turns each state change into an
// actual hardware command instead of updating a simulated Medium.
type Bus struct {
	dev device

	events *kernel.Events
	wake   *kernel.Rendezvous

	mu       sync.Mutex
	prbb     byte
	selected int
	motorOn  [NumDrives]bool
	cyl      [NumDrives]int
	side     int

	dsksync uint16
	adkcon  uint16
	dmacon  uint16
	tblo    byte
	tbhi    byte
	crbb    byte
}

// NewBus wraps dev (normally a *Client from Open) as a register.Bus, its
// DMA completions posted to the same events/wake pair floppy.New was
// given — identical wiring to simdisk.NewBus.
func NewBus(dev device, events *kernel.Events, wake *kernel.Rendezvous) *Bus {
	return &Bus{dev: dev, events: events, wake: wake, prbb: 0xff}
}

var _ register.Bus = (*Bus)(nil)

func (b *Bus) ReadWord(addr uint32) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch addr {
	case register.AddrADKCONR:
		return b.adkcon
	case register.AddrDMACONR:
		return b.dmacon
	case register.AddrDSKSYNC:
		return b.dsksync
	}
	return 0
}

// WriteWord only needs to track ADKCON/DMACON/DSKSYNC's logical state: the
// adapter has no equivalent registers of its own, and bit-exact precomp/
// sync-mode selection is implicit in how bus.go drives readFlux/writeFlux.
func (b *Bus) WriteWord(addr uint32, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch addr {
	case register.AddrDSKSYNC:
		b.dsksync = v
	case register.AddrADKCON:
		applyFunny(&b.adkcon, v)
	case register.AddrDMACON:
		applyFunny(&b.dmacon, v)
	}
}

func applyFunny(reg *uint16, v uint16) {
	bits := v &^ register.WSET
	if v&register.WSET != 0 {
		*reg |= bits
	} else {
		*reg &^= bits
	}
}

func (b *Bus) ReadByte(addr uint32) byte {
	switch addr {
	case register.AddrPRAA:
		return b.praa()
	case register.AddrPRBB:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.prbb
	case register.AddrTBLOB:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.tblo
	case register.AddrTBHIB:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.tbhi
	}
	return 0
}

// praa asks the adapter for the three sense pins PRAA exposes. Ready has
// no real IBM-PC equivalent (that line only exists on Shugart-bus
// drives); a selected drive that answers GET_PIN without error is taken
// to be ready, matching probeConnected's "select then sample" sequence
// closely enough for this driver's purposes.
func (b *Bus) praa() byte {
	v := byte(0xff)

	changed, err := b.dev.getPin(pinDiskChange)
	if err != nil {
		v &^= register.DskReady
	} else if changed {
		v &^= register.DskChange
	}
	if trk0, err := b.dev.getPin(pinTrack0); err == nil && trk0 {
		v &^= register.DskTrack0
	}
	if wprot, err := b.dev.getPin(pinWriteProt); err == nil && wprot {
		v &^= register.DskWriteProt
	}
	return v
}

// WriteByte handles PRBB (select/motor/side/direction/step) by diffing
// against the previous shadow value and issuing the matching adapter
// command for whichever line actually changed.
func (b *Bus) WriteByte(addr uint32, v byte) {
	switch addr {
	case register.AddrPRBB:
		b.writePRBB(v)
	case register.AddrTBLOB:
		b.mu.Lock()
		b.tblo = v
		b.mu.Unlock()
	case register.AddrTBHIB:
		b.mu.Lock()
		b.tbhi = v
		b.mu.Unlock()
	case register.AddrCRBB:
		b.mu.Lock()
		b.crbb = v
		b.mu.Unlock()
	}
}

func (b *Bus) writePRBB(v byte) {
	b.mu.Lock()
	prev := b.prbb
	b.prbb = v
	prevDrive, prevSelected := selectedLine(prev)
	drive, selected := selectedLine(v)
	prevMotor := prev&register.DskMotor == 0
	motor := v&register.DskMotor == 0
	side := 1
	if v&register.DskSide != 0 {
		side = 0
	}
	b.side = side
	stepEdge := prev&register.DskStep == 0 && v&register.DskStep != 0
	forward := v&register.DskDirec == 0
	if selected {
		b.selected = drive
	}
	b.mu.Unlock()

	if prevSelected && (!selected || drive != prevDrive) {
		b.dev.deselectDrive()
	}
	if selected && (!prevSelected || drive != prevDrive) {
		b.dev.selectDrive(byte(drive))
	}
	if selected {
		if motor != prevMotor || drive != prevDrive {
			b.dev.setMotor(byte(drive), motor)
		}
		b.dev.setHead(byte(side))
		b.mu.Lock()
		b.motorOn[drive] = motor
		b.mu.Unlock()
	}
	if selected && stepEdge {
		b.stepSelected(drive, forward)
	}
}

// selectedLine reports which drive's select line is asserted (active low),
// matching simdisk.Bus's own selectedLine.
func selectedLine(v byte) (int, bool) {
	for d := 0; d < NumDrives; d++ {
		if v&register.SelectMask(d) == 0 {
			return d, true
		}
	}
	return 0, false
}

// stepSelected advances bus.go's own belief about the head position and
// issues an absolute seek — the adapter has no relative step+direction
// pulse command, so every CIA-level step pulse this driver ever sends
// becomes one CMD_SEEK to the new absolute cylinder.
func (b *Bus) stepSelected(drive int, forward bool) {
	b.mu.Lock()
	cyl := b.cyl[drive]
	if forward {
		if cyl < mfm.NumCylinders-1 {
			cyl++
		}
	} else if cyl > 0 {
		cyl--
	}
	b.cyl[drive] = cyl
	b.mu.Unlock()

	b.dev.seek(byte(cyl))
}

// DMAStart reads or writes one full revolution against the selected
// drive's current cylinder/side, translating through the flux codec in
// bitstream.go/flux.go. A failed transfer posts no completion event,
// same as simdisk.Bus when no medium is present — engine.armWatchdog's
// timeout is what that looks like from trackio's side.
func (b *Bus) DMAStart(ptr []uint16, length int, dir register.DMADirection) {
	switch dir {
	case register.DMARead:
		b.dmaRead(ptr, length)
	case register.DMAWrite:
		b.dmaWrite(ptr, length)
	}
}

func (b *Bus) dmaRead(ptr []uint16, length int) {
	fluxData, err := b.dev.readFlux()
	if err != nil {
		return
	}
	transitions, err := decodeFluxTransitions(fluxData, b.dev.SampleFreqHz())
	if err != nil {
		return
	}
	bits := decodeTransitionsToRawBits(transitions)
	words := packBitsToWords(bits, length)
	copy(ptr[:length], words)

	b.events.Post(kernel.DMAReady)
	b.wake.Wake()
}

func (b *Bus) dmaWrite(ptr []uint16, length int) {
	bits := unpackWordsToBits(ptr[:length])
	mfmBytes := bitsToBytes(bits)

	transitions, err := GenerateFluxTransitions(mfmBytes, 250)
	if err != nil {
		return
	}
	transitions = CoverFullRotation(transitions, 250, 300)
	intervals := encodeFluxIntervals(transitions, b.dev.SampleFreqHz())
	if err := b.dev.writeFlux(intervals); err != nil {
		return
	}

	b.events.Post(kernel.DMAReady)
	b.wake.Wake()
}

// DMAStop has nothing to cancel on the adapter side: reads and writes are
// synchronous round trips inside DMAStart, so there is no in-flight
// transfer to abort.
func (b *Bus) DMAStop() {
	b.mu.Lock()
	b.dmacon &^= register.DiskDMAEnable
	b.mu.Unlock()
}
