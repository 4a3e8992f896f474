package simdisk

import (
	"sync"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/register"
)

// NumDrives is simdisk's own drive-bay count. Kept independent of
// floppy.NumDrives (same value, 4) to avoid simdisk importing floppy —
// floppy's tests import simdisk, never the reverse.
const NumDrives = 4

type driveState struct {
	present  bool
	medium   *Medium
	cyl      int
	changed  bool // disk-change sense latch, cleared by a step pulse
	rotation int  // word offset a captured raw read currently starts at
}

// Bus is a register.Bus backed by up to NumDrives virtual Medium values.
// Like i2ctest.Record/Playback (_examples/google-periph/conn/i2c/i2ctest),
// it is a mutex-protected fake standing in for the real hardware
// interface — but unlike a pure record/playback fake it actually
// simulates the chip: register state, head stepping, side/motor sense
// lines, and word-granular DMA transfers against each drive's Medium.
type Bus struct {
	events *kernel.Events
	wake   *kernel.Rendezvous

	mu       sync.Mutex
	drives   [NumDrives]*driveState
	selected int

	dsksync uint16
	adkcon  uint16
	dmacon  uint16
	prbb    byte
	tblo    byte
	tbhi    byte
	crbb    byte
}

// NewBus returns a Bus that posts DMA completion to events/wake — the
// same pair passed to floppy.New, so this simulated interrupt source
// drives the dispatcher exactly as a real one would. Drive 0 starts
// present with no medium inserted (an empty internal drive bay); drives
// 1-3 start disconnected until Connect or Insert is called.
func NewBus(events *kernel.Events, wake *kernel.Rendezvous) *Bus {
	b := &Bus{events: events, wake: wake, prbb: 0xff}
	b.drives[0] = &driveState{present: true}
	for i := 1; i < NumDrives; i++ {
		b.drives[i] = &driveState{}
	}
	return b
}

// Connect simulates physically wiring up drive, present but empty.
func (b *Bus) Connect(drive int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drives[drive].present = true
}

// Insert simulates inserting medium m into drive, latching the
// disk-change sense line exactly as a real drive does on media swap.
func (b *Bus) Insert(drive int, m *Medium) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ds := b.drives[drive]
	ds.present = true
	ds.medium = m
	ds.changed = true
	ds.cyl = 0
	ds.rotation = 0
}

// Eject simulates removing the medium from drive.
func (b *Bus) Eject(drive int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ds := b.drives[drive]
	ds.medium = nil
	ds.changed = true
}

// Cylinder reports the drive's simulated current head position, for
// test assertions.
func (b *Bus) Cylinder(drive int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drives[drive].cyl
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

// WriteWord handles the Paula "funny register" set/clear convention: bit
// 15 of the written value selects whether the remaining set bits are
// being asserted (WSET) or cleared (WCLR), the rest of the register's
// bits are left alone — register.WSET/WCLR/WALL.
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
	b.mu.Lock()
	defer b.mu.Unlock()
	switch addr {
	case register.AddrPRAA:
		return b.praaLocked()
	case register.AddrPRBB:
		// CIA.portBOut does a read-modify-write through this call to
		// compute its set/clear mask against the real current state.
		return b.prbb
	case register.AddrTBLOB:
		return b.tblo
	case register.AddrTBHIB:
		return b.tbhi
	}
	return 0
}

// praaLocked computes the CIA-A peripheral data sense lines for whichever
// drive is currently selected, matching the exact bit polarities
// register.CIA's Ready/WriteProtected/DiskChanged already assume: Ready
// is active-high, Track0/WriteProt/DiskChange are active-low.
func (b *Bus) praaLocked() byte {
	dr := b.drives[b.selected]
	v := byte(0xff)
	if dr == nil || !dr.present {
		v &^= register.DskReady
	}
	if dr != nil && dr.cyl == 0 {
		v &^= register.DskTrack0
	}
	if dr == nil || dr.medium == nil || dr.medium.WriteProtected {
		v &^= register.DskWriteProt
	}
	if dr == nil || dr.medium == nil || dr.changed {
		v &^= register.DskChange
	}
	return v
}

// WriteByte handles PRBB (drive select/motor/side/direction/step lines)
// and the CIA-B step timer's control/countdown registers.
func (b *Bus) WriteByte(addr uint32, v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch addr {
	case register.AddrPRBB:
		prev := b.prbb
		b.prbb = v
		if d, ok := selectedLine(v); ok {
			b.selected = d
		}
		// A step pulse registers on its trailing (active-low release)
		// edge, matching CIA.StepPulse's BCLR-then-BSET DskStep pair.
		if prev&register.DskStep == 0 && v&register.DskStep != 0 {
			b.stepSelectedLocked(v&register.DskDirec == 0)
		}
	case register.AddrTBLOB:
		b.tblo = v
	case register.AddrTBHIB:
		b.tbhi = v
	case register.AddrCRBB:
		b.crbb = v
	}
}

// selectedLine reports which drive's select line is currently asserted
// (bit cleared — active low, matching probeConnected's SelectDrive(d,
// false)-then-sample-Ready sequence), if exactly one is.
func selectedLine(v byte) (int, bool) {
	for d := 0; d < NumDrives; d++ {
		if v&register.SelectMask(d) == 0 {
			return d, true
		}
	}
	return 0, false
}

func (b *Bus) stepSelectedLocked(forward bool) {
	dr := b.drives[b.selected]
	if dr == nil {
		return
	}
	if forward {
		if dr.cyl < mfm.NumCylinders-1 {
			dr.cyl++
		}
	} else if dr.cyl > 0 {
		dr.cyl--
	}
	dr.changed = false
}

func (b *Bus) currentSide() int {
	if b.prbb&register.DskSide != 0 {
		return 0
	}
	return 1
}

// DMAStart simulates one disk DMA transfer against the selected drive's
// Medium at its current cylinder/side. A read captures length words
// starting at the drive's simulated rotational position and wrapping
// around the track's BufSize-word circumference — the word-level
// rotation spec.md §3/§4.2 describes a real capture producing, which is
// exactly what trackio.reassemble is written to undo. A write copies the
// caller's already fully-laid-out track straight in, unrotated, matching
// trackio.WriteTrack always handing over slot.Buf from its own index 0.
//
// If no drive is selected or no medium is inserted, nothing is copied and
// no completion event is posted — engine.armWatchdog's timeout is what a
// real "track has no syncs at all" failure looks like, and this
// reproduces it rather than short-circuiting it.
func (b *Bus) DMAStart(ptr []uint16, length int, dir register.DMADirection) {
	b.mu.Lock()
	dr := b.drives[b.selected]
	side := b.currentSide()
	b.mu.Unlock()

	if dr == nil || dr.medium == nil {
		return
	}

	track := dr.medium.Track(dr.cyl, side)
	switch dir {
	case register.DMARead:
		rotateInto(ptr[:length], track, dr.rotation)
		dr.rotation = (dr.rotation + 1) % len(track)
	case register.DMAWrite:
		copy(track, ptr[:length])
	}

	b.events.Post(kernel.DMAReady)
	b.wake.Wake()
}

// DMAStop simulates disabling disk DMA at the controller.
func (b *Bus) DMAStop() {
	b.mu.Lock()
	b.dmacon &^= register.DiskDMAEnable
	b.mu.Unlock()
}

// rotateInto fills dst with len(dst) words from src starting at offset
// rot, wrapping around src's circumference as many times as necessary.
func rotateInto(dst, src []uint16, rot int) {
	n := len(src)
	for i := range dst {
		dst[i] = src[(rot+i)%n]
	}
}
