// Package floppy is the driver's dispatcher: it owns one DriverContext per
// running instance, decides how a DISK_READ/DISK_WRITE/SCATTERED_IO
// request is carried out against the shared hardware, and reassembles
// the per-drive seek/motor/trackio orchestration original_source spread
// across do_rdwt/rdwt_track/seek/fd_timer into one place. Grounded on
// disk/usr/src/kernel/floppy.c's floppy_task and its helpers.
package floppy

import (
	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/motor"
	"github.com/rmichiels/amfloppy/register"
	"github.com/rmichiels/amfloppy/trackcache"
	"github.com/rmichiels/amfloppy/trackio"
)

// NumDrives is the maximum number of physical drives the controller
// addresses — original_source's NR_DRIVES.
const NumDrives = 4

// Config holds the boot-time parameters original_source read out of its
// transferdata args block ('r' and 't': step delay and CIA clock
// frequency), used to program the head-stepping timer rate.
type Config struct {
	ClockFreq int64 // CIA-B timer clock, Hz
	StepDelay int64 // microseconds allotted per step pulse
}

// seekRate reproduces original_source's "stat.seek_rate" computation:
// clock_freq/1000 * stepdelay/10000, the CIA timer countdown value. At
// ClockFreq Hz that count lasts StepDelay/10 microseconds (715909 Hz and
// a StepDelay of 3000 give 214 counts, about 300 microseconds).
func (c Config) seekRate() uint16 {
	return uint16(c.ClockFreq / 1000 * c.StepDelay / 10000)
}

const (
	settleDelay   = 4             // original_source's fixed seek_delay in seek()
	motorOnDelay  = kernel.HZ / 2 // MOTORON_DELAY
	motorOffDelay = 3 * kernel.HZ // MOTOROFF_DELAY; our Tick runs at the same
	// rate as the rest of the driver, so unlike original_source's fd_timer
	// (which runs at a coarser scheduler rate and divides this by 6 as a
	// documented HACK) we use the full HZ-relative value directly.
)

// drive is one physical drive's full owned state: its cache, its motor
// and stepper, and whether anything is actually plugged in.
type drive struct {
	slot    *trackcache.DriveSlot
	motor   *motor.Controller
	stepper *motor.Stepper
}

// DriverContext is the driver's entire mutable state, replacing
// original_source's file-scope "disk[NR_DRIVES]" array and friends with
// one owned, explicitly-constructed value (spec.md §9 "Global mutable
// state → owned driver context").
type DriverContext struct {
	cia    register.CIA
	engine *trackio.Engine
	clock  kernel.Clock
	events *kernel.Events
	wake   *kernel.Rendezvous
	addr   kernel.AddrSpace
	cfg    Config

	drives [NumDrives]*drive
}

// New builds a DriverContext over the given hardware Bus and external
// collaborators, probing each drive for whether it's actually connected
// (original_source's connected()) and, for each one that is, allocating
// and formatting its track buffer exactly as floppy_task's init loop
// does (build_track, then motor_off).
//
// events/wake are constructed by the caller, not New, because a Bus that
// can complete a DMA transfer asynchronously (simdisk.Bus, bridge.Bus)
// must post kernel.DMAReady to the very same event word Engine waits on
// — original_source's hardware interrupt and this driver's dispatcher
// share one event_flags word, and a simulated or real interrupt source
// has to exist and be wired to it before the Bus is even constructed.
func New(bus register.Bus, addr kernel.AddrSpace, clock kernel.Clock, events *kernel.Events, wake *kernel.Rendezvous, cfg Config) *DriverContext {
	cia := register.CIA{Bus: bus}
	dma := register.DMA{Bus: bus}
	engine := trackio.NewEngine(dma, clock, events, wake)

	timer := register.StepTimer{Bus: bus}
	timer.Program(cfg.seekRate())

	ctx := &DriverContext{cia: cia, engine: engine, clock: clock, events: events, wake: wake, addr: addr, cfg: cfg}
	for i := 0; i < NumDrives; i++ {
		sel := register.SelectMask(i)
		if !probeConnected(cia, i) {
			continue
		}
		slot := trackcache.NewDriveSlot(i, sel, mfm.BufSize)
		mfm.BuildTrack(slot.Buf)
		mc := motor.New(cia, clock, i)
		mc.MotorOff()
		ctx.drives[i] = &drive{
			slot:    slot,
			motor:   mc,
			stepper: motor.NewStepper(cia, timer, i),
		}
	}
	return ctx
}

// probeConnected pulses a drive's select/motor lines 32 times sampling
// the ready line, exactly as original_source's connected(): a drive that
// never reports ready across all 32 samples isn't physically present.
// Drive 0 is always assumed present, matching the original's special
// case (the internal drive has no reliable ready-line wiring on the
// hardware this was written for).
func probeConnected(cia register.CIA, driveNum int) bool {
	if driveNum == 0 {
		return true
	}
	any := false
	for i := 0; i < 32; i++ {
		cia.SelectDrive(driveNum, false)
		if cia.Ready() {
			any = true
		}
		cia.SelectDrive(driveNum, true)
	}
	return any
}
