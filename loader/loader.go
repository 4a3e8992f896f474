// Package loader models the three boot-loader args the floppy driver
// core actually reads out of original_source's struct transferdata
// handoff block (disk/usr/include/minix/amtransfer.h): the debug level,
// the per-step delay, and the CIA clock frequency used to derive the
// head-stepping timer rate. Everything else transferdata carries
// (keymap, sprite data, memory chunk list) belongs to collaborators
// this driver never calls into and is intentionally not modeled here.
package loader

import "github.com/rmichiels/amfloppy/floppy"

// Args is the boot-time argument block floppy.DriverContext needs,
// equivalent to original_source's transdat->args['d'-'a'],
// transdat->args['r'-'a'], and transdat->args['t'-'a'].
type Args struct {
	Debug     int64 // 'd': nonzero enables verbose driver logging
	StepDelay int64 // 'r': microseconds allotted per head-step pulse
	ClockFreq int64 // 't': CIA-B timer clock, Hz
}

// Default values original_source's floppy_task would see with no
// loader arguments supplied: debug off, a 3ms step delay, and a 715909Hz
// (PAL) CIA clock.
const (
	DefaultStepDelay = 3000
	DefaultClockFreq = 715909
)

// DefaultArgs returns the Args a bare-metal boot with no loader
// overrides produces.
func DefaultArgs() Args {
	return Args{StepDelay: DefaultStepDelay, ClockFreq: DefaultClockFreq}
}

// FloppyConfig projects the two fields floppy.DriverContext's Config
// needs out of the full loader handoff, matching floppy_task reading
// transdat->args directly rather than through any intermediate struct.
func (a Args) FloppyConfig() floppy.Config {
	return floppy.Config{ClockFreq: a.ClockFreq, StepDelay: a.StepDelay}
}
