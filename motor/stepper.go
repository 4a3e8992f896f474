package motor

import "github.com/rmichiels/amfloppy/register"

// Stepper drives the head-stepping pulse train for a seek in progress,
// one pulse per CIA timer-B interrupt. Grounded on original_source's
// seek()/flstep_int() in disk/usr/src/kernel/floppy.c: seek_offset counts
// down the remaining cylinders to step, seek_delay holds off the first
// few interrupts to let the direction line settle before the first pulse.
type Stepper struct {
	cia   register.CIA
	timer register.StepTimer
	drive int

	offset int // remaining cylinders to step, signed
	delay  int // interrupts left to wait before stepping starts
	onDone func()
}

// NewStepper returns an idle Stepper for the given drive.
func NewStepper(cia register.CIA, timer register.StepTimer, drive int) *Stepper {
	return &Stepper{cia: cia, timer: timer, drive: drive}
}

// Start begins stepping cylDelta cylinders (positive: toward higher
// cylinder numbers) at the given timer rate, holding off the first
// settleDelay interrupts before the first pulse — original_source always
// uses settleDelay=4. onDone runs once the head has reached the target
// cylinder. A zero cylDelta still arms the timer for settleDelay ticks,
// matching the original unconditional seek() sequence even when the
// drive is already on the target cylinder (the caller only calls Start
// at all once it has decided a seek is needed).
func (s *Stepper) Start(cylDelta int, settleDelay int, rate uint16, onDone func()) {
	s.offset = cylDelta
	s.delay = settleDelay
	s.onDone = onDone
	s.timer.Program(rate)
	s.timer.Start()
}

// StepInterrupt handles one CIA timer-B interrupt: original_source's
// flstep_int. It should be called once per such interrupt while a seek
// is in progress.
func (s *Stepper) StepInterrupt() {
	s.delay--
	if s.delay > 0 {
		return
	}
	switch {
	case s.offset > 0:
		s.cia.StepPulse(s.drive, 1)
		s.offset--
	case s.offset < 0:
		s.cia.StepPulse(s.drive, -1)
		s.offset++
	default:
		s.timer.Stop()
		if s.onDone != nil {
			s.onDone()
		}
	}
}
