// Package motor implements one drive's motor spin-up/cooldown/shutoff
// state machine and its head-stepping sequencer. Grounded on
// original_source's start_motor/stop_motor/clock_start_motor/motor_off/
// fd_timer/movehead/seek/flstep_int in disk/usr/src/kernel/floppy.c.
package motor

import "github.com/rmichiels/amfloppy/register"

// State is the drive motor's lifecycle state.
type State int

const (
	// Off: motor line deasserted, no pending alarm.
	Off State = iota
	// SpinningUp: motor line asserted, waiting for the spin-up alarm.
	SpinningUp
	// Running: motor at speed, available for transfer.
	Running
	// Cooldown: motor still on, counting down ticks until automatic
	// shutoff (or a transfer arrives and calls Spin again).
	Cooldown
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case SpinningUp:
		return "spinning-up"
	case Running:
		return "running"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Clock is the subset of kernel.Clock the motor FSM needs — kept as a
// narrow local interface so this package doesn't import kernel just for
// the one method it calls.
type Clock interface {
	SetAlarm(ticks int, cb func())
}

// Controller drives one physical drive's motor and step lines.
type Controller struct {
	cia   register.CIA
	clock Clock
	drive int

	state     State
	cooldown  int // ticks remaining before auto-shutoff, valid in Cooldown
}

// New returns a Controller for the given drive index, motor initially Off.
func New(cia register.CIA, clock Clock, drive int) *Controller {
	return &Controller{cia: cia, clock: clock, drive: drive, state: Off}
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Spin turns the motor on (re-asserting the select/motor lines even if
// already running, matching original_source's unconditional portBout
// calls in start_motor) and arranges for onReady to run once the motor is
// at speed. If the motor was already on (Running or Cooldown — Cooldown
// cancels back to Running with no re-wait, same as the original setting
// dp->delay=0), onReady runs immediately. If it was Off and startDelay is
// positive, onReady is deferred behind a spin-up alarm.
func (c *Controller) Spin(startDelay int, onReady func()) {
	wasOff := c.state == Off
	c.cia.MotorOn(c.drive)
	if wasOff && startDelay > 0 {
		c.state = SpinningUp
		c.clock.SetAlarm(startDelay, func() {
			c.state = Running
			if onReady != nil {
				onReady()
			}
		})
		return
	}
	c.state = Running
	if onReady != nil {
		onReady()
	}
}

// StopRequest arms the cooldown countdown: the motor stays on for
// cooldownTicks more ticks (driven by Tick) in case another request
// arrives soon, exactly as original_source's stop_motor defers the
// decision to fd_timer instead of shutting off immediately.
func (c *Controller) StopRequest(cooldownTicks int) {
	c.state = Cooldown
	c.cooldown = cooldownTicks
}

// Tick advances the cooldown countdown by one clock tick. dirty reports
// whether the drive's cached track currently has unflushed writes. It
// returns true exactly once, the tick the countdown reaches zero while
// dirty is true — original_source's fd_timer setting to_flush and
// signalling DO_FLUSH instead of calling motor_off. The caller is
// expected to flush and then either call StopRequest again or MotorOff.
// If the countdown reaches zero while clean, the motor is switched off
// here directly and Tick returns false.
func (c *Controller) Tick(dirty bool) (needsFlush bool) {
	if c.state != Cooldown || c.cooldown <= 0 {
		return false
	}
	c.cooldown--
	if c.cooldown > 0 {
		return false
	}
	if dirty {
		return true
	}
	c.MotorOff()
	return false
}

// MotorOff switches the drive motor off immediately.
func (c *Controller) MotorOff() {
	c.cia.MotorOff(c.drive)
	c.state = Off
	c.cooldown = 0
}
