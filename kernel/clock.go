// Package kernel models the small set of services the floppy driver expects
// from its surrounding system: a clock task that can arm one-shot alarms, a
// process-address-translation helper, and the interrupt/event rendezvous
// primitive the driver task blocks on. spec.md §1 calls these "external
// collaborators" — the core only consumes the interfaces they imply.
package kernel

// Clock is the alarm-scheduling service the driver uses for motor-on delay,
// the rotation watchdog, and deferred-flush rearming. Only one alarm is ever
// outstanding at a time (spec.md §5 Ordering): SetAlarm implicitly cancels
// any alarm armed earlier through the same Clock, matching
// original_source's clock_mess(ticks, cb) / clock_mess(0, nil) pairing.
type Clock interface {
	// SetAlarm arms cb to run after the given number of ticks. A ticks
	// value of 0 cancels any pending alarm without arming a new one.
	SetAlarm(ticks int, cb func())
}

// HZ is the assumed system clock tick rate, used throughout the driver to
// turn original_source's HZ-relative delays (MOTORON_DELAY, MOTOROFF_DELAY,
// ROTATION_DELAY) into tick counts.
const HZ = 50

