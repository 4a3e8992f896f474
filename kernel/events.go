package kernel

import "sync"

// EventFlags is the event word interrupt and timer callbacks post to, and
// the single driver task's rendezvous primitive waits on and clears.
// spec.md §3/§5.
type EventFlags uint32

const (
	MotorRunning EventFlags = 1 << iota // CIA-B alarm: motor has reached speed
	TimedOut                            // watchdog alarm: DMA never completed
	IndexFound                          // index-hole interrupt (NEED_INDEX path, unused)
	DMAReady                            // disk DMA block transfer complete
	SeekReady                           // step timer has reached the target cylinder
	DoFlush                             // tick handler wants a deferred flush
)

// Events is the shared event word. All mutation is protected by a mutex
// standing in for the lock()/restore(saved) interrupt-disable pairing
// spec.md §5 requires around event_flags.
type Events struct {
	mu    sync.Mutex
	bits  EventFlags
	flush uint32 // to_flush bitset of drives owed a write-back, promoted from DoFlush
}

// Post raises the given event bits. Safe to call from interrupt/timer
// callbacks running on another goroutine.
func (e *Events) Post(bits EventFlags) {
	e.mu.Lock()
	e.bits |= bits
	e.mu.Unlock()
}

// PostFlush raises DoFlush and records which drive needs flushing, matching
// fd_timer()'s to_flush |= (1<<i) in original_source.
func (e *Events) PostFlush(drive int) {
	e.mu.Lock()
	e.bits |= DoFlush
	e.flush |= 1 << uint(drive)
	e.mu.Unlock()
}

// snapshot returns the requested bits that are set and clears only those,
// leaving every other bit (a pending DoFlush included) in place; PostFlush
// has already recorded the drive in the to_flush bitset. Apart from
// TakeFlush clearing DoFlush, this is the one place event bits are cleared.
func (e *Events) snapshot(mask EventFlags) (EventFlags, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hit := e.bits & mask
	if hit != 0 {
		e.bits &^= hit
		return hit, true
	}
	return 0, false
}

// TakeFlush atomically reads and clears the to_flush bitset (and the
// DoFlush bit, if nothing else is pending), matching original_source's
// do_flush() critical section.
func (e *Events) TakeFlush() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	tmp := e.flush
	e.flush = 0
	e.bits &^= DoFlush
	return tmp
}

// Pending reports whether any drive is currently owed a flush.
func (e *Events) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flush != 0
}
