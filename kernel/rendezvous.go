package kernel

// Rendezvous is the driver task's single suspension point: it repeatedly
// receives wake-ups from interrupts, alarms, and the request queue until a
// requested event bit appears in Events, matching spec.md §5's
// "my_receive(task, mask)" semantics from original_source. Every interrupt
// and alarm handler sets its bit in Events then calls Wake to unblock a
// waiting Wait call; Wait clears the bits it consumes, and apart from
// that only Events.TakeFlush clears a bit (DoFlush).
type Rendezvous struct {
	events *Events
	wake   chan struct{}
}

// NewRendezvous creates a Rendezvous over the given shared event word.
func NewRendezvous(events *Events) *Rendezvous {
	return &Rendezvous{events: events, wake: make(chan struct{}, 1)}
}

// Wake unblocks one pending or future Wait call so it re-checks Events.
// Safe to call from any goroutine (interrupt handler, clock callback, or
// the request queue feeding new work to the dispatcher).
func (r *Rendezvous) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until at least one bit in mask is set in Events, then clears
// and returns exactly those bits. A DoFlush arriving while waiting on an
// unrelated mask is never consumed here — PostFlush's bit lives in the
// to_flush bitset independently and is drained by the dispatcher via
// Events.TakeFlush after the reply is sent (spec.md §5 Ordering).
func (r *Rendezvous) Wait(mask EventFlags) EventFlags {
	for {
		if hit, ok := r.events.snapshot(mask); ok {
			return hit
		}
		<-r.wake
	}
}
