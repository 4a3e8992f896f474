package floppy

// Tick advances every connected drive's motor cooldown by one clock
// tick, exactly as original_source's fd_timer() runs on every system
// clock interrupt. A drive whose cooldown expires while its cache is
// still dirty is flagged for a deferred flush instead of being switched
// off immediately.
func (ctx *DriverContext) Tick() {
	for i, dr := range ctx.drives {
		if dr == nil {
			continue
		}
		if dr.motor.Tick(dr.slot.AnyDirty()) {
			ctx.events.PostFlush(i)
			ctx.wake.Wake()
		}
	}
}

// Flush writes back every drive currently owed a deferred flush and
// re-arms its motor-off countdown to one tick, so the next Tick switches
// the motor off — original_source's do_flush(), called from the main dispatch loop right after a reply is sent
// (spec.md §5 Ordering: the flush never runs ahead of the reply the
// caller that dirtied the cache is waiting on).
func (ctx *DriverContext) Flush() error {
	pending := ctx.events.TakeFlush()
	if pending == 0 {
		return nil
	}
	var first error
	for i, dr := range ctx.drives {
		if dr == nil || pending&(1<<uint(i)) == 0 {
			continue
		}
		if err := ctx.rdwtTrack(dr, true); err != nil && first == nil {
			first = err
		}
		dr.motor.StopRequest(1)
	}
	return first
}

// PendingFlush reports whether any drive is currently owed a deferred
// flush, letting the dispatcher decide whether to call Flush after
// replying to a request.
func (ctx *DriverContext) PendingFlush() bool {
	return ctx.events.Pending()
}
