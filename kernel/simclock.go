package kernel

import "sync"

// SimClock is an in-process Clock for tests and the simdisk-backed CLI
// mode: alarms fire synchronously when Advance is called with enough
// ticks, rather than from a real hardware timer interrupt.
type SimClock struct {
	mu       sync.Mutex
	remain   int
	cb       func()
	armed    bool
}

// NewSimClock returns an idle SimClock.
func NewSimClock() *SimClock {
	return &SimClock{}
}

// SetAlarm implements Clock. ticks <= 0 cancels any pending alarm.
func (c *SimClock) SetAlarm(ticks int, cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ticks <= 0 {
		c.armed = false
		c.cb = nil
		return
	}
	c.remain = ticks
	c.cb = cb
	c.armed = true
}

// Advance simulates n ticks of system time passing. If an armed alarm's
// countdown reaches zero, its callback runs exactly once (on the calling
// goroutine, synchronously), matching the one-shot nature of
// original_source's clock_mess alarms.
func (c *SimClock) Advance(n int) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		if !c.armed {
			c.mu.Unlock()
			continue
		}
		c.remain--
		fire := c.remain <= 0
		cb := c.cb
		if fire {
			c.armed = false
			c.cb = nil
		}
		c.mu.Unlock()
		if fire && cb != nil {
			cb()
		}
	}
}

// Pending reports whether an alarm is currently armed (test helper).
func (c *SimClock) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}
