package session

import "time"

// Throttle rate-limits a control channel with leading-edge semantics:
// the first call after an idle stretch fires immediately, and calls
// inside the window are dropped outright rather than queued. Dropped
// calls are not replayed, so a burst's last value can be lost; callers
// rebuild the payload from current state on every allowed call, which
// keeps the next fire authoritative.
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	lastFire time.Time
}

// NewThrottle builds a throttle for one control channel. A nil clock
// defaults to time.Now.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether a send may fire now and, if so, opens a new
// window. Not safe for concurrent use; the control loop is the only
// caller.
func (t *Throttle) Allow() bool {
	n := t.now()
	if !t.lastFire.IsZero() && n.Sub(t.lastFire) < t.interval {
		return false
	}
	t.lastFire = n
	return true
}
