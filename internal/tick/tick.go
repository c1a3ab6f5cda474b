// Package tick implements the fixed-rate simulation clock shared by the
// server and client timelines: a wrapping 16-bit tick counter with
// modular comparison, and the accumulator-driven clocks built on top of it.
package tick

import "time"

// Tick is a monotonically increasing simulation step index. It wraps at
// 2^16 and must never be compared with plain arithmetic — use Sub/Before/After.
type Tick uint16

// Sub returns the signed distance a-b, interpreted modulo 2^16. For any
// a, b with |a-b| < 2^15 this equals the non-modular difference.
func Sub(a, b Tick) int32 {
	d := int32(a) - int32(b)
	switch {
	case d > 1<<15:
		d -= 1 << 16
	case d < -(1 << 15):
		d += 1 << 16
	}
	return d
}

// Before reports whether a precedes b on the wrapping timeline.
func Before(a, b Tick) bool { return Sub(a, b) < 0 }

// After reports whether a follows b on the wrapping timeline.
func After(a, b Tick) bool { return Sub(a, b) > 0 }

// Add returns the tick n steps after t (n may be negative).
func Add(t Tick, n int32) Tick { return Tick(int32(t) + n) }

// Clock accumulates wall time and advances a Tick counter at a fixed rate.
// It never derives the current simulation tick from the wall clock directly;
// only Advance's return value does that, by design (§4.3).
type Clock struct {
	current      Tick
	duration     time.Duration
	accumulator  time.Duration
}

// NewClock creates a clock at tick 0 stepping at the given duration.
func NewClock(tickDuration time.Duration) *Clock {
	return &Clock{duration: tickDuration}
}

// Current returns the clock's tick counter.
func (c *Clock) Current() Tick { return c.current }

// Duration returns the fixed per-tick duration.
func (c *Clock) Duration() time.Duration { return c.duration }

// Accumulate adds elapsed wall time and advances the tick counter by
// floor(accumulator/duration), returning how many ticks were stepped.
func (c *Clock) Accumulate(elapsed time.Duration) int {
	c.accumulator += elapsed
	steps := 0
	for c.accumulator >= c.duration {
		c.accumulator -= c.duration
		c.current++
		steps++
	}
	return steps
}

// Coalesce drops one tick duration's worth of accumulator without stepping
// the tick, shortening the next simulated tick. Used by the predicted
// timeline's controller to catch up when it has fallen behind (§4.3).
func (c *Clock) Coalesce() {
	if c.accumulator > c.duration {
		c.accumulator -= c.duration
	} else {
		c.accumulator = 0
	}
}

// Pause inserts a tiny delay by removing d from the accumulator (clamped
// at zero) without stepping, used when the predicted timeline is running
// ahead of its target offset.
func (c *Clock) Pause(d time.Duration) {
	if d > c.accumulator {
		c.accumulator = 0
		return
	}
	c.accumulator -= d
}

// SetCurrent forcibly sets the tick counter, used on initial sync with a
// remote's reported tick.
func (c *Clock) SetCurrent(t Tick) { c.current = t }
