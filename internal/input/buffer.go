// Package input implements the client-side sampling ring buffer and the
// server-side per-client input buffer, adapted from the teacher's
// input.Buffer to carry an application-defined action-state type with a
// redundancy window and the server's missing-input extrapolation policy
// (§4.4).
package input

import "github.com/andersfylling/tickforge/internal/tick"

// Action is an application-defined action-state snapshot for a single
// tick. The core treats it as an opaque blob; only the game layer knows
// its layout.
type Action = []byte

// Buffer is the client-side sampling ring: it records one Action per
// predicted tick and can export the last window of them for redundant
// transmission.
type Buffer struct {
	samples map[tick.Tick]Action
	current tick.Tick
	window  int
}

// NewBuffer creates a client input buffer with the given redundancy
// window (default 8, §6).
func NewBuffer(window int) *Buffer {
	return &Buffer{
		samples: make(map[tick.Tick]Action),
		window:  window,
	}
}

// Record stores the sampled action for the current predicted tick.
func (b *Buffer) Record(t tick.Tick, a Action) {
	b.samples[t] = a
	b.current = t
	b.evictOld()
}

func (b *Buffer) evictOld() {
	cutoff := tick.Add(b.current, -int32(b.window)*4)
	for t := range b.samples {
		if tick.Before(t, cutoff) {
			delete(b.samples, t)
		}
	}
}

// Window returns the last `window` actions up to and including `newest`,
// oldest first, for redundant transmission on the input channel (§4.4,
// §6 wire layout puts the newest tick plus window samples newest-first on
// the wire — callers reverse as needed for encoding).
func (b *Buffer) Window(newest tick.Tick) []Action {
	out := make([]Action, 0, b.window)
	for i := b.window - 1; i >= 0; i-- {
		t := tick.Add(newest, -int32(i))
		if a, ok := b.samples[t]; ok {
			out = append(out, a)
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Get returns the recorded action for a tick, for replay during
// reconciliation.
func (b *Buffer) Get(t tick.Tick) (Action, bool) {
	a, ok := b.samples[t]
	return a, ok
}
