package input

import "github.com/andersfylling/tickforge/internal/tick"

// ServerBuffer is the per-client ring buffer the server deposits inbound
// actions into, keyed by tick. Lookup at simulation time falls back to
// the most recently received action when the exact tick is missing
// (input extrapolation) and reports that fallback as a starve (§4.4).
type ServerBuffer struct {
	samples    map[tick.Tick]Action
	latest     Action
	latestTick tick.Tick
	haveLatest bool
	cap        int
}

// NewServerBuffer creates a server-side buffer retaining up to cap ticks
// of history.
func NewServerBuffer(cap int) *ServerBuffer {
	return &ServerBuffer{
		samples: make(map[tick.Tick]Action),
		cap:     cap,
	}
}

// Deposit records an inbound action for tick t, unless t is already
// behind the highest tick seen so far (§4.4 Ordering: stale arrivals are
// silently discarded).
func (b *ServerBuffer) Deposit(t tick.Tick, a Action) {
	if b.haveLatest && tick.Before(t, b.latestTick) {
		return
	}
	b.samples[t] = a
	if !b.haveLatest || tick.After(t, b.latestTick) {
		b.latest = a
		b.latestTick = t
		b.haveLatest = true
	}
	b.evict(t)
}

func (b *ServerBuffer) evict(current tick.Tick) {
	cutoff := tick.Add(current, -int32(b.cap))
	for t := range b.samples {
		if tick.Before(t, cutoff) {
			delete(b.samples, t)
		}
	}
}

// Lookup returns the action to simulate at tick t. If no sample exists
// for exactly t, it falls back to the most recently received action and
// reports starved=true.
func (b *ServerBuffer) Lookup(t tick.Tick) (action Action, starved bool) {
	if a, ok := b.samples[t]; ok {
		return a, false
	}
	if b.haveLatest {
		return b.latest, true
	}
	return nil, true
}

// Discard removes the sample for tick t once it has been simulated, so
// it cannot be replayed against a later tick in error.
func (b *ServerBuffer) Discard(t tick.Tick) {
	delete(b.samples, t)
}
