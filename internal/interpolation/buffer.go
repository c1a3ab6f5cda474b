// Package interpolation implements the remote-entity interpolation
// engine (§4.7): a bounded snapshot buffer per entity, bracket search for
// the render instant, and the edge policies for too-few or too-stale
// snapshots. It generalizes the teacher's sync.SnapshotBuffer (a flat
// slice of protocol.StateSnapshot) to per-entity component snapshots run
// through the registry's Interpolate callback.
package interpolation

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
)

// Sample is one tick's component values for an interpolated entity.
type Sample struct {
	Tick       tick.Tick
	Components map[ids.ComponentID]registry.Value
}

// Buffer holds recent samples for one entity, oldest first (§4.7).
type Buffer struct {
	samples  []Sample
	capacity int
}

// NewBuffer creates a snapshot buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Add appends a newly-received sample, evicting the oldest once over
// capacity. It retires nothing else; dropping samples older than a
// render pass is Retire's job.
func (b *Buffer) Add(s Sample) {
	b.samples = append(b.samples, s)
	if len(b.samples) > b.capacity {
		b.samples = b.samples[len(b.samples)-b.capacity:]
	}
}

// Len reports how many samples are currently buffered.
func (b *Buffer) Len() int { return len(b.samples) }

// bracket locates the pair of samples (T0 ≤ at < T1) surrounding a render
// instant expressed as a tick value with fractional part fracU already
// factored out by the caller; it operates purely on tick ordering here.
func (b *Buffer) bracket(at tick.Tick) (lo, hi *Sample, ok bool) {
	for i := 0; i+1 < len(b.samples); i++ {
		a, c := &b.samples[i], &b.samples[i+1]
		if !tick.After(a.Tick, at) && tick.Before(at, c.Tick) {
			return a, c, true
		}
	}
	return nil, nil, false
}

// Retire drops every sample strictly older than the given tick, once a
// render pass has moved past it.
func (b *Buffer) Retire(before tick.Tick) {
	i := 0
	for i < len(b.samples) && tick.Before(b.samples[i].Tick, before) {
		i++
	}
	b.samples = b.samples[i:]
}

// Newest returns the most recently added sample, if any.
func (b *Buffer) Newest() (Sample, bool) {
	if len(b.samples) == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}
