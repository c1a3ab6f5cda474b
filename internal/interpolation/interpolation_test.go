package interpolation

import (
	"testing"
	"time"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/stretchr/testify/require"
)

const compPos ids.ComponentID = 1

func lerpRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Descriptor{
		WireID: compPos,
		Mode:   registry.Full,
		Interpolate: func(a, b registry.Value, u float64) registry.Value {
			return a.(float64) + (b.(float64)-a.(float64))*u
		},
	})
	return reg
}

func sampleAt(t tick.Tick, pos float64) Sample {
	return Sample{Tick: t, Components: map[ids.ComponentID]registry.Value{compPos: pos}}
}

func TestRenderWithSingleSampleUsesItUnchanged(t *testing.T) {
	b := NewBuffer(8)
	b.Add(sampleAt(100, 5.0))

	out, outcome := Render(lerpRegistry(), b, 100, 0, time.Millisecond)
	require.True(t, outcome.SingleSample)
	require.Equal(t, 5.0, out[compPos])
}

func TestRenderInterpolatesBetweenBracket(t *testing.T) {
	b := NewBuffer(8)
	b.Add(sampleAt(100, 0.0))
	b.Add(sampleAt(110, 10.0))

	out, outcome := Render(lerpRegistry(), b, 105, 0, time.Millisecond)
	require.False(t, outcome.Stalled)
	require.InDelta(t, 5.0, out[compPos].(float64), 0.0001)
}

func TestRenderStallsWhenNewestIsBehindRenderInstant(t *testing.T) {
	b := NewBuffer(8)
	b.Add(sampleAt(100, 0.0))
	b.Add(sampleAt(110, 10.0))

	out, outcome := Render(lerpRegistry(), b, 200, 0, time.Millisecond)
	require.True(t, outcome.Stalled)
	require.Equal(t, 10.0, out[compPos])
}

func TestRenderEmptyBufferReturnsNothing(t *testing.T) {
	b := NewBuffer(8)
	out, outcome := Render(lerpRegistry(), b, 1, 0, time.Millisecond)
	require.Nil(t, out)
	require.False(t, outcome.Stalled)
	require.False(t, outcome.SingleSample)
}

func TestBufferEvictsOldestOverCapacity(t *testing.T) {
	b := NewBuffer(2)
	b.Add(sampleAt(1, 1))
	b.Add(sampleAt(2, 2))
	b.Add(sampleAt(3, 3))

	require.Equal(t, 2, b.Len())
	newest, ok := b.Newest()
	require.True(t, ok)
	require.Equal(t, tick.Tick(3), newest.Tick)
}

func TestBufferRetireDropsOlderSamples(t *testing.T) {
	b := NewBuffer(8)
	b.Add(sampleAt(1, 1))
	b.Add(sampleAt(2, 2))
	b.Add(sampleAt(3, 3))

	b.Retire(3)
	require.Equal(t, 1, b.Len())
}
