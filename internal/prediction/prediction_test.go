package prediction

import (
	"encoding/binary"
	"testing"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/stretchr/testify/require"
)

const compPos ids.ComponentID = 1

func posRegistry(rollbackTolerance int32) *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Descriptor{
		WireID: compPos,
		Mode:   registry.Full,
		Serialize: func(v registry.Value, out []byte) []byte {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(v.(int32)))
			return append(out, buf[:]...)
		},
		Deserialize: func(in []byte) (registry.Value, error) {
			return int32(binary.LittleEndian.Uint32(in)), nil
		},
		ShouldRollback: func(old, new registry.Value) bool {
			diff := old.(int32) - new.(int32)
			if diff < 0 {
				diff = -diff
			}
			return diff > rollbackTolerance
		},
	})
	return reg
}

func stepAddOne(components Snapshot, input []byte, _ int64) Snapshot {
	out := Snapshot{}
	for k, v := range components {
		out[k] = v
	}
	delta := int32(0)
	if len(input) > 0 {
		delta = int32(input[0])
	}
	out[compPos] = out[compPos].(int32) + delta
	return out
}

func TestPredictRecordsHistory(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(64)
	r := NewReconciler(reg, h, stepAddOne)

	cur := Snapshot{compPos: int32(0)}
	cur = r.Predict(cur, 100, []byte{1}, 0)
	require.Equal(t, int32(1), cur[compPos])

	recorded, ok := h.Get(100)
	require.True(t, ok)
	require.Equal(t, int32(1), recorded[compPos])
}

func TestReconcileNoRollbackWithinTolerance(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(64)
	r := NewReconciler(reg, h, stepAddOne)

	h.Record(100, Snapshot{compPos: int32(10)}, []byte{1})
	predicted := Snapshot{compPos: int32(11)}

	authoritative := Snapshot{compPos: int32(10)}
	_, res := r.Reconcile(authoritative, 100, predicted, 100, 0)
	require.False(t, res.RolledBack)
}

func TestReconcileRollsBackAndReplaysOnDivergence(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(64)
	r := NewReconciler(reg, h, stepAddOne)

	// Client predicted ticks 100..103 using input 1 each tick.
	state := Snapshot{compPos: int32(0)}
	for t := tick.Tick(100); t <= 103; t++ {
		state = r.Predict(state, t, []byte{1}, 0)
	}
	require.Equal(t, int32(4), state[compPos])

	// Server says tick 100 actually landed at 50 (big divergence).
	authoritative := Snapshot{compPos: int32(50)}
	newState, res := r.Reconcile(authoritative, 100, state, 103, 0)

	require.True(t, res.RolledBack)
	require.Equal(t, 3, res.ReplayedTicks) // replays 101, 102, 103
	require.Equal(t, int32(53), newState[compPos])
}

func TestReconcileForcesResyncWhenHistoryMissing(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(64)
	r := NewReconciler(reg, h, stepAddOne)

	authoritative := Snapshot{compPos: int32(10)}
	_, res := r.Reconcile(authoritative, 500, Snapshot{compPos: int32(0)}, 500, 0)
	require.True(t, res.ForcedResync)
}

func TestReconcileIgnoresSupersededOlderTick(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(64)
	r := NewReconciler(reg, h, stepAddOne)

	h.Record(200, Snapshot{compPos: int32(5)}, []byte{1})
	h.Record(100, Snapshot{compPos: int32(1)}, []byte{1})

	_, res := r.Reconcile(Snapshot{compPos: int32(5)}, 200, Snapshot{compPos: int32(5)}, 200, 0)
	require.False(t, res.RolledBack)

	// A later arrival for an earlier tick must be ignored (§4.6 Ordering).
	_, res2 := r.Reconcile(Snapshot{compPos: int32(999)}, 100, Snapshot{compPos: int32(5)}, 200, 0)
	require.False(t, res2.RolledBack)
	require.False(t, res2.ForcedResync)
}

func TestHistoryRecordEvictsBeyondCap(t *testing.T) {
	h := NewHistory(64)
	h.Record(0, Snapshot{compPos: int32(0)}, nil)

	h.Record(100, Snapshot{compPos: int32(1)}, nil) // 100 ticks after tick 0, past the 64-tick cap

	_, ok := h.Get(0)
	require.False(t, ok, "tick 0 should have been evicted once the ring exceeded its cap")
	_, ok = h.Get(100)
	require.True(t, ok)
}

func TestHistoryRecordRetainsWithinCap(t *testing.T) {
	h := NewHistory(64)
	h.Record(0, Snapshot{compPos: int32(0)}, nil)

	h.Record(64, Snapshot{compPos: int32(1)}, nil)

	_, ok := h.Get(0)
	require.True(t, ok, "exactly Cap ticks apart is still within the retention window")
}

// TestReconcileForcesResyncWhenReplayInputWasEvicted covers §4.6's "inputs
// older than the cap cannot be replayed and trigger a forced full state
// reset" rule: after predicting well past the cap, the input for the
// authoritative tick has been evicted by History.Record's own ring
// eviction, so Reconcile cannot replay and must force a resync.
func TestReconcileForcesResyncWhenReplayInputWasEvicted(t *testing.T) {
	reg := posRegistry(2)
	h := NewHistory(8)
	r := NewReconciler(reg, h, stepAddOne)

	state := Snapshot{compPos: int32(0)}
	for t := tick.Tick(0); t <= 20; t++ {
		state = r.Predict(state, t, []byte{1}, 0)
	}

	authoritative := Snapshot{compPos: int32(999)}
	_, res := r.Reconcile(authoritative, 0, state, 20, 0)
	require.True(t, res.ForcedResync)
}

func TestBlendUsesCorrectionFunction(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Descriptor{
		WireID: compPos,
		Correct: func(from, to registry.Value, u float64) registry.Value {
			f, t := from.(float64), to.(float64)
			return f + (t-f)*u
		},
	})

	got := Blend(reg, compPos, 0.0, 10.0, 0.5)
	require.InDelta(t, 5.0, got.(float64), 0.0001)
}

func TestBlendFallsBackToTargetWithoutCorrectionFunc(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Descriptor{WireID: compPos})

	got := Blend(reg, compPos, 0.0, 10.0, 0.5)
	require.Equal(t, 10.0, got)
}
