package netgame

import (
	"testing"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/prediction"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
	"github.com/stretchr/testify/require"
)

const tickDuration = int64(16_666_667) // ~60Hz, nanoseconds

func TestRegisterAllInstallsEveryComponent(t *testing.T) {
	reg := registry.New()
	RegisterAll(reg)

	for _, id := range []ids.ComponentID{ComponentPosition, ComponentVelocity, ComponentGrounded, ComponentOwner} {
		_, ok := reg.Lookup(id)
		require.True(t, ok, "component %d must be registered", id)
	}
}

func TestWorldStepFallsUnderGravityUntilGrounded(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(ids.PeerID(1), 0, 5)

	for i := 0; i < 1000; i++ {
		w.ApplyInput(id, Action{})
		w.Step(float64(tickDuration) / 1e9)
	}

	pos, vel, grounded, _, ok := w.Snapshot(id)
	require.True(t, ok)
	require.True(t, grounded.OnGround)
	require.Equal(t, 0.0, pos.Y)
	require.Equal(t, 0.0, vel.Y)
}

func TestWorldStepMovesHorizontallyWithInput(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(ids.PeerID(1), 0, 0)

	for i := 0; i < 10; i++ {
		w.ApplyInput(id, Action{Move: 1})
		w.Step(float64(tickDuration) / 1e9)
	}

	pos, _, _, _, ok := w.Snapshot(id)
	require.True(t, ok)
	require.Greater(t, pos.X, 0.0)
}

// TestStepEntityMatchesWorldStep is the congruence check §5 calls
// "Prediction convergence" depends on: the ark-backed authoritative
// world and the pure client-side step function must reach the same
// state given the same inputs.
func TestStepEntityMatchesWorldStep(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(ids.PeerID(1), 0, 3)

	actions := []Action{{Move: 1}, {Move: 1, Jump: true}, {Move: -1}, {Move: 0}, {Move: 1}}

	snap := prediction.Snapshot{
		ComponentPosition: Position{X: 0, Y: 3},
		ComponentVelocity: Velocity{},
		ComponentGrounded: Grounded{},
	}

	for _, a := range actions {
		w.ApplyInput(id, a)
		w.Step(float64(tickDuration) / 1e9)
		snap = StepEntity(snap, a.Encode(), tickDuration)
	}

	wantPos, wantVel, wantGrounded, _, ok := w.Snapshot(id)
	require.True(t, ok)

	require.InDelta(t, wantPos.X, snap[ComponentPosition].(Position).X, 1e-9)
	require.InDelta(t, wantPos.Y, snap[ComponentPosition].(Position).Y, 1e-9)
	require.InDelta(t, wantVel.Y, snap[ComponentVelocity].(Velocity).Y, 1e-9)
	require.Equal(t, wantGrounded.OnGround, snap[ComponentGrounded].(Grounded).OnGround)
}

func TestReconcilerAcceptsConvergedPredictionWithoutRollback(t *testing.T) {
	reg := registry.New()
	RegisterAll(reg)
	h := prediction.NewHistory(64)
	r := prediction.NewReconciler(reg, h, StepEntity)

	state := prediction.Snapshot{
		ComponentPosition: Position{X: 0, Y: 1},
		ComponentVelocity: Velocity{},
		ComponentGrounded: Grounded{},
	}

	for i := 0; i < 3; i++ {
		state = r.Predict(state, tick.Tick(100+i), Action{Move: 1}.Encode(), tickDuration)
	}

	// Authoritative tick 100 matches exactly what was predicted for it.
	recorded, ok := h.Get(tick.Tick(100))
	require.True(t, ok)

	_, res := r.Reconcile(recorded, tick.Tick(100), state, tick.Tick(102), tickDuration)
	require.False(t, res.RolledBack)
}

func TestSourceExposesSpawnedEntities(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(ids.PeerID(7), 1, 2)
	src := Source{World: w}

	entities := src.Entities()
	require.Len(t, entities, 1)
	require.Equal(t, id, entities[0].ID)
	require.Equal(t, Owner{Peer: ids.PeerID(7)}, entities[0].Components[ComponentOwner])
}
