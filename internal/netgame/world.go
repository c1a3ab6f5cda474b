package netgame

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/mlange-42/ark/ecs"
)

// World is the authoritative, server-side entity store, backed by ark
// (§3 "external collaborator": the core never imports ark directly, only
// this layer does). It generalizes the teacher's game.World/physicsFilter
// pattern (internal/game/deterministic.go) from a fixed
// Position/Velocity/Collider/Grounded archetype to
// Position/Velocity/Grounded/Owner.
type World struct {
	ecsWorld ecs.World
	spawner  ecs.Map4[Position, Velocity, Grounded, Owner]
	filter   *ecs.Filter4[Position, Velocity, Grounded, Owner]

	byID map[ids.EntityID]ecs.Entity
}

// NewWorld creates an empty world.
func NewWorld() *World {
	w := &World{byID: make(map[ids.EntityID]ecs.Entity)}
	w.ecsWorld = ecs.NewWorld()
	w.spawner = ecs.NewMap4[Position, Velocity, Grounded, Owner](&w.ecsWorld)
	w.filter = ecs.NewFilter4[Position, Velocity, Grounded, Owner](&w.ecsWorld)
	return w
}

// Spawn creates an entity owned by peer at the given position, returning
// the replicated entity id the rest of the system addresses it by.
func (w *World) Spawn(owner ids.PeerID, x, y float64) ids.EntityID {
	e := w.spawner.NewEntity(
		&Position{X: x, Y: y},
		&Velocity{},
		&Grounded{},
		&Owner{Peer: owner},
	)
	id := ids.EntityID(e.ID())
	w.byID[id] = e
	return id
}

// Despawn removes an entity from the world.
func (w *World) Despawn(id ids.EntityID) {
	e, ok := w.byID[id]
	if !ok {
		return
	}
	w.ecsWorld.RemoveEntity(e)
	delete(w.byID, id)
}

// ApplyInput advances one entity's intent for the coming Step: horizontal
// velocity follows input directly, jump applies an instantaneous impulse
// when grounded (§4.4, step function contract in §6). Mirrors the pure
// per-entity physics in StepEntity so server and client stay congruent.
func (w *World) ApplyInput(id ids.EntityID, a Action) {
	e, ok := w.byID[id]
	if !ok {
		return
	}
	_, vel, grounded, _ := w.spawner.Get(e)
	vel.X = float64(a.Move) * moveSpeed
	if a.Jump && grounded.OnGround {
		vel.Y = jumpSpeed
		grounded.OnGround = false
	}
}

// Step advances every entity's physics by one tick's worth of simulated
// time (§4.3 fixed-rate simulation). Gravity, integration, and ground
// clamping mirror StepEntity exactly so a client predicting locally and
// the server simulating authoritatively reach the same state given the
// same inputs (§5 Correctness "Prediction convergence").
func (w *World) Step(dtSeconds float64) {
	query := w.filter.Query()
	for query.Next() {
		pos, vel, grounded, _ := query.Get()
		stepPhysics(pos, vel, grounded, dtSeconds)
	}
	query.Close()
}

// stepPhysics is the single source of truth for one tick's integration,
// shared by the ark-backed authoritative World.Step and the pure
// StepEntity used during client-side prediction replay.
func stepPhysics(pos *Position, vel *Velocity, grounded *Grounded, dtSeconds float64) {
	vel.Y += gravity * dtSeconds
	pos.X += vel.X * dtSeconds
	pos.Y += vel.Y * dtSeconds
	if pos.Y <= groundLevel {
		pos.Y = groundLevel
		vel.Y = 0
		grounded.OnGround = true
	} else {
		grounded.OnGround = false
	}
}

// Snapshot reads back one entity's current component values.
func (w *World) Snapshot(id ids.EntityID) (pos Position, vel Velocity, grounded Grounded, owner Owner, ok bool) {
	e, found := w.byID[id]
	if !found {
		return Position{}, Velocity{}, Grounded{}, Owner{}, false
	}
	p, v, g, o := w.spawner.Get(e)
	return *p, *v, *g, *o, true
}

// Restore overwrites one entity's components, used when applying an
// authoritative snapshot or rolling back to a prediction-history entry
// (§4.6 "Reconciliation").
func (w *World) Restore(id ids.EntityID, pos Position, vel Velocity, grounded Grounded) {
	e, ok := w.byID[id]
	if !ok {
		return
	}
	p, v, g, _ := w.spawner.Get(e)
	*p, *v, *g = pos, vel, grounded
}

// Entities reports every live entity id, for iteration by callers that
// need the replication.Source view (see Source in source.go).
func (w *World) Entities() []ids.EntityID {
	out := make([]ids.EntityID, 0, len(w.byID))
	for id := range w.byID {
		out = append(out, id)
	}
	return out
}
