// Package netgame is the external-collaborator game layer the core
// protocol packages are deliberately ignorant of (§1, §3): a small
// ark-ECS-backed world of moving, owned entities that exercises the
// registry, replication, prediction, and interpolation packages end to
// end. It trims the teacher's platformer-specific component set
// (Collider, Sprite, Health, Damage, AttackState) down to the generic
// "set of replicated components with an ownership tag" the protocol
// itself assumes (§1), since collision/combat/rendering are game
// content, not simulation-core concerns.
package netgame

import "github.com/andersfylling/tickforge/internal/ids"

// Position component, world units.
type Position struct {
	X, Y float64
}

// Velocity component, world units per second.
type Velocity struct {
	X, Y float64
}

// Grounded marks an entity as resting on the ground plane.
type Grounded struct {
	OnGround bool
}

// Owner tags an entity with the peer controlling it. Adapted from the
// teacher's Player{ID int, Name string}: the generic core only needs to
// know who owns an entity, not its display name.
type Owner struct {
	Peer ids.PeerID
}

const (
	gravity     = -20.0 // units/s^2
	groundLevel = 0.0
	moveSpeed   = 6.0 // units/s
	jumpSpeed   = 9.0 // units/s, applied as an instantaneous impulse
)
