package netgame

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/replication"
)

// Source adapts a World to replication.Source: every live entity
// replicates to every peer, in a single replication group, which is all
// this demo world needs (§4.1 "Replication unit").
type Source struct {
	World *World
}

var allVisibility = ids.Visibility{Mode: ids.VisibilityAll}

// Entities implements replication.Source.
func (s Source) Entities() []replication.Entity {
	entityIDs := s.World.Entities()
	out := make([]replication.Entity, 0, len(entityIDs))
	for _, id := range entityIDs {
		pos, vel, grounded, owner, ok := s.World.Snapshot(id)
		if !ok {
			continue
		}
		out = append(out, replication.Entity{
			ID:         id,
			Group:      0,
			Visibility: allVisibility,
			Components: map[ids.ComponentID]registry.Value{
				ComponentPosition: pos,
				ComponentVelocity: vel,
				ComponentGrounded: grounded,
				ComponentOwner:    owner,
			},
		})
	}
	return out
}
