package replication

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
)

// Entity is one replicable entity's current component values, as
// supplied by the game layer for a single tick (§4.5 step 1-2). The core
// has no notion of what the entity represents beyond this record.
type Entity struct {
	ID         ids.EntityID
	Group      ids.GroupID
	Visibility ids.Visibility
	Components map[ids.ComponentID]registry.Value
}

// Source supplies the set of currently-replicable entities for a tick.
// The game layer implements this over its own entity storage (e.g. ark).
type Source interface {
	Entities() []Entity
}

// SliceSource adapts a plain slice to Source, for tests and simple demos.
type SliceSource []Entity

func (s SliceSource) Entities() []Entity { return []Entity(s) }

// visibleTo filters entities to those a given peer may observe (§4.1
// Replication unit: All / Single(peer) / AllExcept(peer)).
func visibleTo(entities []Entity, peer ids.PeerID) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Visibility.Includes(peer) {
			out = append(out, e)
		}
	}
	return out
}

// groupBy partitions entities by replication group, preserving the
// group-atomicity guarantee: members of one group are bin-packed and
// sent (or deferred) together (§4.1, §4.5 step 3).
func groupBy(entities []Entity) map[ids.GroupID][]Entity {
	groups := make(map[ids.GroupID][]Entity)
	for _, e := range entities {
		groups[e.Group] = append(groups[e.Group], e)
	}
	return groups
}
