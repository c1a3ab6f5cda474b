package replication

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/wire"
)

// ClientBaseline tracks, on the client, the last applied value per
// component per entity, so an incoming delta frame has something to
// decode against (the mirror image of Baseline on the server).
type ClientBaseline struct {
	values map[componentKey]registry.Value
}

// NewClientBaseline creates an empty client-side baseline.
func NewClientBaseline() *ClientBaseline {
	return &ClientBaseline{values: make(map[componentKey]registry.Value)}
}

// AppliedComponent is one decoded component value ready for the game
// layer to write into its own entity storage.
type AppliedComponent struct {
	Entity    ids.EntityID
	Component ids.ComponentID
	Value     registry.Value
}

// Apply decodes a replication frame's components against the client
// baseline, updates the baseline with the newly-decoded values, and
// returns the flat list of applied components for the game layer to
// write into its entity store (§4.5 "Client side").
func Apply(reg *registry.Registry, baseline *ClientBaseline, frame wire.ReplicationFrame) ([]AppliedComponent, error) {
	var out []AppliedComponent
	for _, ent := range frame.Entities {
		for _, c := range ent.Components {
			key := componentKey{ent.ID, c.WireID}
			prev := baseline.values[key]

			value, err := reg.Decode(c.WireID, c.Data, prev, c.IsDelta)
			if err != nil {
				return nil, err
			}
			baseline.values[key] = value
			out = append(out, AppliedComponent{Entity: ent.ID, Component: c.WireID, Value: value})
		}
	}
	return out, nil
}
