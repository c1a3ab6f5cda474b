package replication

import (
	"sort"

	"github.com/andersfylling/tickforge/internal/channels"
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/wire"
)

// Engine produces per-peer replication datagrams for one tick (§4.5).
type Engine struct {
	reg *registry.Registry
}

// NewEngine creates a replication engine bound to a component registry.
func NewEngine(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Datagram is one outbound packing unit: the frames it carries and the
// groups deferred because they did not fit (§4.5 step 3, §4.1 group
// atomicity — a deferred group is retried whole on the next tick, never
// split).
type Datagram struct {
	Frames   []wire.Frame
	Deferred []ids.GroupID
}

// Build computes the replication datagram for one client at one tick:
// visibility filtering, dirty-component collection against the client's
// baseline, delta encoding, and bin-packing groups under MaxDatagramSize
// (§4.5 steps 1-3).
func (e *Engine) Build(tick uint16, source Source, peer ids.PeerID, baseline *Baseline) (Datagram, error) {
	visible := visibleTo(source.Entities(), peer)
	groups := groupBy(visible)

	groupIDs := make([]ids.GroupID, 0, len(groups))
	for gid := range groups {
		groupIDs = append(groupIDs, gid)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })

	var dg Datagram
	budget := wire.MaxDatagramSize - wire.HeaderSize

	for _, gid := range groupIDs {
		frame, err := e.encodeGroup(tick, gid, groups[gid], baseline)
		if err != nil {
			return Datagram{}, err
		}
		if len(frame.Payload) == 0 {
			continue // idempotent tick: nothing dirty in this group (§5 Correctness 4)
		}

		encoded, err := frame.Encode(nil)
		if err != nil {
			return Datagram{}, err
		}
		if len(encoded) > budget {
			dg.Deferred = append(dg.Deferred, gid)
			continue
		}
		dg.Frames = append(dg.Frames, frame)
		budget -= len(encoded)
	}
	return dg, nil
}

func (e *Engine) encodeGroup(tick uint16, gid ids.GroupID, entities []Entity, baseline *Baseline) (wire.Frame, error) {
	rf := wire.ReplicationFrame{Tick: tick, GroupID: gid}

	for _, ent := range entities {
		encEntity := wire.EncodedEntity{ID: ent.ID}
		for cid, value := range ent.Components {
			if _, ok := e.reg.Lookup(cid); !ok {
				return wire.Frame{}, registry.ErrUnknownComponent
			}
			baselineValue, hasBaseline := baseline.Lookup(ent.ID, cid)
			// A DeltaEncode that returns a zero-length slice is this
			// registry's convention for "unchanged since baseline".
			data, isDelta, err := e.reg.Encode(cid, value, baselineValue, hasBaseline, nil)
			if err != nil {
				return wire.Frame{}, err
			}
			if hasBaseline && isDelta && len(data) == 0 {
				continue
			}
			encEntity.Components = append(encEntity.Components, wire.EncodedComponent{WireID: cid, IsDelta: isDelta, Data: data})
			baseline.RecordSent(tick, gid, ent.ID, cid, value)
		}
		if len(encEntity.Components) > 0 {
			rf.Entities = append(rf.Entities, encEntity)
		}
	}

	if len(rf.Entities) == 0 {
		return wire.Frame{Channel: channels.Replication}, nil
	}

	payload, err := rf.Encode(nil)
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.Frame{Channel: channels.Replication, Payload: payload}, nil
}
