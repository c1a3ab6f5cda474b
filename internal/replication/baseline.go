// Package replication implements the server-to-client replication engine
// (§4.5): visibility filtering, dirty-component collection, replication-
// group bin-packing under the datagram MTU, delta compression against a
// per-client acknowledged baseline, and ack piggyback handling. It
// generalizes the teacher's sync.Baseline/Diff/Apply from a flat
// per-entity byte blob to per-component values run through the
// component registry's delta codec (§4.2, §6).
package replication

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
)

type componentKey struct {
	entity    ids.EntityID
	component ids.ComponentID
}

type pendingEntry struct {
	tick      uint16
	group     ids.GroupID
	entity    ids.EntityID
	component ids.ComponentID
	value     registry.Value
}

// Baseline tracks one client's last-acknowledged component values,
// which in turn serve as the delta-compression baseline for future sends,
// and the in-flight (unacknowledged) snapshots awaiting commit (§4.5).
type Baseline struct {
	ackedTick map[ids.GroupID]uint16
	committed map[componentKey]registry.Value
	pending   []pendingEntry
}

// NewBaseline creates an empty per-client baseline.
func NewBaseline() *Baseline {
	return &Baseline{
		ackedTick: make(map[ids.GroupID]uint16),
		committed: make(map[componentKey]registry.Value),
	}
}

// Lookup returns the committed (acknowledged) value for a component, if any.
func (b *Baseline) Lookup(entity ids.EntityID, component ids.ComponentID) (registry.Value, bool) {
	v, ok := b.committed[componentKey{entity, component}]
	return v, ok
}

// RecordSent notes a value sent at a given tick for a group, pending
// acknowledgement before it becomes the new delta baseline.
func (b *Baseline) RecordSent(tick uint16, group ids.GroupID, entity ids.EntityID, component ids.ComponentID, value registry.Value) {
	b.pending = append(b.pending, pendingEntry{tick, group, entity, component, value})
}

// LastAcked returns the last acknowledged tick for a replication group.
func (b *Baseline) LastAcked(group ids.GroupID) (uint16, bool) {
	t, ok := b.ackedTick[group]
	return t, ok
}

// Ack commits every pending entry for the group at or before
// lastSeenTick into the committed baseline and garbage-collects the
// pending log up to that point (§4.5 Acknowledgement).
func (b *Baseline) Ack(group ids.GroupID, lastSeenTick uint16) {
	if prev, ok := b.ackedTick[group]; ok && !tickAfter(lastSeenTick, prev) {
		return
	}
	b.ackedTick[group] = lastSeenTick

	kept := b.pending[:0]
	for _, e := range b.pending {
		if e.group == group && !tickAfter(e.tick, lastSeenTick) {
			b.committed[componentKey{e.entity, e.component}] = e.value
			continue
		}
		kept = append(kept, e)
	}
	b.pending = kept
}

// Forget removes all baseline state for an entity that has left this
// client's visibility or been destroyed, so a future spawn starts fresh.
func (b *Baseline) Forget(entity ids.EntityID) {
	for key := range b.committed {
		if key.entity == entity {
			delete(b.committed, key)
		}
	}
	kept := b.pending[:0]
	for _, e := range b.pending {
		if e.entity != entity {
			kept = append(kept, e)
		}
	}
	b.pending = kept
}

func tickAfter(a, b uint16) bool {
	return int16(a-b) > 0
}
