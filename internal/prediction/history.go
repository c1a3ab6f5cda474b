// Package prediction implements the client-side prediction & rollback
// engine (§4.6): forward prediction of owned entities, reconciliation
// against authoritative updates, rollback/replay, and correction
// blending. It generalizes the teacher's client.PredictionBuffer and
// client.Reconciler from a hardcoded Position/Grounded comparison to the
// component registry's per-component ShouldRollback/Correct callbacks.
package prediction

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
)

// Snapshot is one entity's component values at a tick.
type Snapshot map[ids.ComponentID]registry.Value

// historyEntry is one tick's recorded prediction: the components after
// the simulation step, and the input that produced them (for replay).
type historyEntry struct {
	components Snapshot
	input      []byte
}

// History is the prediction history ring for a single predicted entity
// (§4.6 "Prediction history"), retained from the oldest unacknowledged
// tick up to the current predicted tick, bounded by Cap.
type History struct {
	entries map[tick.Tick]historyEntry
	cap     int
}

// NewHistory creates a prediction history capped at the given number of
// ticks (default 64, §6).
func NewHistory(cap int) *History {
	return &History{entries: make(map[tick.Tick]historyEntry), cap: cap}
}

// Record stores the result of advancing the simulation one tick, then
// evicts anything older than the configured cap: retention is a ring
// bounded above by Cap ticks (§4.6 "History retention"), not just the
// ack-driven PruneBefore a Reconcile call issues. A tick evicted here
// before its authoritative update ever arrives is exactly the "inputs
// older than the cap cannot be replayed" case Reconcile's
// history.Get/Input misses turn into a forced resync.
func (h *History) Record(t tick.Tick, components Snapshot, input []byte) {
	h.entries[t] = historyEntry{components: components, input: input}
	if h.cap <= 0 {
		return
	}
	for et := range h.entries {
		if tick.Sub(t, et) > int32(h.cap) {
			delete(h.entries, et)
		}
	}
}

// Get returns the recorded components for a tick, if still retained.
func (h *History) Get(t tick.Tick) (Snapshot, bool) {
	e, ok := h.entries[t]
	return e.components, ok
}

// Input returns the recorded input for a tick, if still retained.
func (h *History) Input(t tick.Tick) ([]byte, bool) {
	e, ok := h.entries[t]
	return e.input, ok
}

// PruneBefore discards entries older than t.
func (h *History) PruneBefore(t tick.Tick) {
	for et := range h.entries {
		if tick.Before(et, t) {
			delete(h.entries, et)
		}
	}
}

// Len reports how many ticks of history are currently retained.
func (h *History) Len() int {
	return len(h.entries)
}
