package prediction

import (
	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
)

// StepFunc is the simulation-step external collaborator contract (§6):
// pure with respect to its declared component set, invoked once per
// replayed tick during reconciliation.
type StepFunc func(components Snapshot, input []byte, tickDuration int64) Snapshot

// Result reports what a Reconcile call did, for metrics and logging.
type Result struct {
	RolledBack    bool
	ReplayedTicks int
	ForcedResync  bool
	ServerTick    tick.Tick
}

// Reconciler drives forward prediction and reconciliation for one
// predicted entity (§4.6).
type Reconciler struct {
	reg     *registry.Registry
	history *History
	step    StepFunc

	lastReconciledTick tick.Tick
	haveLast           bool
}

// NewReconciler creates a reconciler bound to a registry and simulation step.
func NewReconciler(reg *registry.Registry, history *History, step StepFunc) *Reconciler {
	return &Reconciler{reg: reg, history: history, step: step}
}

// Predict advances the predicted primary one tick: reads input, invokes
// the simulation step, and records the result into history (§4.6 "Forward
// prediction").
func (r *Reconciler) Predict(current Snapshot, t tick.Tick, input []byte, tickDurationNanos int64) Snapshot {
	next := r.step(current, input, tickDurationNanos)
	r.history.Record(t, next, input)
	return next
}

// Reconcile applies an authoritative update for tick T_auth against the
// recorded prediction history, rolling back and replaying if any
// should-rollback predicate (or bit-exact difference, for components
// lacking one) fires (§4.6 "Reconciliation").
//
// predicted is the current predicted primary's components just before
// reconciliation; currentPredictedTick is the tick it corresponds to.
// tickDurationNanos is passed through unchanged to each replayed step.
func (r *Reconciler) Reconcile(authoritative Snapshot, tAuth tick.Tick, predicted Snapshot, currentPredictedTick tick.Tick, tickDurationNanos int64) (Snapshot, Result) {
	res := Result{ServerTick: tAuth}

	if r.haveLast && tick.Before(tAuth, r.lastReconciledTick) {
		return predicted, res // superseded by an already-applied later tick (§4.6 Ordering)
	}
	r.lastReconciledTick = tAuth
	r.haveLast = true

	recorded, haveRecorded := r.history.Get(tAuth)
	if !haveRecorded {
		res.ForcedResync = true
		r.history.PruneBefore(tAuth)
		return authoritative, res
	}

	if !r.needsRollback(recorded, authoritative) {
		r.history.PruneBefore(tAuth)
		return predicted, res
	}

	res.RolledBack = true
	state := authoritative
	for t := tick.Add(tAuth, 1); !tick.After(t, currentPredictedTick); t = tick.Add(t, 1) {
		input, ok := r.history.Input(t)
		if !ok {
			res.ForcedResync = true
			r.history.PruneBefore(tAuth)
			return state, res
		}
		state = r.step(state, input, tickDurationNanos)
		r.history.Record(t, state, input)
		res.ReplayedTicks++
	}

	r.history.PruneBefore(tAuth)
	return state, res
}

// needsRollback implements §4.6 step 2-3: a Full-mode component with a
// ShouldRollback predicate triggers on that predicate; one without triggers
// on any bit-exact difference from the serialized wire form.
func (r *Reconciler) needsRollback(predicted, authoritative Snapshot) bool {
	for cid, authValue := range authoritative {
		desc, ok := r.reg.Lookup(cid)
		if !ok || desc.Mode != registry.Full {
			continue
		}
		predValue, ok := predicted[cid]
		if !ok {
			return true
		}
		if desc.ShouldRollback != nil {
			if desc.ShouldRollback(predValue, authValue) {
				return true
			}
			continue
		}
		if !bytesEqual(desc.Serialize(predValue, nil), desc.Serialize(authValue, nil)) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Blend applies a component's correction function (if registered) to
// smoothly interpolate the visible value from its pre-rollback to
// post-rollback state over u ∈ [0,1] rather than snapping (§4.6 step 5).
func Blend(reg *registry.Registry, cid ids.ComponentID, from, to registry.Value, u float64) registry.Value {
	desc, ok := reg.Lookup(cid)
	if !ok || desc.Correct == nil {
		return to
	}
	return desc.Correct(from, to, u)
}
