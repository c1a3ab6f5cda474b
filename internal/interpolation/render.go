package interpolation

import (
	"time"

	"github.com/andersfylling/tickforge/internal/ids"
	"github.com/andersfylling/tickforge/internal/registry"
	"github.com/andersfylling/tickforge/internal/tick"
)

// Outcome reports which edge policy (if any) governed a render pass, for
// the "interp-stall" metric (§4.7).
type Outcome struct {
	Stalled      bool
	SingleSample bool
}

// Render computes the interpolated component values at a render instant
// `t = now - D*tickDuration`, expressed here directly as renderTick plus
// a fractional offset within it (callers compute both from wall time and
// the configured delay D, §4.7). Returns the blended component set and
// the edge-policy outcome.
func Render(reg *registry.Registry, b *Buffer, renderTick tick.Tick, fracIntoTick float64, tickDuration time.Duration) (map[ids.ComponentID]registry.Value, Outcome) {
	if b.Len() == 0 {
		return nil, Outcome{}
	}
	if b.Len() == 1 {
		s, _ := b.Newest()
		return s.Components, Outcome{SingleSample: true}
	}

	lo, hi, ok := b.bracket(renderTick)
	if !ok {
		newest, _ := b.Newest()
		if !tick.After(newest.Tick, renderTick) {
			// Newest sample is at or behind the render instant:
			// extrapolation is disallowed, hold the last known sample.
			return newest.Components, Outcome{Stalled: true}
		}
		// Newest is ahead but no pair brackets the render instant, so it
		// precedes the oldest buffered sample; fall back to the newest.
		return newest.Components, Outcome{Stalled: true}
	}

	span := tick.Sub(hi.Tick, lo.Tick)
	u := (float64(tick.Sub(renderTick, lo.Tick)) + fracIntoTick) / float64(span)
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}

	out := make(map[ids.ComponentID]registry.Value, len(hi.Components))
	for cid, bVal := range hi.Components {
		aVal, haveA := lo.Components[cid]
		if !haveA {
			out[cid] = bVal
			continue
		}
		desc, ok := reg.Lookup(cid)
		if !ok || desc.Interpolate == nil {
			out[cid] = bVal
			continue
		}
		out[cid] = desc.Interpolate(aVal, bVal, u)
	}
	return out, Outcome{}
}
