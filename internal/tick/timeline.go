package tick

import "time"

// RemoteEstimate tracks a receiver's best guess of a remote endpoint's
// current tick, derived from the tick carried on the last received packet
// plus half the measured round-trip time (§4.3):
//
//	remote_tick_now ≈ packet_tick + round(RTT/2 / tick_duration)
type RemoteEstimate struct {
	duration time.Duration
}

// NewRemoteEstimate creates an estimator for a clock running at duration.
func NewRemoteEstimate(duration time.Duration) RemoteEstimate {
	return RemoteEstimate{duration: duration}
}

// Estimate returns the remote's current tick given the tick stamped on the
// last received packet and the current RTT estimate.
func (e RemoteEstimate) Estimate(packetTick Tick, rtt time.Duration) Tick {
	halfTrip := rtt / 2
	steps := int32((halfTrip + e.duration/2) / e.duration)
	return Add(packetTick, steps)
}

// PredictedTimeline is the client's local-ahead clock: it runs K ticks
// ahead of the server's estimated current tick so that inputs sampled now
// arrive at the server exactly when it is ready to simulate them (§3, §4.3).
type PredictedTimeline struct {
	clock      *Clock
	controller *OffsetController
}

// NewPredictedTimeline creates a predicted timeline with the given target
// input-arrival margin, in ticks, at the server (the open question in §9;
// default 0-2, made a configurable constant here).
func NewPredictedTimeline(tickDuration time.Duration, targetMarginTicks int32) *PredictedTimeline {
	return &PredictedTimeline{
		clock:      NewClock(tickDuration),
		controller: NewOffsetController(targetMarginTicks),
	}
}

// Clock exposes the underlying wall-time accumulator clock.
func (p *PredictedTimeline) Clock() *Clock { return p.clock }

// Tick returns the current predicted tick.
func (p *PredictedTimeline) Tick() Tick { return p.clock.Current() }

// Sync seeds the predicted clock K ticks ahead of a freshly estimated
// server tick. Called once, on first contact with the server.
func (p *PredictedTimeline) Sync(serverTickEstimate Tick) {
	p.clock.SetCurrent(Add(serverTickEstimate, p.controller.offset))
}

// Advance steps the predicted clock by elapsed wall time and applies the
// controller's correction for the given measured arrival margin (the
// number of ticks of buffer the server actually had when it last
// processed this client's input, §4.3).
func (p *PredictedTimeline) Advance(elapsed time.Duration, measuredMarginTicks int32) int {
	correction := p.controller.Correct(measuredMarginTicks)
	switch {
	case correction < 0:
		// Running behind: coalesce to catch up.
		p.clock.Coalesce()
	case correction > 0:
		// Running ahead: insert a tiny pause instead of stepping early.
		p.clock.Pause(p.clock.duration / 8)
	}
	return p.clock.Accumulate(elapsed)
}

// OffsetController is a proportional controller that adjusts the
// predicted timeline's lead K so the measured input-arrival margin at the
// server converges on a target (§4.3).
type OffsetController struct {
	target int32
	offset int32
	gain   float64
}

// NewOffsetController creates a controller with the given target margin.
func NewOffsetController(target int32) *OffsetController {
	return &OffsetController{target: target, offset: target, gain: 0.5}
}

// Offset returns the controller's current K.
func (c *OffsetController) Offset() int32 { return c.offset }

// Correct updates K from a newly measured margin and returns the signed
// correction to apply this frame: negative means "shorten a tick",
// positive means "insert a pause".
func (c *OffsetController) Correct(measuredMargin int32) int32 {
	err := c.target - measuredMargin
	delta := int32(float64(err) * c.gain)
	c.offset += delta
	if c.offset < 0 {
		c.offset = 0
	}
	return -err
}

// InterpolationTimeline is the client's behind-the-server clock: it runs D
// ticks behind the server's estimated current tick so two received
// snapshots almost always bracket the render instant (§3, §4.3).
type InterpolationTimeline struct {
	delayTicks int32
	duration   time.Duration
}

// NewInterpolationTimeline creates an interpolation timeline with a fixed
// delay of delayTicks behind the server estimate.
func NewInterpolationTimeline(tickDuration time.Duration, delayTicks int32) *InterpolationTimeline {
	return &InterpolationTimeline{delayTicks: delayTicks, duration: tickDuration}
}

// DelayTicks returns D.
func (i *InterpolationTimeline) DelayTicks() int32 { return i.delayTicks }

// RenderInstant returns the wall-clock render instant for a server tick
// estimate: t = now - D*tick_duration, expressed as a tick-domain target.
func (i *InterpolationTimeline) RenderInstant(serverTickEstimate Tick) Tick {
	return Add(serverTickEstimate, -i.delayTicks)
}
