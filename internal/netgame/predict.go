package netgame

import (
	"github.com/andersfylling/tickforge/internal/prediction"
)

// StepEntity is the prediction.StepFunc for one owned entity: the exact
// same physics as World.Step/stepPhysics, expressed over a
// prediction.Snapshot instead of ark storage so the client can replay it
// during reconciliation without a world instance (§4.6, §6 step-function
// contract). Keeping both paths calling stepPhysics is what makes server
// and client simulation congruent (§5 "Prediction convergence").
func StepEntity(components prediction.Snapshot, input []byte, tickDurationNanos int64) prediction.Snapshot {
	pos, _ := components[ComponentPosition].(Position)
	vel, _ := components[ComponentVelocity].(Velocity)
	grounded, _ := components[ComponentGrounded].(Grounded)

	a := DecodeAction(input)
	vel.X = float64(a.Move) * moveSpeed
	if a.Jump && grounded.OnGround {
		vel.Y = jumpSpeed
		grounded.OnGround = false
	}

	dtSeconds := float64(tickDurationNanos) / 1e9
	stepPhysics(&pos, &vel, &grounded, dtSeconds)

	out := make(prediction.Snapshot, len(components))
	for k, v := range components {
		out[k] = v
	}
	out[ComponentPosition] = pos
	out[ComponentVelocity] = vel
	out[ComponentGrounded] = grounded
	return out
}
