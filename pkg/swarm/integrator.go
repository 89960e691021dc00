package swarm

import (
	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// FixedDt is the integration step in seconds.
const FixedDt = 0.02

// Integrate advances a movable agent by steps fixed steps using its current
// acceleration, then clears the acceleration. Each step applies
// v += a·dt, clamps |v| to MaxSpeed, damps v, then moves x += v·dt.
//
// If the agent state is not finite before or after the update the agent is
// left where it was, its acceleration is cleared and false is returned.
func Integrate(a *Agent, p Params, steps int) bool {
	if !a.Movable {
		a.Acceleration = geometry.Zero
		return true
	}
	if !a.Finite() {
		a.Acceleration = geometry.Zero
		return false
	}

	pos, vel := a.Position, a.Velocity
	for i := 0; i < steps; i++ {
		vel = vel.Add(a.Acceleration.Mul(FixedDt))
		vel = geometry.ClampMagnitude(vel, p.MaxSpeed)
		vel = vel.Mul(p.Damping)
		pos = pos.Add(vel.Mul(FixedDt))
	}
	a.Acceleration = geometry.Zero
	if !geometry.IsFinite(pos) || !geometry.IsFinite(vel) {
		return false
	}
	a.Position, a.Velocity = pos, vel
	return true
}
