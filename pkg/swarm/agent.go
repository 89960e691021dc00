package swarm

import (
	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// Forces is the breakdown of the last force computation for one agent.
type Forces struct {
	Cohesion  geometry.Vec3
	Obstacle  geometry.Vec3
	Alignment geometry.Vec3
}

// Agent is one drone. Agents are owned by the goroutine that ticks them;
// prediction works on clones.
type Agent struct {
	ID           int
	Position     geometry.Vec3
	Velocity     geometry.Vec3
	Acceleration geometry.Vec3

	// Layer is the BFS depth from the leader, starting at 1. Zero means the
	// leader does not reach this agent.
	Layer int

	Movable         bool
	Crashed         bool
	CrashedFeedback bool
	Embodied        bool
	Selected        bool

	// Score is 1 when the agent is in the main component, else 0.
	Score        float64
	NetworkScore float64

	Forces         Forces
	ObstacleForces []geometry.Vec3
	FeedbackForces []geometry.Vec3

	history ForceHistory
}

// NewAgent returns a movable agent.
func NewAgent(id int, position, velocity geometry.Vec3) *Agent {
	return &Agent{ID: id, Position: position, Velocity: velocity, Movable: true}
}

// NewImmovableAgent returns an agent that never moves. Others treat it as a
// neighbor they must keep clear of.
func NewImmovableAgent(id int, position geometry.Vec3) *Agent {
	return &Agent{ID: id, Position: position}
}

// Clone copies the kinematic state and identity flags. Crash state, layer,
// scores and history start fresh.
func (a *Agent) Clone() *Agent {
	return &Agent{
		ID:           a.ID,
		Position:     a.Position,
		Velocity:     a.Velocity,
		Acceleration: a.Acceleration,
		Movable:      a.Movable,
		Embodied:     a.Embodied,
		Selected:     a.Selected,
	}
}

// MarkCrashed sets the crash flag. It is never cleared.
func (a *Agent) MarkCrashed() {
	a.Crashed = true
}

// Finite reports whether the kinematic state is free of NaN and Inf.
func (a *Agent) Finite() bool {
	return geometry.IsFinite(a.Position) && geometry.IsFinite(a.Velocity) && geometry.IsFinite(a.Acceleration)
}

// RecordForces pushes the last cohesion and obstacle forces into the history.
func (a *Agent) RecordForces() {
	a.history.Add(a.Forces.Cohesion, a.Forces.Obstacle)
}

// History returns the force history.
func (a *Agent) History() *ForceHistory {
	return &a.history
}
