// Package prediction forecasts where the swarm is heading by running the
// force model forward on a private copy of the agents.
package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

const (
	DefaultSteps          = 20
	DefaultStepMultiplier = 2
)

// Request is a point-in-time snapshot to forecast from. Off the tick
// goroutine, Agents must come from swarm.Context.Snapshot.
type Request struct {
	Tick           uint64
	Agents         []*swarm.Agent
	LeaderID       int
	Alignment      geometry.Vec3
	Steps          int
	StepMultiplier int
}

// Trajectory is the forecast path of one agent.
type Trajectory struct {
	AgentID   int             `json:"agent_id"`
	Positions []geometry.Vec3 `json:"positions"`
	Crashed   []bool          `json:"crashed"`
	// FirstCrash is the iteration at which the agent first crashed, or -1.
	FirstCrash int `json:"first_crash"`
}

// Result is one finished forecast.
type Result struct {
	ID             string        `json:"id"`
	Tick           uint64        `json:"tick"`
	Steps          int           `json:"steps"`
	StepMultiplier int           `json:"step_multiplier"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed"`
	Trajectories   []Trajectory  `json:"trajectories"`
}

// Horizon is the simulated time covered by the forecast.
func (r *Result) Horizon() time.Duration {
	secs := float64(r.Steps*r.StepMultiplier) * swarm.FixedDt
	return time.Duration(secs * float64(time.Second))
}

// PredictedCrashes returns the trajectories that end in a crash.
func (r *Result) PredictedCrashes() []Trajectory {
	var out []Trajectory
	for _, tr := range r.Trajectories {
		if tr.FirstCrash >= 0 {
			out = append(out, tr)
		}
	}
	return out
}

// Trajectory returns the path of agentID.
func (r *Result) Trajectory(agentID int) (Trajectory, bool) {
	for _, tr := range r.Trajectories {
		if tr.AgentID == agentID {
			return tr, true
		}
	}
	return Trajectory{}, false
}

// RunForecast clones req.Agents and steps the clones forward. Each iteration
// rebuilds the graph with the leader, computes forces on every clone, then
// integrates each by StepMultiplier fixed steps. Non-positive step counts fall
// back to the defaults. The request agents are never modified.
func RunForecast(params swarm.Params, obstacles swarm.ObstacleQuerier, req Request) Result {
	if req.Steps <= 0 {
		req.Steps = DefaultSteps
	}
	if req.StepMultiplier <= 0 {
		req.StepMultiplier = DefaultStepMultiplier
	}
	started := time.Now()

	clones := make([]*swarm.Agent, len(req.Agents))
	trajectories := make([]Trajectory, len(req.Agents))
	for i, a := range req.Agents {
		clones[i] = a.Clone()
		trajectories[i] = Trajectory{
			AgentID:    a.ID,
			Positions:  make([]geometry.Vec3, 0, req.Steps),
			Crashed:    make([]bool, 0, req.Steps),
			FirstCrash: -1,
		}
	}

	model := &swarm.ForceModel{Params: params, Obstacles: obstacles}
	for step := 0; step < req.Steps; step++ {
		g := swarm.BuildGraph(clones, params.NeighborRadius())
		g.Refresh(req.LeaderID)
		for _, c := range clones {
			model.Compute(c, g, req.Alignment)
		}
		for i, c := range clones {
			swarm.Integrate(c, params, req.StepMultiplier)
			tr := &trajectories[i]
			tr.Positions = append(tr.Positions, c.Position)
			tr.Crashed = append(tr.Crashed, c.Crashed)
			if c.Crashed && tr.FirstCrash < 0 {
				tr.FirstCrash = step
			}
		}
	}

	return Result{
		ID:             uuid.NewString(),
		Tick:           req.Tick,
		Steps:          req.Steps,
		StepMultiplier: req.StepMultiplier,
		StartedAt:      started,
		Elapsed:        time.Since(started),
		Trajectories:   trajectories,
	}
}
