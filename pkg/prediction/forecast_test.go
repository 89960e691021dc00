package prediction

import (
	"testing"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

func pair() []*swarm.Agent {
	return []*swarm.Agent{
		swarm.NewAgent(0, geometry.Vec3{0, 5, 0}, geometry.Vec3{}),
		swarm.NewAgent(1, geometry.Vec3{5, 5, 0}, geometry.Vec3{}),
	}
}

func TestRunForecastRecordsEveryStep(t *testing.T) {
	agents := pair()
	res := RunForecast(swarm.DefaultParams(), nil, Request{
		Agents:         agents,
		LeaderID:       0,
		Alignment:      geometry.Vec3{2, 0, 0},
		Steps:          5,
		StepMultiplier: 3,
	})
	if len(res.Trajectories) != 2 {
		t.Fatalf("trajectories = %d", len(res.Trajectories))
	}
	for _, tr := range res.Trajectories {
		if len(tr.Positions) != 5 || len(tr.Crashed) != 5 {
			t.Errorf("agent %d recorded %d positions", tr.AgentID, len(tr.Positions))
		}
		if tr.FirstCrash != -1 {
			t.Errorf("agent %d predicted to crash at %d", tr.AgentID, tr.FirstCrash)
		}
		last := tr.Positions[len(tr.Positions)-1]
		if last.X() <= float64(tr.AgentID)*5 {
			t.Errorf("agent %d did not move along the reference: %v", tr.AgentID, last)
		}
	}
	if res.ID == "" {
		t.Error("result has no id")
	}
	if res.Horizon().Seconds() != 5*3*swarm.FixedDt {
		t.Errorf("horizon = %v", res.Horizon())
	}
}

func TestRunForecastLeavesInputUntouched(t *testing.T) {
	agents := pair()
	before := []geometry.Vec3{agents[0].Position, agents[1].Position}
	RunForecast(swarm.DefaultParams(), nil, Request{Agents: agents, Alignment: geometry.Vec3{3, 0, 0}})
	for i, a := range agents {
		if a.Position != before[i] || a.Velocity != geometry.Zero || a.Layer != 0 {
			t.Errorf("agent %d was mutated by the forecast", i)
		}
	}
}

func TestRunForecastDefaults(t *testing.T) {
	res := RunForecast(swarm.DefaultParams(), nil, Request{Agents: pair()})
	if res.Steps != DefaultSteps || res.StepMultiplier != DefaultStepMultiplier {
		t.Errorf("steps=%d multiplier=%d", res.Steps, res.StepMultiplier)
	}
}

func TestRunForecastPredictsCrash(t *testing.T) {
	wall, _ := obstacles.NewBox(geometry.Vec3{3, 5, 0}, geometry.Vec3{1, 20, 20}, geometry.Identity())
	store := obstacles.NewStore(wall)
	// Face at x=2.5; the agent is closer than its own radius.
	agents := []*swarm.Agent{
		swarm.NewAgent(0, geometry.Vec3{2.4, 5, 0}, geometry.Vec3{5, 0, 0}),
		swarm.NewAgent(1, geometry.Vec3{-6, 5, 0}, geometry.Vec3{}),
	}

	res := RunForecast(swarm.DefaultParams(), store, Request{
		Agents:         agents,
		Alignment:      geometry.Vec3{5, 0, 0},
		Steps:          10,
		StepMultiplier: 2,
	})
	crashes := res.PredictedCrashes()
	if len(crashes) != 1 {
		t.Fatalf("expected one predicted crash, got %d", len(crashes))
	}
	if crashes[0].AgentID != 0 || crashes[0].FirstCrash != 0 || !crashes[0].Crashed[len(crashes[0].Crashed)-1] {
		t.Errorf("crash bookkeeping wrong: %+v", crashes[0].FirstCrash)
	}
	if agents[0].Crashed {
		t.Error("live agent marked crashed by forecast")
	}
}
