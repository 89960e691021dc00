package metrics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

func lineAgents(n int, spacing float64) []*swarm.Agent {
	agents := make([]*swarm.Agent, n)
	for i := range agents {
		agents[i] = swarm.NewAgent(i, geometry.Vec3{float64(i) * spacing, 0, 0}, geometry.Vec3{})
	}
	return agents
}

func TestRelativeConnectivityPath(t *testing.T) {
	g := swarm.BuildGraph(lineAgents(5, 1), 2.5)
	if got := RelativeConnectivity(g); got != 1 {
		t.Errorf("RelativeConnectivity = %v, want 1", got)
	}
	if got := ConnectedComponents(g); got != 1 {
		t.Errorf("components = %d", got)
	}
}

func TestRelativeConnectivityDisconnected(t *testing.T) {
	g := swarm.BuildGraph(lineAgents(3, 10), 2.5)
	if got := RelativeConnectivity(g); got != 0 {
		t.Errorf("RelativeConnectivity = %v, want 0", got)
	}
}

func TestDegenerateInputs(t *testing.T) {
	p := swarm.DefaultParams()
	empty := swarm.BuildGraph(nil, 5)
	single := swarm.BuildGraph(lineAgents(1, 1), 5)

	if RelativeConnectivity(empty) != 1 || RelativeConnectivity(single) != 1 {
		t.Error("connectivity of n<=1 should be 1")
	}
	if CohesionRadius(nil) != 0 {
		t.Error("cohesion radius of nothing should be 0")
	}
	if s, r := NormalizedDeviationEnergy(single.Agents(), 5); s != 0 || r != 0 {
		t.Error("deviation of a single agent should be 0")
	}
	if NormalizedVelocityMismatch(nil, 5) != 0 {
		t.Error("velocity mismatch of nothing should be 0")
	}
	if OverallCohesionScore(single, p) != 0 {
		t.Error("overall score of a single agent should be 0")
	}
	if AskingToShrinkScore(empty, 5) != 0 {
		t.Error("shrink score of nothing should be 0")
	}
	empty.Refresh(0)
	_ = Compute(empty, p, nil)
}

func TestCohesionRadius(t *testing.T) {
	got := CohesionRadius(lineAgents(3, 2))
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("CohesionRadius = %v, want 2", got)
	}
}

func TestDeviationEnergyAtPreferredSpacing(t *testing.T) {
	agents := lineAgents(2, 5)
	score, ratio := NormalizedDeviationEnergy(agents, 5)
	if score != 0 {
		t.Errorf("score = %v, want 0 at perfect spacing", score)
	}
	if ratio != 1 {
		t.Errorf("mean distance ratio = %v, want 1", ratio)
	}
}

func TestDeviationEnergyResponseCurve(t *testing.T) {
	// Pair at 2·dRef: energy = 1, (1-0.3)/0.48 clamps to 1, minus 0.1.
	score, _ := NormalizedDeviationEnergy(lineAgents(2, 10), 5)
	if math.Abs(score-0.9) > 1e-12 {
		t.Errorf("score = %v, want 0.9", score)
	}
}

func TestVelocityMismatch(t *testing.T) {
	a := swarm.NewAgent(0, geometry.Vec3{}, geometry.Vec3{5, 0, 0})
	b := swarm.NewAgent(1, geometry.Vec3{}, geometry.Vec3{-5, 0, 0})
	if got := NormalizedVelocityMismatch([]*swarm.Agent{a, b}, 5); got != 1 {
		t.Errorf("mismatch = %v, want 1", got)
	}
	b.Velocity = a.Velocity
	if got := NormalizedVelocityMismatch([]*swarm.Agent{a, b}, 5); got != 0 {
		t.Errorf("mismatch = %v, want 0", got)
	}
}

func TestAskingToShrink(t *testing.T) {
	tight := lineAgents(10, 1)
	g := swarm.BuildGraph(tight, 10)
	g.Refresh(0)
	if got := AskingToShrinkScore(g, 5); got != 1 {
		t.Errorf("tight swarm score = %v, want 1", got)
	}

	loose := lineAgents(10, 5)
	g = swarm.BuildGraph(loose, 10)
	g.Refresh(0)
	if got := AskingToShrinkScore(g, 5); got != 0 {
		t.Errorf("loose swarm score = %v, want 0", got)
	}
}

func TestConnectionScoreUsesMainWithImmovables(t *testing.T) {
	agents := lineAgents(2, 5)
	far := swarm.NewImmovableAgent(9, geometry.Vec3{500, 0, 0})
	g := swarm.BuildGraph(append(agents, far), 10)
	g.Refresh(0)
	if got := ConnectionScore(g, 5); got != 0 {
		t.Errorf("connection score = %v, want 0 for the well spaced main pair", got)
	}
}

func TestMetricBoundsRandomSwarms(t *testing.T) {
	p := swarm.DefaultParams()
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		n := 2 + rng.Intn(49)
		agents := make([]*swarm.Agent, n)
		for i := range agents {
			pos := geometry.Vec3{rng.Float64() * 60, rng.Float64() * 10, rng.Float64() * 60}
			vel := geometry.Vec3{rng.NormFloat64() * 3, rng.NormFloat64(), rng.NormFloat64() * 3}
			agents[i] = swarm.NewAgent(i, pos, vel)
		}
		g := swarm.BuildGraph(agents, p.NeighborRadius())
		g.Refresh(0)
		s := Compute(g, p, nil)
		for name, v := range map[string]float64{
			"relative_connectivity": s.RelativeConnectivity,
			"velocity_mismatch":     s.VelocityMismatch,
			"overall_cohesion":      s.OverallCohesion,
			"deviation_energy":      s.DeviationEnergy,
			"asking_to_shrink":      s.AskingToShrink,
		} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("trial %d (n=%d): %s = %v out of [0,1]", trial, n, name, v)
			}
		}
	}
}

type blockAll struct{}

func (blockAll) SegmentIntersects(a, b geometry.Vec3) bool { return true }

func TestLineOfSightConnectivity(t *testing.T) {
	p := swarm.DefaultParams()
	g := swarm.BuildGraph(lineAgents(4, 2), p.NeighborRadius())
	g.Refresh(0)
	s := Compute(g, p, blockAll{})
	if s.RelativeConnectivity != 1 || s.LineOfSightConnectivity != 0 {
		t.Errorf("connectivity %v / line of sight %v", s.RelativeConnectivity, s.LineOfSightConnectivity)
	}
}
