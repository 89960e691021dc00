package swarm

import (
	"math"
	"testing"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
)

func floatEquals(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func vecNear(a, b geometry.Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestCohesionIntensityZeroAtPreferredDistance(t *testing.T) {
	p := DefaultParams()
	c := p.PotentialOffset()
	if got := CohesionIntensity(p.DesiredSeparation, p.DesiredSeparation, p.Alpha, p.Beta, c); got != 0 {
		t.Errorf("intensity at dRef = %v, want 0", got)
	}
	if got := CohesionIntensityDerivative(p.DesiredSeparation, p.DesiredSeparation, p.Alpha, p.Beta, c); !floatEquals(got, 0, 1e-9) {
		t.Errorf("derivative at dRef = %v, want 0", got)
	}
}

func TestCohesionIntensityDerivativeSign(t *testing.T) {
	p := DefaultParams()
	c := p.PotentialOffset()
	if d := CohesionIntensityDerivative(3, 5, p.Alpha, p.Beta, c); d >= 0 {
		t.Errorf("too close should repel, derivative = %v", d)
	}
	if d := CohesionIntensityDerivative(7, 5, p.Alpha, p.Beta, c); d <= 0 {
		t.Errorf("too far should attract, derivative = %v", d)
	}
}

func TestCohesionForceAtEquilibrium(t *testing.T) {
	p := DefaultParams()
	rel := geometry.Vec3{p.DesiredSeparation, 0, 0}
	f := CohesionForce(p.DesiredSeparation, p.DesiredSeparation, p.Alpha, p.Beta, p.PotentialOffset(), p.NeighborRadius(), 0.3, rel)
	if f.Len() > 1e-12 {
		t.Errorf("force at equilibrium = %v, want zero", f)
	}
}

func TestNeighborWeightBoundaries(t *testing.T) {
	const r0, delta, eps = 10.0, 0.2, 1e-4

	if got := NeighborWeight(1, r0, delta); got != 1 {
		t.Errorf("weight inside plateau = %v, want 1", got)
	}
	if got := NeighborWeight(r0, r0, delta); got != 0 {
		t.Errorf("weight at r0 = %v, want 0", got)
	}
	if got := NeighborWeight(2*r0, r0, delta); got != 0 {
		t.Errorf("weight beyond r0 = %v, want 0", got)
	}

	below := NeighborWeight((delta-eps)*r0, r0, delta)
	above := NeighborWeight((delta+eps)*r0, r0, delta)
	if !floatEquals(below, above, 1e-6) {
		t.Errorf("weight jumps at delta: %v vs %v", below, above)
	}
	below = NeighborWeight((1-eps)*r0, r0, delta)
	above = NeighborWeight((1+eps)*r0, r0, delta)
	if !floatEquals(below, above, 1e-6) {
		t.Errorf("weight jumps at r0: %v vs %v", below, above)
	}

	dBelow := NeighborWeightDerivative((delta-eps)*r0, r0, delta)
	dAbove := NeighborWeightDerivative((delta+eps)*r0, r0, delta)
	if !floatEquals(dBelow, dAbove, 20*eps) {
		t.Errorf("derivative jumps at delta: %v vs %v", dBelow, dAbove)
	}
	dBelow = NeighborWeightDerivative((1-eps)*r0, r0, delta)
	dAbove = NeighborWeightDerivative((1+eps)*r0, r0, delta)
	if !floatEquals(dBelow, dAbove, 20*eps) {
		t.Errorf("derivative jumps at r0: %v vs %v", dBelow, dAbove)
	}
}

func TestComputeIsolatedAgentFollowsReference(t *testing.T) {
	p := DefaultParams()
	a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	g := BuildGraph([]*Agent{a}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p, Obstacles: obstacles.NewStore()}
	m.Compute(a, g, geometry.Vec3{2, 0, 0})

	want := geometry.Vec3{2, 0, 0}.Mul(p.AlignmentGain)
	if !vecNear(a.Acceleration, want, 1e-9) {
		t.Errorf("acceleration = %v, want %v", a.Acceleration, want)
	}
	if a.Crashed {
		t.Error("isolated agent should not crash")
	}
}

func TestComputeClampsToMaxForce(t *testing.T) {
	p := DefaultParams()
	a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	g := BuildGraph([]*Agent{a}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p}
	m.Compute(a, g, geometry.Vec3{1000, 0, 0})
	if !floatEquals(a.Acceleration.Len(), p.MaxForce, 1e-9) {
		t.Errorf("|acceleration| = %v, want %v", a.Acceleration.Len(), p.MaxForce)
	}
}

func TestComputeOutsideMainComponentDropsAlignment(t *testing.T) {
	p := DefaultParams()
	leader := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	stray := NewAgent(1, geometry.Vec3{100, 0, 0}, geometry.Vec3{})
	g := BuildGraph([]*Agent{leader, stray}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p}
	m.Compute(stray, g, geometry.Vec3{3, 0, 0})
	if stray.Acceleration.Len() != 0 || stray.Forces.Alignment.Len() != 0 {
		t.Errorf("stray agent should not chase the reference, got %v", stray.Acceleration)
	}
}

func TestComputeAlignmentAveragesNeighbors(t *testing.T) {
	p := DefaultParams()
	p.DroneRadius = 0
	// Neighbors at the preferred distance so cohesion vanishes.
	a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	n1 := NewAgent(1, geometry.Vec3{5, 0, 0}, geometry.Vec3{0, 0, 2})
	n2 := NewAgent(2, geometry.Vec3{-5, 0, 0}, geometry.Vec3{0, 0, 4})
	g := BuildGraph([]*Agent{a, n1, n2}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p}
	m.Compute(a, g, geometry.Vec3{})
	// mean neighbor velocity diff (0,0,3), reference term zero, blended 50/50.
	want := geometry.Vec3{0, 0, 1.5}
	if !vecNear(a.Forces.Alignment, want, 1e-9) {
		t.Errorf("alignment = %v, want %v", a.Forces.Alignment, want)
	}
	if a.Forces.Cohesion.Len() > 1e-9 {
		t.Errorf("cohesion at equilibrium = %v", a.Forces.Cohesion)
	}
}

func TestComputeSeparationPushesApart(t *testing.T) {
	p := DefaultParams()
	a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	b := NewAgent(1, geometry.Vec3{2, 0, 0}, geometry.Vec3{})
	g := BuildGraph([]*Agent{a, b}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p}
	m.Compute(a, g, geometry.Vec3{})
	if a.Forces.Cohesion.X() >= 0 {
		t.Errorf("agent too close should be pushed to -X, got %v", a.Forces.Cohesion)
	}
	if b.Acceleration.Len() != 0 {
		t.Error("neighbor was mutated")
	}
}

func TestComputeCrashDetection(t *testing.T) {
	p := DefaultParams()

	t.Run("overlapping neighbors", func(t *testing.T) {
		a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
		b := NewAgent(1, geometry.Vec3{0.3, 0, 0}, geometry.Vec3{})
		g := BuildGraph([]*Agent{a, b}, p.NeighborRadius())
		g.Refresh(0)
		m := &ForceModel{Params: p}
		m.Compute(a, g, geometry.Vec3{})
		if !a.Crashed {
			t.Error("expected crash")
		}
		if !geometry.IsFinite(a.Acceleration) {
			t.Errorf("crash produced non-finite acceleration %v", a.Acceleration)
		}
	})

	t.Run("too close to immovable", func(t *testing.T) {
		a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
		wall := NewImmovableAgent(1, geometry.Vec3{0.7, 0, 0})
		g := BuildGraph([]*Agent{a, wall}, p.NeighborRadius())
		g.Refresh(0)
		m := &ForceModel{Params: p}
		m.Compute(a, g, geometry.Vec3{})
		if !a.Crashed {
			t.Error("expected crash near immovable agent")
		}
	})

	t.Run("touching obstacle", func(t *testing.T) {
		s, _ := obstacles.NewSphere(geometry.Vec3{1, 0, 0}, 1)
		a := NewAgent(0, geometry.Vec3{0.1, 0, 0}, geometry.Vec3{})
		g := BuildGraph([]*Agent{a}, p.NeighborRadius())
		g.Refresh(0)
		m := &ForceModel{Params: p, Obstacles: obstacles.NewStore(s)}
		m.Compute(a, g, geometry.Vec3{})
		if !a.Crashed {
			t.Error("expected crash inside obstacle")
		}
	})

	t.Run("crash is sticky", func(t *testing.T) {
		a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
		a.MarkCrashed()
		g := BuildGraph([]*Agent{a}, p.NeighborRadius())
		g.Refresh(0)
		m := &ForceModel{Params: p}
		m.Compute(a, g, geometry.Vec3{})
		Integrate(a, p, 1)
		if !a.Crashed {
			t.Error("crash flag cleared")
		}
	})
}

func TestObstacleForcePointsAway(t *testing.T) {
	p := DefaultParams()
	s, _ := obstacles.NewSphere(geometry.Vec3{2, 0, 0}, 1)
	m := &ForceModel{Params: p, Obstacles: obstacles.NewStore(s)}

	// Surface at x=1; agent 0.6 away leaves 0.43 after drone radius.
	total, forces, crashed := m.ObstacleForce(geometry.Vec3{0.4, 0, 0})
	if crashed {
		t.Fatal("unexpected crash")
	}
	if len(forces) != 1 {
		t.Fatalf("expected one obstacle contribution, got %d", len(forces))
	}
	if total.X() >= 0 {
		t.Errorf("avoidance should push to -X, got %v", total)
	}

	total, forces, _ = m.ObstacleForce(geometry.Vec3{-5, 0, 0})
	if total.Len() != 0 || len(forces) != 0 {
		t.Errorf("far obstacle should not act, got %v", total)
	}
}

func TestFeedbackForcesDoNotMove(t *testing.T) {
	p := DefaultParams()
	s, _ := obstacles.NewSphere(geometry.Vec3{3, 0, 0}, 1)
	a := NewAgent(0, geometry.Vec3{}, geometry.Vec3{})
	g := BuildGraph([]*Agent{a}, p.NeighborRadius())
	g.Refresh(0)

	m := &ForceModel{Params: p, Obstacles: obstacles.NewStore(s)}
	m.Compute(a, g, geometry.Vec3{})
	if len(a.FeedbackForces) != 1 {
		t.Errorf("feedback pass should see the sphere 2 units away, got %d", len(a.FeedbackForces))
	}
	if len(a.ObstacleForces) != 0 || a.Acceleration.Len() != 0 {
		t.Errorf("feedback forces leaked into motion: %v", a.Acceleration)
	}
}

func TestImmovableAgentIgnored(t *testing.T) {
	p := DefaultParams()
	wall := NewImmovableAgent(0, geometry.Vec3{})
	g := BuildGraph([]*Agent{wall}, p.NeighborRadius())
	g.Refresh(0)
	m := &ForceModel{Params: p}
	m.Compute(wall, g, geometry.Vec3{5, 0, 0})
	if wall.Acceleration.Len() != 0 {
		t.Error("immovable agent received a force")
	}
}
