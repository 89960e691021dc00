package swarm

import (
	"math"
	"testing"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
)

func ring(n int, radius float64) []*Agent {
	agents := make([]*Agent, n)
	for i := range agents {
		theta := 2 * math.Pi * float64(i) / float64(n)
		agents[i] = NewAgent(i, geometry.Vec3{radius * math.Cos(theta), 5, radius * math.Sin(theta)}, geometry.Vec3{})
	}
	return agents
}

func newTestContext(t *testing.T, agents []*Agent, store *obstacles.Store) *Context {
	t.Helper()
	if store == nil {
		store = obstacles.NewStore()
	}
	c, err := NewContext(DefaultParams(), agents, store, WithLogger(logger.Discard()), WithLeader(0))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c
}

func TestNewContextFailsFast(t *testing.T) {
	if _, err := NewContext(DefaultParams(), nil, nil); err == nil {
		t.Error("expected error without obstacle store")
	}
	bad := DefaultParams()
	bad.Delta = 0
	if _, err := NewContext(bad, nil, obstacles.NewStore()); err == nil {
		t.Error("expected error for invalid params")
	}
	dup := []*Agent{NewAgent(1, geometry.Vec3{}, geometry.Vec3{}), NewAgent(1, geometry.Vec3{}, geometry.Vec3{})}
	if _, err := NewContext(DefaultParams(), dup, obstacles.NewStore()); err == nil {
		t.Error("expected error for duplicate ids")
	}
}

func TestStepMovesTowardReference(t *testing.T) {
	c := newTestContext(t, ring(6, 4), nil)
	c.Alignment = geometry.Vec3{2, 0, 0}

	before := geometry.Centroid(c.Positions())
	for i := 0; i < 50; i++ {
		c.Step()
	}
	after := geometry.Centroid(c.Positions())
	if after.X() <= before.X() {
		t.Errorf("swarm did not migrate: %v -> %v", before, after)
	}
	if c.Tick() != 50 {
		t.Errorf("tick = %d", c.Tick())
	}
	for _, a := range c.Agents() {
		if a.Layer == 0 {
			t.Errorf("agent %d lost the leader", a.ID)
		}
		if a.Score != 1 {
			t.Errorf("agent %d score = %v", a.ID, a.Score)
		}
		if a.History().Len() == 0 {
			t.Errorf("agent %d has no force history", a.ID)
		}
	}
}

func TestStepIsDeterministic(t *testing.T) {
	run := func() []geometry.Vec3 {
		c := newTestContext(t, ring(8, 3), nil)
		c.Alignment = geometry.Vec3{1, 0, 1}
		for i := 0; i < 30; i++ {
			c.Step()
		}
		return c.Positions()
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("agent %d diverged: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStepSkipsNonFiniteAgent(t *testing.T) {
	agents := ring(4, 3)
	agents[2].Velocity = geometry.Vec3{math.NaN(), 0, 0}
	c := newTestContext(t, agents, nil)

	res := c.Step()
	if len(res.Skipped) != 1 || res.Skipped[0] != agents[2] {
		t.Fatalf("skipped = %v, want agent 2", res.Skipped)
	}
	for _, a := range agents {
		if a == agents[2] {
			continue
		}
		if !a.Finite() {
			t.Errorf("NaN spread to agent %d", a.ID)
		}
	}
}

func TestStepReportsNewCrashesOnce(t *testing.T) {
	s, _ := obstacles.NewSphere(geometry.Vec3{0, 5, 0}, 1)
	agents := []*Agent{
		NewAgent(0, geometry.Vec3{0.5, 5, 0}, geometry.Vec3{}),
		NewAgent(1, geometry.Vec3{8, 5, 0}, geometry.Vec3{}),
	}
	c := newTestContext(t, agents, obstacles.NewStore(s))

	res := c.Step()
	if len(res.Crashed) != 1 || res.Crashed[0].ID != 0 {
		t.Fatalf("crashed = %v, want agent 0", res.Crashed)
	}
	res = c.Step()
	if len(res.Crashed) != 0 {
		t.Error("crash reported twice")
	}

	removed := c.RemoveCrashed()
	if len(removed) != 1 || len(c.Agents()) != 1 || c.Agents()[0].ID != 1 {
		t.Errorf("RemoveCrashed left %d agents", len(c.Agents()))
	}
}

func TestStepRefreshesWorkingSet(t *testing.T) {
	near, _ := obstacles.NewSphere(geometry.Vec3{0, 0, 0}, 1)
	far, _ := obstacles.NewSphere(geometry.Vec3{500, 0, 0}, 1)
	store := obstacles.NewStore(near, far)
	c := newTestContext(t, ring(4, 3), store)

	res := c.Step()
	if res.Obstacles != 1 || store.WorkingSet().Len() != 1 {
		t.Errorf("working set = %d, want 1", store.WorkingSet().Len())
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	c := newTestContext(t, ring(3, 3), nil)
	snap := c.Snapshot()
	snap[0].Position = geometry.Vec3{99, 99, 99}
	snap[0].MarkCrashed()
	if c.Agents()[0].Position == snap[0].Position || c.Agents()[0].Crashed {
		t.Error("snapshot shares state with live agents")
	}
}

func BenchmarkStep(b *testing.B) {
	c, _ := NewContext(DefaultParams(), ring(50, 15), obstacles.NewStore(), WithLogger(logger.Discard()))
	c.Alignment = geometry.Vec3{1, 0, 0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Step()
	}
}

func TestAddAgentJoinsNextStep(t *testing.T) {
	c := newTestContext(t, ring(3, 2), nil)

	dummy := NewImmovableAgent(10, geometry.Vec3{2.3, 5, 0})
	if err := c.AddAgent(dummy); err != nil {
		t.Fatal(err)
	}
	if err := c.AddAgent(NewImmovableAgent(1, geometry.Vec3{})); err == nil {
		t.Error("expected an error for a duplicate id")
	}
	if got := len(c.Agents()); got != 4 {
		t.Fatalf("agents = %d, want 4", got)
	}

	res := c.Step()
	if len(res.Crashed) != 1 || res.Crashed[0].ID != 0 {
		t.Errorf("crashed = %v, want agent 0 next to the dummy", res.Crashed)
	}
	if dummy.Position != (geometry.Vec3{2.3, 5, 0}) || dummy.Crashed {
		t.Errorf("dummy changed: %+v", dummy)
	}
}
