package controllers

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

func newContext(t *testing.T, store *obstacles.Store, agents ...*swarm.Agent) *swarm.Context {
	t.Helper()
	if store == nil {
		store = obstacles.NewStore()
	}
	sc, err := swarm.NewContext(swarm.DefaultParams(), agents, store,
		swarm.WithLeader(0), swarm.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func approx(a, b geometry.Vec3) bool { return a.Sub(b).Len() < 1e-9 }

func TestMigrationControllerRoute(t *testing.T) {
	leader := swarm.NewAgent(0, geometry.Zero, geometry.Zero)
	sc := newContext(t, nil, leader, swarm.NewAgent(1, geometry.Vec3{0, 0, 4}, geometry.Zero))
	mc := NewMigrationController(config.MigrationConfig{
		Enabled:       true,
		CruiseSpeed:   2,
		ArrivalRadius: 1,
		Waypoints:     []geometry.Vec3{{10, 0, 0}, {10, 0, 10}},
	})

	if _, reached := mc.Update(sc); reached {
		t.Fatal("should not arrive at the start")
	}
	if !approx(sc.Alignment, geometry.Vec3{2, 0, 0}) {
		t.Errorf("alignment = %v, want (2,0,0)", sc.Alignment)
	}

	leader.Position = geometry.Vec3{9.5, 0, 0}
	ev, reached := mc.Update(sc)
	if !reached || ev.Index != 0 || ev.RouteComplete {
		t.Fatalf("event = %+v, reached = %v", ev, reached)
	}
	if mc.Current() != 1 {
		t.Errorf("current = %d, want 1", mc.Current())
	}
	if sc.Alignment.Z() <= 0 || math.Abs(sc.Alignment.Len()-2) > 1e-9 {
		t.Errorf("alignment %v should head to the next waypoint at cruise speed", sc.Alignment)
	}

	leader.Position = geometry.Vec3{10, 0, 10}
	ev, reached = mc.Update(sc)
	if !reached || !ev.RouteComplete || !mc.Complete() {
		t.Fatalf("route should be complete: %+v", ev)
	}
	if sc.Alignment != geometry.Zero {
		t.Errorf("alignment after completion = %v", sc.Alignment)
	}
	if _, ok := mc.Target(); ok {
		t.Error("completed route has no target")
	}
}

func TestMigrationControllerLoops(t *testing.T) {
	leader := swarm.NewAgent(0, geometry.Vec3{5, 0, 0}, geometry.Zero)
	sc := newContext(t, nil, leader)
	mc := NewMigrationController(config.MigrationConfig{
		CruiseSpeed:   1,
		ArrivalRadius: 1,
		Loop:          true,
		Waypoints:     []geometry.Vec3{{5, 0, 0}},
	})

	for lap := 0; lap < 3; lap++ {
		ev, reached := mc.Update(sc)
		if !reached || ev.Lap != lap || ev.RouteComplete {
			t.Fatalf("lap %d event = %+v", lap, ev)
		}
	}
}

func TestReferencePointFallsBackWhenLeaderCrashed(t *testing.T) {
	leader := swarm.NewAgent(0, geometry.Vec3{100, 0, 0}, geometry.Zero)
	leader.MarkCrashed()
	sc := newContext(t, nil, leader,
		swarm.NewAgent(1, geometry.Vec3{0, 0, 0}, geometry.Zero),
		swarm.NewAgent(2, geometry.Vec3{2, 0, 0}, geometry.Zero),
	)

	ref, ok := ReferencePoint(sc)
	if !ok || !approx(ref, geometry.Vec3{1, 0, 0}) {
		t.Errorf("reference = %v, want centroid of live agents", ref)
	}
}

func TestObstacleControllerReportsNearMisses(t *testing.T) {
	pillar, err := obstacles.NewCylinder(geometry.Vec3{0, 0, 0}, 1, 10, geometry.Identity())
	if err != nil {
		t.Fatal(err)
	}
	sc := newContext(t, obstacles.NewStore(pillar),
		swarm.NewAgent(0, geometry.Vec3{1.5, 0, 0}, geometry.Zero),
		swarm.NewAgent(1, geometry.Vec3{3, 0, 0}, geometry.Zero),
		swarm.NewAgent(2, geometry.Vec3{30, 0, 0}, geometry.Zero),
	)
	sc.Step()

	oc := NewObstacleController(config.GetDefaultConfig().Feedback)
	status := oc.Update(sc)

	if status.WorkingSet != 1 {
		t.Errorf("working set = %d", status.WorkingSet)
	}
	if len(status.NearMisses) != 1 || status.NearMisses[0] != 0 {
		t.Errorf("near misses = %v, want [0]", status.NearMisses)
	}
	if math.Abs(status.Clearance-0.5) > 0.05 || oc.MinClearance() != status.Clearance {
		t.Errorf("clearance = %v, min = %v", status.Clearance, oc.MinClearance())
	}
	if len(status.Feedback.Forces) == 0 {
		t.Error("pillar next to the main component should produce feedback")
	}
	if oc.NearMisses() != 1 {
		t.Errorf("near miss count = %d", oc.NearMisses())
	}
}

func TestPredictionControllerWarnsOnce(t *testing.T) {
	wall, _ := obstacles.NewBox(geometry.Vec3{3, 5, 0}, geometry.Vec3{1, 20, 20}, geometry.Identity())
	sc := newContext(t, obstacles.NewStore(wall),
		swarm.NewAgent(0, geometry.Vec3{2.4, 5, 0}, geometry.Vec3{5, 0, 0}),
		swarm.NewAgent(1, geometry.Vec3{-6, 5, 0}, geometry.Zero),
	)
	sc.Alignment = geometry.Vec3{5, 0, 0}

	pc := NewPredictionController(config.PredictionConfig{
		Enabled:        true,
		Interval:       5 * time.Millisecond,
		Steps:          5,
		StepMultiplier: 1,
		RestartDelay:   5 * time.Millisecond,
	}, sc, logger.Discard())
	if err := pc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer pc.Stop()

	poll := func() []int {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if res, crashes := pc.Poll(); res != nil {
				ids := make([]int, len(crashes))
				for i, c := range crashes {
					ids[i] = c.AgentID
				}
				return ids
			}
			time.Sleep(2 * time.Millisecond)
		}
		t.Fatal("no forecast arrived")
		return nil
	}

	pc.Publish(sc)
	if ids := poll(); len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("first forecast crashes = %v, want [0]", ids)
	}

	pc.Publish(sc)
	if ids := poll(); len(ids) != 0 {
		t.Errorf("second forecast should not warn again, got %v", ids)
	}

	pc.Forget(0)
	pc.Publish(sc)
	if ids := poll(); len(ids) != 1 {
		t.Errorf("after Forget the crash should be reported again, got %v", ids)
	}
}
