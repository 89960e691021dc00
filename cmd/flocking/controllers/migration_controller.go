package controllers

import (
	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// WaypointEvent reports a waypoint being reached.
type WaypointEvent struct {
	Index     int
	Waypoint  geometry.Vec3
	Reference geometry.Vec3
	Lap       int
	// RouteComplete is set when the final waypoint of a non-looping route
	// was reached.
	RouteComplete bool
}

// MigrationController steers the swarm along a waypoint route by setting
// the context's reference velocity.
type MigrationController struct {
	waypoints     []geometry.Vec3
	cruiseSpeed   float64
	arrivalRadius float64
	loop          bool
	current       int
	lap           int
	complete      bool
}

// NewMigrationController creates a controller for the route in cfg.
func NewMigrationController(cfg config.MigrationConfig) *MigrationController {
	return &MigrationController{
		waypoints:     append([]geometry.Vec3(nil), cfg.Waypoints...),
		cruiseSpeed:   cfg.CruiseSpeed,
		arrivalRadius: cfg.ArrivalRadius,
		loop:          cfg.Loop,
		complete:      len(cfg.Waypoints) == 0,
	}
}

// Current returns the index of the waypoint being flown to.
func (mc *MigrationController) Current() int { return mc.current }

// Complete reports whether a non-looping route is finished.
func (mc *MigrationController) Complete() bool { return mc.complete }

// Target returns the active waypoint.
func (mc *MigrationController) Target() (geometry.Vec3, bool) {
	if mc.complete {
		return geometry.Zero, false
	}
	return mc.waypoints[mc.current], true
}

// ReferencePoint is where the swarm is measured from: the leader while it
// flies, else the centroid of the main component, else of every live agent.
func ReferencePoint(sc *swarm.Context) (geometry.Vec3, bool) {
	if leader := sc.Agent(sc.LeaderID); leader != nil && leader.Movable && !leader.Crashed {
		return leader.Position, true
	}
	if g := sc.Graph(); g != nil {
		if main := g.Main(); len(main) > 0 {
			pts := make([]geometry.Vec3, 0, len(main))
			for _, a := range main {
				pts = append(pts, a.Position)
			}
			return geometry.Centroid(pts), true
		}
	}
	var pts []geometry.Vec3
	for _, a := range sc.Agents() {
		if a.Movable && !a.Crashed {
			pts = append(pts, a.Position)
		}
	}
	if len(pts) == 0 {
		return geometry.Zero, false
	}
	return geometry.Centroid(pts), true
}

// Update sets sc.Alignment toward the active waypoint and advances the
// route when the reference point arrives.
func (mc *MigrationController) Update(sc *swarm.Context) (WaypointEvent, bool) {
	ref, ok := ReferencePoint(sc)
	if !ok || mc.complete {
		sc.Alignment = geometry.Zero
		return WaypointEvent{}, false
	}

	target := mc.waypoints[mc.current]
	if geometry.Distance(ref, target) > mc.arrivalRadius {
		sc.Alignment = geometry.Normalize(target.Sub(ref)).Mul(mc.cruiseSpeed)
		return WaypointEvent{}, false
	}

	ev := WaypointEvent{Index: mc.current, Waypoint: target, Reference: ref, Lap: mc.lap}
	mc.current++
	if mc.current == len(mc.waypoints) {
		if mc.loop {
			mc.current = 0
			mc.lap++
		} else {
			mc.complete = true
			ev.RouteComplete = true
			sc.Alignment = geometry.Zero
			return ev, true
		}
	}
	next := mc.waypoints[mc.current]
	sc.Alignment = geometry.Normalize(next.Sub(ref)).Mul(mc.cruiseSpeed)
	return ev, true
}
