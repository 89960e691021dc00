package controllers

import (
	"math"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/cmd/flocking/core"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// ObstacleStatus summarizes the obstacle situation after a tick.
type ObstacleStatus struct {
	WorkingSet int
	// Clearance is the smallest distance from a live agent to an obstacle
	// surface, or +Inf when none is in range.
	Clearance float64
	// NearMisses lists agents inside their avoidance radius.
	NearMisses []int
	Feedback   core.Feedback
	// Haptic is the leader's haptic intensity from its force history.
	Haptic float64
}

// ObstacleController evaluates proximity and swarm-level feedback.
type ObstacleController struct {
	feedback     *core.FeedbackCalculator
	enabled      bool
	minClearance float64
	nearMisses   int
}

// NewObstacleController creates a controller from the feedback settings.
func NewObstacleController(cfg config.FeedbackConfig) *ObstacleController {
	fc := core.NewFeedbackCalculator()
	fc.AxisScale = cfg.AxisScale
	fc.AxisFloor = cfg.AxisFloor
	fc.ActivationRadius = cfg.ActivationRadius
	fc.HorizontalOnly = cfg.HorizontalOnly
	fc.SmoothStep = cfg.SmoothStep
	fc.ActivationGamma = cfg.ActivationGamma
	fc.IntensityGamma = cfg.IntensityGamma
	fc.Actuators = cfg.Actuators
	return &ObstacleController{feedback: fc, enabled: cfg.Enabled, minClearance: math.Inf(1)}
}

// MinClearance returns the smallest clearance seen so far.
func (oc *ObstacleController) MinClearance() float64 { return oc.minClearance }

// NearMisses returns how many agent-ticks were spent inside the avoidance
// radius.
func (oc *ObstacleController) NearMisses() int { return oc.nearMisses }

// Update inspects sc after a Step.
func (oc *ObstacleController) Update(sc *swarm.Context) ObstacleStatus {
	ws := sc.Obstacles.WorkingSet()
	status := ObstacleStatus{WorkingSet: ws.Len(), Clearance: math.Inf(1)}
	radius := math.Max(sc.Params.AvoidanceRadius, sc.Params.AvoidanceRadiusFeedback)

	for _, a := range sc.Agents() {
		if !a.Movable || a.Crashed {
			continue
		}
		for _, p := range ws.ClosestPointsWithinRadius(a.Position, radius) {
			d := geometry.Distance(a.Position, p)
			status.Clearance = math.Min(status.Clearance, d)
			if d <= sc.Params.AvoidanceRadius {
				status.NearMisses = append(status.NearMisses, a.ID)
				break
			}
		}
	}
	oc.minClearance = math.Min(oc.minClearance, status.Clearance)
	oc.nearMisses += len(status.NearMisses)

	if leader := sc.Agent(sc.LeaderID); leader != nil {
		status.Haptic = leader.History().Haptic()
	}

	if oc.enabled {
		var pts []geometry.Vec3
		if g := sc.Graph(); g != nil {
			for _, a := range g.Main() {
				pts = append(pts, a.Position)
			}
		}
		status.Feedback = oc.feedback.Compute(pts, ws.Obstacles())
	}
	return status
}
