package swarm

import (
	"math"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// ObstacleQuerier returns candidate obstacle points near a position.
// *obstacles.Store and *obstacles.WorkingSet satisfy it.
type ObstacleQuerier interface {
	ClosestPointsWithinRadius(p geometry.Vec3, radius float64) []geometry.Vec3
}

// PotentialOffset returns c = (β − α) / (2·√(αβ)).
func PotentialOffset(alpha, beta float64) float64 {
	return (beta - alpha) / (2 * math.Sqrt(alpha*beta))
}

// CohesionIntensity is the pairwise potential at distance r for preferred
// distance dRef. It is zero at r = dRef.
func CohesionIntensity(r, dRef, a, b, c float64) float64 {
	diff := r - dRef
	return ((a+b)/2)*(math.Sqrt(1+(diff+c)*(diff+c))-math.Sqrt(1+c*c)) + (a-b)*diff/2
}

// CohesionIntensityDerivative is d/dr of CohesionIntensity. Negative below
// dRef (repulsion), positive above it (attraction).
func CohesionIntensityDerivative(r, dRef, a, b, c float64) float64 {
	diff := r - dRef
	return ((a+b)/2)*(diff+c)/math.Sqrt(1+(diff+c)*(diff+c)) + (a-b)/2
}

// NeighborWeight is the bump function: 1 below δ·r0, a cosine falloff to 0
// at r0, and 0 beyond.
func NeighborWeight(r, r0, delta float64) float64 {
	ratio := r / r0
	switch {
	case ratio < delta:
		return 1
	case ratio < 1:
		v := 1 + math.Cos(math.Pi*(ratio-delta)/(1-delta))
		return 0.25 * v * v
	default:
		return 0
	}
}

// NeighborWeightDerivative is the derivative of NeighborWeight with respect to
// r/r0.
func NeighborWeightDerivative(r, r0, delta float64) float64 {
	ratio := r / r0
	if ratio < delta || ratio >= 1 {
		return 0
	}
	arg := math.Pi * (ratio - delta) / (1 - delta)
	return -0.5 * (math.Pi / (1 - delta)) * (1 + math.Cos(arg)) * math.Sin(arg)
}

// CohesionForce returns the weighted potential gradient along rel, where rel
// points from the agent to the other body and r is the surface distance.
func CohesionForce(r, dRef, a, b, c, r0, delta float64, rel geometry.Vec3) geometry.Vec3 {
	weightDer := NeighborWeightDerivative(r, r0, delta)
	intensity := CohesionIntensity(r, dRef, a, b, c)
	intensityDer := CohesionIntensityDerivative(r, dRef, a, b, c)
	weight := NeighborWeight(r, r0, delta)

	magnitude := weightDer*intensity/r0 + weight*intensityDer
	return rel.Mul(magnitude / r)
}

// ForceModel computes accelerations from neighbors, obstacles and the
// reference velocity.
type ForceModel struct {
	Params    Params
	Obstacles ObstacleQuerier
}

// Compute updates a's acceleration, force breakdown and crash flags from the
// graph and the reference (migration) velocity. It reads but never writes
// other agents. Immovable agents are left as they are.
func (m *ForceModel) Compute(a *Agent, g *Graph, reference geometry.Vec3) {
	if !a.Movable {
		return
	}
	p := m.Params
	c := p.PotentialOffset()
	r0 := p.NeighborRadius()

	var cohesion, velDiff geometry.Vec3
	neighbors := g.Neighbors(a)
	for _, n := range neighbors {
		rel := n.Position.Sub(a.Position)
		dist := rel.Len() - 2*p.DroneRadius
		if dist <= geometry.Epsilon {
			a.MarkCrashed()
			velDiff = velDiff.Add(n.Velocity.Sub(a.Velocity))
			continue
		}
		if !n.Movable && dist < p.ImmovableClearance {
			a.MarkCrashed()
		}
		cohesion = cohesion.Add(CohesionForce(dist, p.DesiredSeparation, p.Alpha, p.Beta, c, r0, p.Delta, rel))
		velDiff = velDiff.Add(n.Velocity.Sub(a.Velocity))
	}

	migration := reference.Sub(a.Velocity).Mul(p.AlignmentGain)
	alignment := migration
	if len(neighbors) > 0 {
		alignment = velDiff.Mul(1 / float64(len(neighbors))).Add(migration).Mul(0.5)
	}

	obstacle, obstacleForces, crashed := m.obstacleForces(a.Position, p.AvoidanceRadius, p.ObstacleSeparation)
	if crashed {
		a.MarkCrashed()
	}
	_, feedbackForces, feedbackCrash := m.obstacleForces(a.Position, p.AvoidanceRadiusFeedback, p.AvoidanceRadiusFeedback)
	if feedbackCrash {
		a.CrashedFeedback = true
	}

	if !g.InMain(a) {
		alignment = geometry.Zero
	}

	a.Forces = Forces{Cohesion: cohesion, Obstacle: obstacle, Alignment: alignment}
	a.ObstacleForces = obstacleForces
	a.FeedbackForces = feedbackForces
	a.Acceleration = geometry.ClampMagnitude(cohesion.Add(obstacle).Add(alignment), p.MaxForce)
}

// ObstacleForce returns the summed avoidance force at pos using the regular
// avoidance radius, with the per-obstacle contributions and whether pos is
// touching an obstacle.
func (m *ForceModel) ObstacleForce(pos geometry.Vec3) (geometry.Vec3, []geometry.Vec3, bool) {
	return m.obstacleForces(pos, m.Params.AvoidanceRadius, m.Params.ObstacleSeparation)
}

func (m *ForceModel) obstacleForces(pos geometry.Vec3, radius, dRef float64) (geometry.Vec3, []geometry.Vec3, bool) {
	if m.Obstacles == nil || radius <= 0 {
		return geometry.Zero, nil, false
	}
	p := m.Params
	c := p.PotentialOffset()

	var total geometry.Vec3
	var forces []geometry.Vec3
	var crashed bool
	for _, cp := range m.Obstacles.ClosestPointsWithinRadius(pos, radius) {
		dist := pos.Sub(cp).Len() - p.DroneRadius
		if dist <= geometry.Epsilon {
			crashed = true
			continue
		}
		f := CohesionForce(dist, dRef, p.Alpha, p.Beta, c, radius, p.Delta, cp.Sub(pos)).
			Mul(NeighborWeight(dist, dRef, p.Delta) * p.AvoidanceForce)
		forces = append(forces, f)
		total = total.Add(f)
	}
	return total, forces, crashed
}
