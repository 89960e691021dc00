// Package metrics derives swarm quality scores from a proximity graph.
// Every function is pure and returns a neutral value on empty input.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// Response curve constants for the deviation energy and shrink scores.
const (
	deviationFloor = 0.3
	deviationSpan  = 0.7 - 0.22
	deviationBias  = 0.1

	shrinkNeighborShare = 0.3
	shrinkLowestShare   = 0.3
	shrinkLow           = 0.55
	shrinkHigh          = 0.75
)

// Snapshot collects every metric for one tick.
type Snapshot struct {
	Agents                  int     `json:"agents"`
	Components              int     `json:"components"`
	MainSize                int     `json:"main_size"`
	RelativeConnectivity    float64 `json:"relative_connectivity"`
	CohesionRadius          float64 `json:"cohesion_radius"`
	DeviationEnergy         float64 `json:"deviation_energy"`
	MeanDistanceRatio       float64 `json:"mean_distance_ratio"`
	VelocityMismatch        float64 `json:"velocity_mismatch"`
	OverallCohesion         float64 `json:"overall_cohesion"`
	AskingToShrink          float64 `json:"asking_to_shrink"`
	ConnectionScore         float64 `json:"connection_score"`
	LineOfSightConnectivity float64 `json:"line_of_sight_connectivity"`
}

// Compute evaluates every metric for g. los may be nil, in which case the
// line-of-sight connectivity equals the plain one.
func Compute(g *swarm.Graph, p swarm.Params, los swarm.LineOfSight) Snapshot {
	agents := g.Agents()
	dev, ratio := NormalizedDeviationEnergy(agents, p.DesiredSeparation)
	s := Snapshot{
		Agents:               g.Len(),
		Components:           ConnectedComponents(g),
		MainSize:             len(g.Main()),
		RelativeConnectivity: RelativeConnectivity(g),
		CohesionRadius:       CohesionRadius(agents),
		DeviationEnergy:      dev,
		MeanDistanceRatio:    ratio,
		VelocityMismatch:     NormalizedVelocityMismatch(agents, p.MaxSpeed),
		OverallCohesion:      OverallCohesionScore(g, p),
		AskingToShrink:       AskingToShrinkScore(g, p.DesiredSeparation),
		ConnectionScore:      ConnectionScore(g, p.DesiredSeparation),
	}
	s.LineOfSightConnectivity = s.RelativeConnectivity
	if los != nil {
		s.LineOfSightConnectivity = RelativeConnectivity(swarm.BuildGraphWith(agents, swarm.VisibilityAdjacency(p.NeighborRadius(), los)))
	}
	return s
}

// ConnectedComponents returns the number of components in g.
func ConnectedComponents(g *swarm.Graph) int {
	return len(g.Components())
}

// RelativeConnectivity is (n − components) / (n − 1), or 1 for n ≤ 1.
func RelativeConnectivity(g *swarm.Graph) float64 {
	n := g.Len()
	if n <= 1 {
		return 1
	}
	return float64(n-ConnectedComponents(g)) / float64(n-1)
}

// CohesionRadius is the largest distance from the centroid to any agent.
func CohesionRadius(agents []*swarm.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	centroid := geometry.Centroid(positions(agents))
	var r float64
	for _, a := range agents {
		r = math.Max(r, geometry.Distance(a.Position, centroid))
	}
	return r
}

// NormalizedDeviationEnergy scores how far pairwise distances stray from
// dRef. It also returns the mean pairwise distance divided by dRef.
func NormalizedDeviationEnergy(agents []*swarm.Agent, dRef float64) (score, meanDistanceRatio float64) {
	n := len(agents)
	if n < 2 || dRef <= 0 {
		return 0, 0
	}
	pairs := n * (n - 1) / 2
	sqErr := make([]float64, 0, pairs)
	dists := make([]float64, 0, pairs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geometry.Distance(agents[i].Position, agents[j].Position)
			dists = append(dists, d)
			sqErr = append(sqErr, (d-dRef)*(d-dRef))
		}
	}
	energy := stat.Mean(sqErr, nil) / (dRef * dRef)
	score = clamp01(clamp01((energy-deviationFloor)/deviationSpan) - deviationBias)
	return score, stat.Mean(dists, nil) / dRef
}

// NormalizedVelocityMismatch is the mean squared deviation from the average
// velocity over maxSpeed², clamped to [0, 1].
func NormalizedVelocityMismatch(agents []*swarm.Agent, maxSpeed float64) float64 {
	if len(agents) == 0 || maxSpeed <= 0 {
		return 0
	}
	vels := make([]geometry.Vec3, len(agents))
	for i, a := range agents {
		vels[i] = a.Velocity
	}
	avg := geometry.Centroid(vels)
	sq := make([]float64, len(agents))
	for i, v := range vels {
		sq[i] = v.Sub(avg).LenSqr()
	}
	return clamp01(stat.Mean(sq, nil) / (maxSpeed * maxSpeed))
}

// OverallCohesionScore averages the connectivity, radius, deviation and
// velocity errors. Lower is better; 0 for n ≤ 1.
func OverallCohesionScore(g *swarm.Graph, p swarm.Params) float64 {
	agents := g.Agents()
	if len(agents) <= 1 {
		return 0
	}
	dev, _ := NormalizedDeviationEnergy(agents, p.DesiredSeparation)
	errs := []float64{
		1 - RelativeConnectivity(g),
		clamp01(CohesionRadius(agents) / p.NeighborRadius()),
		dev,
		NormalizedVelocityMismatch(agents, p.MaxSpeed),
	}
	return stat.Mean(errs, nil)
}

// ConnectionScore is the deviation energy of the main component when the
// swarm contains immovable agents, and of the whole swarm otherwise.
func ConnectionScore(g *swarm.Graph, dRef float64) float64 {
	agents := g.Agents()
	for _, a := range agents {
		if !a.Movable {
			agents = g.Main()
			break
		}
	}
	score, _ := NormalizedDeviationEnergy(agents, dRef)
	return score
}

// AskingToShrinkScore is 1 when the tightest part of the main component packs
// below 0.55·dRef and 0 above 0.75·dRef. For every main agent it averages the
// distance to its nearest 30% neighbors, keeps the lowest 30% of those ratios
// and maps their mean linearly in between.
func AskingToShrinkScore(g *swarm.Graph, dRef float64) float64 {
	if dRef <= 0 {
		return 0
	}
	take := int(float64(g.Len()) * shrinkNeighborShare)
	var ratios []float64
	for _, a := range g.Main() {
		neighbors := g.Neighbors(a)
		if len(neighbors) == 0 {
			continue
		}
		dists := make([]float64, len(neighbors))
		for i, n := range neighbors {
			dists[i] = geometry.Distance(a.Position, n.Position)
		}
		sort.Float64s(dists)
		k := min(take, len(dists))
		if k == 0 {
			continue
		}
		ratios = append(ratios, floats.Sum(dists[:k])/float64(k)/dRef)
	}
	if len(ratios) == 0 {
		return 0
	}
	sort.Float64s(ratios)
	lowest := max(int(float64(len(ratios))*shrinkLowestShare), 1)
	s := stat.Mean(ratios[:lowest], nil)
	s = (s - shrinkLow) / (shrinkHigh - shrinkLow)
	s = math.Min(s, 1)
	return 1 - math.Max(s, 0)
}

func positions(agents []*swarm.Agent) []geometry.Vec3 {
	out := make([]geometry.Vec3, len(agents))
	for i, a := range agents {
		out[i] = a.Position
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
