// Package swarm implements the flocking core: agent state, the proximity
// graph, the force model, the integrator and the per-tick driver.
package swarm

import (
	"errors"
	"fmt"
	"math"
)

// Params are the tuning values shared by every agent of a swarm.
type Params struct {
	// DesiredSeparation is the preferred spacing between neighbors.
	DesiredSeparation float64 `yaml:"desired_separation" json:"desired_separation"`
	// NeighborMargin widens the neighbor radius beyond DesiredSeparation.
	NeighborMargin float64 `yaml:"neighbor_margin" json:"neighbor_margin"`

	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Delta float64 `yaml:"delta" json:"delta"`
	// AlignmentGain scales the pull toward the reference velocity.
	AlignmentGain float64 `yaml:"alignment_gain" json:"alignment_gain"`

	AvoidanceRadius         float64 `yaml:"avoidance_radius" json:"avoidance_radius"`
	AvoidanceRadiusFeedback float64 `yaml:"avoidance_radius_feedback" json:"avoidance_radius_feedback"`
	ObstacleSeparation      float64 `yaml:"obstacle_separation" json:"obstacle_separation"`
	AvoidanceForce          float64 `yaml:"avoidance_force" json:"avoidance_force"`

	DroneRadius float64 `yaml:"drone_radius" json:"drone_radius"`
	// ImmovableClearance is the gap below which touching an immovable agent
	// counts as a crash.
	ImmovableClearance float64 `yaml:"immovable_clearance" json:"immovable_clearance"`
	Damping            float64 `yaml:"damping" json:"damping"`
	MaxSpeed           float64 `yaml:"max_speed" json:"max_speed"`
	MaxForce           float64 `yaml:"max_force" json:"max_force"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		DesiredSeparation:       5,
		NeighborMargin:          2,
		Alpha:                   1.5,
		Beta:                    1.0,
		Delta:                   1.0,
		AlignmentGain:           1.0,
		AvoidanceRadius:         1.0,
		AvoidanceRadiusFeedback: 3.0,
		ObstacleSeparation:      1.0,
		AvoidanceForce:          10,
		DroneRadius:             0.17,
		ImmovableClearance:      0.5,
		Damping:                 0.98,
		MaxSpeed:                5,
		MaxForce:                10,
	}
}

// NeighborRadius is the interaction range: max(2·dSep, dSep + margin).
func (p Params) NeighborRadius() float64 {
	return math.Max(2*p.DesiredSeparation, p.DesiredSeparation+p.NeighborMargin)
}

// PotentialOffset is the c term of the cohesion potential.
func (p Params) PotentialOffset() float64 {
	return PotentialOffset(p.Alpha, p.Beta)
}

// Validate checks that the parameters describe a usable swarm.
func (p Params) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"desired_separation", p.DesiredSeparation},
		{"alpha", p.Alpha},
		{"beta", p.Beta},
		{"avoidance_radius", p.AvoidanceRadius},
		{"obstacle_separation", p.ObstacleSeparation},
		{"max_speed", p.MaxSpeed},
		{"max_force", p.MaxForce},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", f.name, f.value))
		}
	}
	if p.Delta <= 0 || p.Delta > 1 {
		errs = append(errs, fmt.Errorf("delta must be in (0, 1], got %v", p.Delta))
	}
	if p.Damping <= 0 || p.Damping > 1 {
		errs = append(errs, fmt.Errorf("damping must be in (0, 1], got %v", p.Damping))
	}
	if p.NeighborMargin < 0 || p.DroneRadius < 0 || p.AvoidanceForce < 0 || p.AlignmentGain < 0 || p.ImmovableClearance < 0 {
		errs = append(errs, errors.New("neighbor_margin, drone_radius, avoidance_force, alignment_gain and immovable_clearance must not be negative"))
	}
	if p.AvoidanceRadiusFeedback < 0 {
		errs = append(errs, fmt.Errorf("avoidance_radius_feedback must not be negative, got %v", p.AvoidanceRadiusFeedback))
	}
	return errors.Join(errs...)
}
