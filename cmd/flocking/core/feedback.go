package core

import (
	"math"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
)

// FeedbackCalculator treats the swarm as one ellipsoid and turns nearby
// obstacles into horizontal push directions with an intensity in [0,1].
type FeedbackCalculator struct {
	AxisScale        geometry.Vec3
	AxisFloor        geometry.Vec3
	ActivationRadius float64
	HorizontalOnly   bool
	SmoothStep       bool
	ActivationGamma  float64
	IntensityGamma   float64
	// Actuators are world-space directions; each obstacle force feeds the
	// closest one.
	Actuators []geometry.Vec3
	// ActuatorSum adds intensities per actuator (clamped) instead of taking
	// the max.
	ActuatorSum bool
}

// Feedback is the result of one evaluation.
type Feedback struct {
	Centroid geometry.Vec3
	Axes     geometry.Vec3
	// Forces holds one direction·intensity vector per active obstacle.
	Forces    []geometry.Vec3
	Actuators []float64
	// Peak is the strongest single obstacle intensity.
	Peak float64
}

// NewFeedbackCalculator returns a calculator with the stock shape.
func NewFeedbackCalculator() *FeedbackCalculator {
	return &FeedbackCalculator{
		AxisScale:        geometry.Vec3{1, 1, 1},
		AxisFloor:        geometry.Vec3{0.75, 0.5, 0.75},
		ActivationRadius: 5,
		SmoothStep:       true,
		ActivationGamma:  1,
		IntensityGamma:   1,
	}
}

// Ellipsoid returns the centroid of points and the per-axis half extents,
// floored and scaled.
func (fc *FeedbackCalculator) Ellipsoid(points []geometry.Vec3) (geometry.Vec3, geometry.Vec3) {
	if len(points) == 0 {
		return geometry.Zero, geometry.Vec3{1, 1, 1}
	}
	c := geometry.Centroid(points)
	var ext geometry.Vec3
	for _, p := range points {
		d := p.Sub(c)
		for i := 0; i < 3; i++ {
			ext[i] = math.Max(ext[i], math.Abs(d[i]))
		}
	}
	var axes geometry.Vec3
	for i := 0; i < 3; i++ {
		axes[i] = math.Max(ext[i], fc.AxisFloor[i]) * math.Max(fc.AxisScale[i], 1e-4)
	}
	return c, axes
}

// Intensity maps the distance d from the ellipsoid surface to p, measured
// along the ray from the centroid, into 1/(1+d).
func (fc *FeedbackCalculator) Intensity(centroid, axes, p geometry.Vec3) float64 {
	v := p.Sub(centroid)
	l := v.Len()
	if l < 1e-4 {
		return 1
	}
	denom := 0.0
	for i := 0; i < 3; i++ {
		if axes[i] > 0 {
			denom += v[i] * v[i] / (axes[i] * axes[i])
		}
	}
	if denom <= 0 {
		return 0
	}
	surface := l / math.Sqrt(denom)
	intensity := clamp01(1 / (1 + math.Max(l-surface, 0)))
	return shape(intensity, fc.IntensityGamma)
}

// Activation gates a distance: 1 at d = 0, 0 at d ≥ radius. A non-positive
// radius disables the gate.
func (fc *FeedbackCalculator) Activation(d float64) float64 {
	r := fc.ActivationRadius
	if r <= 0 {
		return 1
	}
	if d >= r {
		return 0
	}
	t := 1 - d/r
	if fc.SmoothStep {
		t = t * t * (3 - 2*t)
	}
	return clamp01(shape(t, fc.ActivationGamma))
}

// Compute evaluates the obstacles against the swarm at points, usually the
// main component.
func (fc *FeedbackCalculator) Compute(points []geometry.Vec3, obs []obstacles.Obstacle) Feedback {
	fb := Feedback{Actuators: make([]float64, len(fc.Actuators))}
	if len(points) == 0 {
		return fb
	}
	fb.Centroid, fb.Axes = fc.Ellipsoid(points)

	for _, o := range obs {
		closest := o.ClosestPoint(fb.Centroid)
		var d float64
		if fc.HorizontalOnly {
			d = geometry.Horizontal(closest.Sub(fb.Centroid)).Len()
		} else {
			d = closest.Sub(fb.Centroid).Len()
		}
		gain := fc.Activation(d)
		if gain <= 0 {
			continue
		}

		dir := geometry.Horizontal(fb.Centroid.Sub(closest))
		if dir.LenSqr() < 1e-6 {
			continue
		}
		dir = dir.Normalize()

		intensity := fc.Intensity(fb.Centroid, fb.Axes, closest) * gain
		fb.Forces = append(fb.Forces, dir.Mul(intensity))
		fb.Peak = math.Max(fb.Peak, intensity)

		if idx := fc.closestActuator(dir); idx >= 0 {
			if fc.ActuatorSum {
				fb.Actuators[idx] = clamp01(fb.Actuators[idx] + intensity)
			} else {
				fb.Actuators[idx] = math.Max(fb.Actuators[idx], intensity)
			}
		}
	}
	return fb
}

func (fc *FeedbackCalculator) closestActuator(dir geometry.Vec3) int {
	best, bestDot := -1, -2.0
	for i, a := range fc.Actuators {
		dot := dir.Dot(geometry.Normalize(a))
		if dot > bestDot {
			best, bestDot = i, dot
		}
	}
	return best
}

func shape(v, gamma float64) float64 {
	if gamma > 0.001 && math.Abs(gamma-1) > 0.001 {
		return math.Pow(v, gamma)
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
