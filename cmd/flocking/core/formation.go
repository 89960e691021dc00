package core

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// Formation places the drones of a swarm at spawn time.
type Formation interface {
	// Position returns the spawn point of drone index out of count.
	Position(index, count int, center geometry.Vec3, rng *rand.Rand) geometry.Vec3
	Spacing() float64
}

// CircleFormation spreads drones evenly on a horizontal ring at Height
// above the center with a small vertical jitter.
type CircleFormation struct {
	Radius float64
	Height float64
	Jitter float64
}

func (f *CircleFormation) Spacing() float64 { return f.Radius }

func (f *CircleFormation) Position(index, count int, center geometry.Vec3, rng *rand.Rand) geometry.Vec3 {
	theta := float64(index) * 2 * math.Pi / float64(max(count, 1))
	jitter := 0.0
	if f.Jitter > 0 && rng != nil {
		jitter = (rng.Float64() - 0.5) * f.Jitter
	}
	return center.Add(geometry.Vec3{
		f.Radius * math.Cos(theta),
		f.Height + jitter,
		f.Radius * math.Sin(theta),
	})
}

// GridFormation fills a square horizontal grid row by row.
type GridFormation struct {
	Gap    float64
	Height float64
}

func (f *GridFormation) Spacing() float64 { return f.Gap }

func (f *GridFormation) Position(index, count int, center geometry.Vec3, _ *rand.Rand) geometry.Vec3 {
	side := int(math.Ceil(math.Sqrt(float64(max(count, 1)))))
	row, col := index/side, index%side
	offset := float64(side-1) * f.Gap / 2
	return center.Add(geometry.Vec3{
		float64(col)*f.Gap - offset,
		f.Height,
		float64(row)*f.Gap - offset,
	})
}

// LineFormation lines drones up along Z, centered on the center.
type LineFormation struct {
	Gap    float64
	Height float64
}

func (f *LineFormation) Spacing() float64 { return f.Gap }

func (f *LineFormation) Position(index, count int, center geometry.Vec3, _ *rand.Rand) geometry.Vec3 {
	offset := float64(count-1) * f.Gap / 2
	return center.Add(geometry.Vec3{0, f.Height, float64(index)*f.Gap - offset})
}

// SphereFormation scatters drones uniformly inside a ball.
type SphereFormation struct {
	Radius float64
	Height float64
}

func (f *SphereFormation) Spacing() float64 { return f.Radius }

func (f *SphereFormation) Position(_, _ int, center geometry.Vec3, rng *rand.Rand) geometry.Vec3 {
	if rng == nil {
		return center.Add(geometry.Vec3{0, f.Height, 0})
	}
	// Uniform direction from a normalized Gaussian, radius from the cube root.
	dir := geometry.Normalize(geometry.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
	r := f.Radius * math.Cbrt(rng.Float64())
	return center.Add(geometry.Vec3{0, f.Height, 0}).Add(dir.Mul(r))
}

// NewFormation builds a formation by name.
func NewFormation(kind string, radius, spacing, height float64) (Formation, error) {
	switch kind {
	case "circle":
		return &CircleFormation{Radius: radius, Height: height, Jitter: 1}, nil
	case "grid":
		return &GridFormation{Gap: spacing, Height: height}, nil
	case "line":
		return &LineFormation{Gap: spacing, Height: height}, nil
	case "sphere":
		return &SphereFormation{Radius: radius, Height: height}, nil
	default:
		return nil, fmt.Errorf("unknown formation %q", kind)
	}
}

// SpawnPositions returns count spawn points for f.
func SpawnPositions(f Formation, count int, center geometry.Vec3, rng *rand.Rand) []geometry.Vec3 {
	out := make([]geometry.Vec3, count)
	for i := range out {
		out[i] = f.Position(i, count, center, rng)
	}
	return out
}
