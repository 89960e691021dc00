// Package obstacles holds the static solids of a scene and answers the
// proximity and line-of-sight queries the force model makes every tick.
package obstacles

import (
	"fmt"
	"math"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// Kind tags an obstacle variant.
type Kind string

const (
	KindSphere   Kind = "sphere"
	KindBox      Kind = "box"
	KindCylinder Kind = "cylinder"
)

// Obstacle is a static solid. Implementations are immutable after construction.
type Obstacle interface {
	Kind() Kind
	// ClosestPoint returns the nearest point of the solid to p. Points inside
	// the solid are returned unchanged.
	ClosestPoint(p geometry.Vec3) geometry.Vec3
	// SegmentIntersects reports whether the segment a-b touches the solid.
	SegmentIntersects(a, b geometry.Vec3) bool
	// Bounds returns a sphere enclosing the solid's influence.
	Bounds() (center geometry.Vec3, radius float64)
	// Transparent obstacles repel agents but never block line of sight.
	Transparent() bool
}

// Sphere is a ball of the given radius.
type Sphere struct {
	Center        geometry.Vec3
	Radius        float64
	IsTransparent bool
}

// NewSphere validates and returns a sphere.
func NewSphere(center geometry.Vec3, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("sphere radius must be positive, got %v", radius)
	}
	return &Sphere{Center: center, Radius: radius}, nil
}

func (s *Sphere) Kind() Kind        { return KindSphere }
func (s *Sphere) Transparent() bool { return s.IsTransparent }

func (s *Sphere) Bounds() (geometry.Vec3, float64) {
	return s.Center, s.Radius
}

func (s *Sphere) ClosestPoint(p geometry.Vec3) geometry.Vec3 {
	dir := p.Sub(s.Center)
	if dir.Len() <= s.Radius {
		return p
	}
	return s.Center.Add(geometry.Normalize(dir).Mul(s.Radius))
}

// SegmentIntersects solves a·t² + 2b·t + c = 0 and accepts a root in [0, 1].
func (s *Sphere) SegmentIntersects(start, end geometry.Vec3) bool {
	d := end.Sub(start)
	m := start.Sub(s.Center)
	a := d.Dot(d)
	b := m.Dot(d)
	c := m.Dot(m) - s.Radius*s.Radius

	if a < geometry.Epsilon {
		return c <= 0
	}
	disc := b*b - a*c
	if disc < 0 {
		return false
	}
	disc = math.Sqrt(disc)
	t1 := (-b - disc) / a
	t2 := (-b + disc) / a
	return inUnit(t1) || inUnit(t2)
}

// Box is an oriented box. Size holds the full edge lengths.
type Box struct {
	Center        geometry.Vec3
	Size          geometry.Vec3
	Rotation      geometry.Quat
	IsTransparent bool
}

// NewBox validates and returns a box.
func NewBox(center, size geometry.Vec3, rotation geometry.Quat) (*Box, error) {
	if size.X() <= 0 || size.Y() <= 0 || size.Z() <= 0 {
		return nil, fmt.Errorf("box size must be positive on every axis, got %v", size)
	}
	return &Box{Center: center, Size: size, Rotation: rotation.Normalize()}, nil
}

func (b *Box) Kind() Kind        { return KindBox }
func (b *Box) Transparent() bool { return b.IsTransparent }

// Bounds uses the full diagonal, which over-covers the box.
func (b *Box) Bounds() (geometry.Vec3, float64) {
	return b.Center, b.Size.Len()
}

func (b *Box) toLocal(p geometry.Vec3) geometry.Vec3 {
	return b.Rotation.Inverse().Rotate(p.Sub(b.Center))
}

func (b *Box) ClosestPoint(p geometry.Vec3) geometry.Vec3 {
	local := b.toLocal(p)
	half := b.Size.Mul(0.5)
	clamped := geometry.Vec3{
		clamp(local.X(), -half.X(), half.X()),
		clamp(local.Y(), -half.Y(), half.Y()),
		clamp(local.Z(), -half.Z(), half.Z()),
	}
	return b.Rotation.Rotate(clamped).Add(b.Center)
}

// SegmentIntersects runs the slab test in the box frame.
func (b *Box) SegmentIntersects(start, end geometry.Vec3) bool {
	ls := b.toLocal(start)
	dir := b.toLocal(end).Sub(ls)
	half := b.Size.Mul(0.5)

	tMin, tMax := 0.0, 1.0
	for axis := 0; axis < 3; axis++ {
		if !slab(ls[axis], dir[axis], -half[axis], half[axis], &tMin, &tMax) {
			return false
		}
	}
	return tMax >= 0 && tMin <= 1
}

func slab(origin, dir, lo, hi float64, t0, t1 *float64) bool {
	if math.Abs(dir) < geometry.Epsilon {
		return origin >= lo && origin <= hi
	}
	tA := (lo - origin) / dir
	tB := (hi - origin) / dir
	if tA > tB {
		tA, tB = tB, tA
	}
	if tA > *t0 {
		*t0 = tA
	}
	if tB < *t1 {
		*t1 = tB
	}
	return *t0 <= *t1
}

// Cylinder is an oriented cylinder whose axis is the local Y axis.
type Cylinder struct {
	Center        geometry.Vec3
	Radius        float64
	Height        float64
	Rotation      geometry.Quat
	IsTransparent bool
}

// NewCylinder validates and returns a cylinder.
func NewCylinder(center geometry.Vec3, radius, height float64, rotation geometry.Quat) (*Cylinder, error) {
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("cylinder radius and height must be positive, got r=%v h=%v", radius, height)
	}
	return &Cylinder{Center: center, Radius: radius, Height: height, Rotation: rotation.Normalize()}, nil
}

func (c *Cylinder) Kind() Kind        { return KindCylinder }
func (c *Cylinder) Transparent() bool { return c.IsTransparent }

func (c *Cylinder) Bounds() (geometry.Vec3, float64) {
	half := c.Height / 2
	return c.Center, math.Sqrt(c.Radius*c.Radius + half*half)
}

func (c *Cylinder) toLocal(p geometry.Vec3) geometry.Vec3 {
	return c.Rotation.Inverse().Rotate(p.Sub(c.Center))
}

func (c *Cylinder) ClosestPoint(p geometry.Vec3) geometry.Vec3 {
	local := c.toLocal(p)
	half := c.Height / 2
	y := clamp(local.Y(), -half, half)
	radial := math.Hypot(local.X(), local.Z())

	var out geometry.Vec3
	switch {
	case radial <= c.Radius && y == local.Y():
		return p
	case radial <= c.Radius:
		// above or below a cap
		out = geometry.Vec3{local.X(), y, local.Z()}
	default:
		scale := c.Radius / radial
		out = geometry.Vec3{local.X() * scale, y, local.Z() * scale}
	}
	return c.Rotation.Rotate(out).Add(c.Center)
}

// SegmentIntersects tests the side surface, then both caps.
func (c *Cylinder) SegmentIntersects(start, end geometry.Vec3) bool {
	ls := c.toLocal(start)
	d := c.toLocal(end).Sub(ls)
	half := c.Height / 2

	a := d.X()*d.X() + d.Z()*d.Z()
	b := 2 * (ls.X()*d.X() + ls.Z()*d.Z())
	cc := ls.X()*ls.X() + ls.Z()*ls.Z() - c.Radius*c.Radius
	if a > geometry.Epsilon {
		if disc := b*b - 4*a*cc; disc >= 0 {
			sq := math.Sqrt(disc)
			for _, t := range [2]float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)} {
				if !inUnit(t) {
					continue
				}
				if y := ls.Y() + d.Y()*t; y >= -half && y <= half {
					return true
				}
			}
		}
	}

	if math.Abs(d.Y()) > geometry.Epsilon {
		for _, plane := range [2]float64{half, -half} {
			t := (plane - ls.Y()) / d.Y()
			if !inUnit(t) {
				continue
			}
			x := ls.X() + d.X()*t
			z := ls.Z() + d.Z()*t
			if x*x+z*z <= c.Radius*c.Radius {
				return true
			}
		}
	}
	return false
}

func inUnit(t float64) bool { return t >= 0 && t <= 1 }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
