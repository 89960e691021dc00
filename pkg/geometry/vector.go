// Package geometry holds the small set of 3D helpers shared by the obstacle
// store, the force model and the metrics.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a 3D vector in world space. Y is up.
type Vec3 = mgl64.Vec3

// Quat is a rotation.
type Quat = mgl64.Quat

// Epsilon is the tolerance used for degenerate lengths and contact tests.
const Epsilon = 1e-9

// Zero is the zero vector.
var Zero = Vec3{}

// Identity returns the identity rotation.
func Identity() Quat {
	return mgl64.QuatIdent()
}

// EulerDegrees builds a rotation from X, Y and Z angles in degrees, applied
// in that order.
func EulerDegrees(x, y, z float64) Quat {
	return mgl64.AnglesToQuat(mgl64.DegToRad(x), mgl64.DegToRad(y), mgl64.DegToRad(z), mgl64.XYZ).Normalize()
}

// Normalize returns v scaled to unit length, or the zero vector when v is degenerate.
func Normalize(v Vec3) Vec3 {
	l := v.Len()
	if l < Epsilon {
		return Zero
	}
	return v.Mul(1 / l)
}

// ClampMagnitude limits the length of v to max.
func ClampMagnitude(v Vec3, max float64) Vec3 {
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Mul(max / l)
}

// Distance returns |a - b|.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

// SqrDistance returns |a - b|².
func SqrDistance(a, b Vec3) float64 {
	return a.Sub(b).LenSqr()
}

// IsFinite reports whether every component of v is a real number.
func IsFinite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Centroid returns the mean of points, or the zero vector for an empty slice.
func Centroid(points []Vec3) Vec3 {
	if len(points) == 0 {
		return Zero
	}
	var sum Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// Horizontal drops the Y component.
func Horizontal(v Vec3) Vec3 {
	return Vec3{v[0], 0, v[2]}
}
