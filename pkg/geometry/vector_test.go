package geometry

import (
	"math"
	"testing"
)

func vecNear(a, b Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestClampMagnitude(t *testing.T) {
	tests := []struct {
		name string
		in   Vec3
		max  float64
		want float64
	}{
		{"below limit", Vec3{1, 0, 0}, 2, 1},
		{"above limit", Vec3{3, 4, 0}, 2, 2},
		{"zero vector", Vec3{}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampMagnitude(tt.in, tt.max).Len()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ClampMagnitude(%v, %v) length = %v, want %v", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	if got := Normalize(Vec3{}); got != Zero {
		t.Errorf("Normalize(zero) = %v, want zero", got)
	}
	if got := Normalize(Vec3{0, 0, 5}); !vecNear(got, Vec3{0, 0, 1}, 1e-9) {
		t.Errorf("Normalize = %v", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(Vec3{1, 2, 3}) {
		t.Error("expected finite")
	}
	if IsFinite(Vec3{math.NaN(), 0, 0}) {
		t.Error("NaN reported as finite")
	}
	if IsFinite(Vec3{0, math.Inf(1), 0}) {
		t.Error("Inf reported as finite")
	}
}

func TestCentroid(t *testing.T) {
	if got := Centroid(nil); got != Zero {
		t.Errorf("Centroid(nil) = %v", got)
	}
	got := Centroid([]Vec3{{0, 0, 0}, {2, 4, 6}})
	if !vecNear(got, Vec3{1, 2, 3}, 1e-9) {
		t.Errorf("Centroid = %v", got)
	}
}

func TestEulerDegreesRotatesAboutY(t *testing.T) {
	q := EulerDegrees(0, 90, 0)
	got := q.Rotate(Vec3{1, 0, 0})
	if !vecNear(got, Vec3{0, 0, -1}, 1e-9) {
		t.Errorf("rotate = %v, want (0,0,-1)", got)
	}
}
