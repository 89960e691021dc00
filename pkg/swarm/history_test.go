package swarm

import (
	"math"
	"testing"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

func TestForceHistoryFIFO(t *testing.T) {
	var h ForceHistory
	for i := 0; i < HistoryCapacity+5; i++ {
		h.Add(geometry.Vec3{float64(i), 0, 0}, geometry.Zero)
	}
	if h.Len() != HistoryCapacity {
		t.Fatalf("len = %d, want %d", h.Len(), HistoryCapacity)
	}
	if got := h.At(0).Cohesion.X(); got != 5 {
		t.Errorf("oldest sample = %v, want 5", got)
	}
	samples := h.Samples()
	if got := samples[len(samples)-1].Cohesion.X(); got != HistoryCapacity+4 {
		t.Errorf("newest sample = %v", got)
	}
}

func TestHapticNeedsTwoSamples(t *testing.T) {
	var h ForceHistory
	h.Add(geometry.Vec3{1, 0, 0}, geometry.Zero)
	if h.Haptic() != 0 || h.HapticVector() != geometry.Zero {
		t.Error("single sample should yield no feedback")
	}
}

func TestHapticGrowingForces(t *testing.T) {
	var h ForceHistory
	// Cohesion grows by 0.3 and obstacle by 1 per sample over 3 samples.
	for i := 0; i < 3; i++ {
		h.Add(geometry.Vec3{0.3 * float64(i), 0, 0}, geometry.Vec3{0, float64(i), 0})
	}
	// Two diffs summed then divided by count=3.
	cohesion := (0.6 / 3) / 0.3 * 10
	obstacle := (2.0 / 3) * 10
	if got := h.Haptic(); math.Abs(got-(cohesion+obstacle)) > 1e-9 {
		t.Errorf("Haptic = %v, want %v", got, cohesion+obstacle)
	}

	wantVec := geometry.Vec3{0.6, 0, 0}.Mul(10.0 / 3)
	if got := h.HapticVector(); !vecNear(got, wantVec, 1e-9) {
		t.Errorf("HapticVector = %v, want %v", got, wantVec)
	}
}

func TestHapticShrinkingForcesIsZero(t *testing.T) {
	var h ForceHistory
	for i := 5; i > 0; i-- {
		h.Add(geometry.Vec3{float64(i), 0, 0}, geometry.Vec3{float64(i), 0, 0})
	}
	if got := h.Haptic(); got != 0 {
		t.Errorf("Haptic = %v, want 0 for fading forces", got)
	}
}
