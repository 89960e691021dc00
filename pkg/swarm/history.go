package swarm

import (
	"math"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

const (
	// HistoryCapacity is the number of force samples kept per agent.
	HistoryCapacity = 20
	// hapticWindow is how many recent samples feed the haptic intensity.
	hapticWindow = 12
)

// ForceSample is one recorded pair of forces.
type ForceSample struct {
	Cohesion geometry.Vec3
	Obstacle geometry.Vec3
}

// ForceHistory is a fixed-size FIFO of force samples. The zero value is empty.
type ForceHistory struct {
	buf   [HistoryCapacity]ForceSample
	start int
	n     int
}

// Add appends a sample, dropping the oldest once full.
func (h *ForceHistory) Add(cohesion, obstacle geometry.Vec3) {
	s := ForceSample{Cohesion: cohesion, Obstacle: obstacle}
	if h.n < HistoryCapacity {
		h.buf[(h.start+h.n)%HistoryCapacity] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % HistoryCapacity
}

// Len returns the number of samples held.
func (h *ForceHistory) Len() int { return h.n }

// At returns the i-th sample, oldest first.
func (h *ForceHistory) At(i int) ForceSample {
	return h.buf[(h.start+i)%HistoryCapacity]
}

// Samples returns the samples oldest first.
func (h *ForceHistory) Samples() []ForceSample {
	out := make([]ForceSample, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Haptic turns the recent change in force magnitudes into a vibration
// intensity. Growing cohesion and obstacle forces raise it; fewer than two
// samples yield zero.
func (h *ForceHistory) Haptic() float64 {
	count := min(h.n, hapticWindow)
	if count < 2 {
		return 0
	}
	var cohesion, obstacle float64
	first := h.n - count
	for i := first + 1; i < h.n; i++ {
		prev, cur := h.At(i-1), h.At(i)
		cohesion += cur.Cohesion.Len() - prev.Cohesion.Len()
		obstacle += cur.Obstacle.Len() - prev.Obstacle.Len()
	}
	cohesion /= float64(count)
	obstacle /= float64(count)

	cohesion = math.Max(cohesion, 0) / 0.3 * 10
	obstacle = math.Max(obstacle, 0) * 10
	return cohesion + obstacle
}

// HapticVector is the mean recent change of the cohesion force, scaled like
// Haptic.
func (h *ForceHistory) HapticVector() geometry.Vec3 {
	count := min(h.n, hapticWindow)
	if count < 2 {
		return geometry.Zero
	}
	var sum geometry.Vec3
	first := h.n - count
	for i := first + 1; i < h.n; i++ {
		sum = sum.Add(h.At(i).Cohesion.Sub(h.At(i - 1).Cohesion))
	}
	return sum.Mul(10 / float64(count))
}
