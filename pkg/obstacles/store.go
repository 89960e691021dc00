package obstacles

import (
	"math"
	"sync/atomic"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// WorkingSet is an immutable snapshot of the obstacles near the swarm.
// A nil *WorkingSet behaves as an empty set.
type WorkingSet struct {
	obstacles []Obstacle
	centroid  geometry.Vec3
	radius    float64
}

// Len returns the number of obstacles in the set.
func (w *WorkingSet) Len() int {
	if w == nil {
		return 0
	}
	return len(w.obstacles)
}

// Obstacles returns a copy of the obstacles in the set.
func (w *WorkingSet) Obstacles() []Obstacle {
	if w == nil {
		return nil
	}
	out := make([]Obstacle, len(w.obstacles))
	copy(out, w.obstacles)
	return out
}

// Region returns the sphere the set was selected against.
func (w *WorkingSet) Region() (geometry.Vec3, float64) {
	if w == nil {
		return geometry.Zero, 0
	}
	return w.centroid, w.radius
}

// ClosestPoint returns the nearest obstacle point to p. ok is false when the
// set is empty.
func (w *WorkingSet) ClosestPoint(p geometry.Vec3) (closest geometry.Vec3, ok bool) {
	best := math.Inf(1)
	for _, o := range w.list() {
		cp := o.ClosestPoint(p)
		if d := geometry.SqrDistance(cp, p); d < best {
			best, closest, ok = d, cp, true
		}
	}
	return closest, ok
}

// ClosestPointsWithinRadius returns the closest point of every obstacle whose
// closest point lies within radius of p, boundary included.
func (w *WorkingSet) ClosestPointsWithinRadius(p geometry.Vec3, radius float64) []geometry.Vec3 {
	var points []geometry.Vec3
	r2 := radius * radius
	for _, o := range w.list() {
		cp := o.ClosestPoint(p)
		if geometry.SqrDistance(cp, p) <= r2 {
			points = append(points, cp)
		}
	}
	return points
}

// SegmentIntersects reports whether any opaque obstacle blocks a-b.
func (w *WorkingSet) SegmentIntersects(a, b geometry.Vec3) bool {
	for _, o := range w.list() {
		if o.Transparent() {
			continue
		}
		if o.SegmentIntersects(a, b) {
			return true
		}
	}
	return false
}

func (w *WorkingSet) list() []Obstacle {
	if w == nil {
		return nil
	}
	return w.obstacles
}

// Store owns the full obstacle list and the active working set. The working
// set is swapped atomically so readers on other goroutines always see a
// complete snapshot.
type Store struct {
	all     []Obstacle
	working atomic.Pointer[WorkingSet]
}

// NewStore returns a store whose working set starts as the full list.
func NewStore(obstacles ...Obstacle) *Store {
	s := &Store{all: append([]Obstacle(nil), obstacles...)}
	s.working.Store(&WorkingSet{obstacles: s.all, radius: math.Inf(1)})
	return s
}

// All returns a copy of every registered obstacle.
func (s *Store) All() []Obstacle {
	return append([]Obstacle(nil), s.all...)
}

// Len returns the number of registered obstacles.
func (s *Store) Len() int { return len(s.all) }

// WorkingSet returns the active snapshot.
func (s *Store) WorkingSet() *WorkingSet {
	return s.working.Load()
}

// SelectWorkingSet keeps the obstacles whose bounding sphere overlaps the
// sphere (centroid, radius), publishes the result and returns it.
func (s *Store) SelectWorkingSet(centroid geometry.Vec3, radius float64) *WorkingSet {
	selected := make([]Obstacle, 0, len(s.all))
	for _, o := range s.all {
		center, bound := o.Bounds()
		if geometry.Distance(centroid, center) <= radius+bound {
			selected = append(selected, o)
		}
	}
	ws := &WorkingSet{obstacles: selected, centroid: centroid, radius: radius}
	s.working.Store(ws)
	return ws
}

// Refresh selects the working set around the given agent positions. The
// radius is the farthest agent from the centroid plus avoidanceRadius. With no
// positions the current set is kept.
func (s *Store) Refresh(positions []geometry.Vec3, avoidanceRadius float64) *WorkingSet {
	if len(positions) == 0 {
		return s.WorkingSet()
	}
	centroid := geometry.Centroid(positions)
	var spread float64
	for _, p := range positions {
		spread = math.Max(spread, geometry.Distance(p, centroid))
	}
	return s.SelectWorkingSet(centroid, spread+avoidanceRadius)
}

// ClosestPoint queries the active working set.
func (s *Store) ClosestPoint(p geometry.Vec3) (geometry.Vec3, bool) {
	return s.WorkingSet().ClosestPoint(p)
}

// ClosestPointsWithinRadius queries the active working set.
func (s *Store) ClosestPointsWithinRadius(p geometry.Vec3, radius float64) []geometry.Vec3 {
	return s.WorkingSet().ClosestPointsWithinRadius(p, radius)
}

// SegmentIntersects queries the active working set.
func (s *Store) SegmentIntersects(a, b geometry.Vec3) bool {
	return s.WorkingSet().SegmentIntersects(a, b)
}
