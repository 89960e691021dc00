package scenario

import (
	"fmt"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
)

// ObstacleSpec describes one obstacle in a scenario or config file.
// Rotation holds X, Y, Z Euler angles in degrees.
type ObstacleSpec struct {
	Type        string        `json:"type" yaml:"type"`
	Center      geometry.Vec3 `json:"center" yaml:"center"`
	Radius      float64       `json:"radius,omitempty" yaml:"radius,omitempty"`
	Height      float64       `json:"height,omitempty" yaml:"height,omitempty"`
	Size        geometry.Vec3 `json:"size,omitempty" yaml:"size,omitempty"`
	Rotation    geometry.Vec3 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Transparent bool          `json:"transparent,omitempty" yaml:"transparent,omitempty"`
}

// Build turns the spec into an obstacle.
func (o ObstacleSpec) Build() (obstacles.Obstacle, error) {
	rot := geometry.EulerDegrees(o.Rotation.X(), o.Rotation.Y(), o.Rotation.Z())
	switch obstacles.Kind(o.Type) {
	case obstacles.KindSphere:
		s, err := obstacles.NewSphere(o.Center, o.Radius)
		if err != nil {
			return nil, err
		}
		s.IsTransparent = o.Transparent
		return s, nil
	case obstacles.KindBox:
		b, err := obstacles.NewBox(o.Center, o.Size, rot)
		if err != nil {
			return nil, err
		}
		b.IsTransparent = o.Transparent
		return b, nil
	case obstacles.KindCylinder:
		c, err := obstacles.NewCylinder(o.Center, o.Radius, o.Height, rot)
		if err != nil {
			return nil, err
		}
		c.IsTransparent = o.Transparent
		return c, nil
	default:
		return nil, fmt.Errorf("unknown obstacle type %q", o.Type)
	}
}

// BuildStore builds every spec into a new obstacle store.
func BuildStore(specs []ObstacleSpec) (*obstacles.Store, error) {
	built := make([]obstacles.Obstacle, 0, len(specs))
	for i, spec := range specs {
		o, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		built = append(built, o)
	}
	return obstacles.NewStore(built...), nil
}
