package orbit

import (
	"fmt"
	"time"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// Config holds the configuration for the orbit simulation
type Config struct {
	NumDrones      int
	UpdateInterval time.Duration
	Duration       time.Duration
	RadiusMeters   float64
	// RadiusOffsetM is the largest random offset of a drone from its spawn
	// ring.
	RadiusOffsetM   float64
	SpeedMetersPerS float64
	Center          geometry.Vec3
	Separation      float64
	FastMode        bool
	Seed            int64
}

// DefaultConfig returns the stock orbit
func DefaultConfig() *Config {
	return &Config{
		NumDrones:       8,
		UpdateInterval:  20 * time.Millisecond,
		Duration:        time.Minute,
		RadiusMeters:    20,
		RadiusOffsetM:   1,
		SpeedMetersPerS: 3,
		Center:          geometry.Vec3{0, 10, 0},
		Separation:      5,
	}
}

// ValidateAndParse applies raw parameters on top of the defaults and
// validates the result
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if v, ok := params["number_of_drones"]; ok {
		switch val := v.(type) {
		case int:
			cfg.NumDrones = val
		case float64:
			cfg.NumDrones = int(val)
		default:
			return nil, fmt.Errorf("number_of_drones must be an integer")
		}
	}
	if cfg.NumDrones < 1 {
		return nil, fmt.Errorf("number_of_drones must be at least 1")
	}

	if v, ok := params["update_interval"]; ok {
		switch val := v.(type) {
		case time.Duration:
			cfg.UpdateInterval = val
		case float64:
			cfg.UpdateInterval = time.Duration(val * float64(time.Second))
		case int:
			cfg.UpdateInterval = time.Duration(val) * time.Second
		default:
			return nil, fmt.Errorf("update_interval must be a duration or a number of seconds")
		}
	}
	if cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("update_interval must be greater than 0 seconds")
	}

	// Simulated flight time
	if v, ok := params["duration"]; ok {
		switch val := v.(type) {
		case time.Duration:
			cfg.Duration = val
		default:
			d, err := time.ParseDuration(fmt.Sprintf("%v", v))
			if err != nil {
				return nil, fmt.Errorf("invalid duration format: %w", err)
			}
			cfg.Duration = d
		}
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be greater than 0")
	}

	var err error
	if cfg.RadiusMeters, err = floatParam(params, "radius_m", cfg.RadiusMeters); err != nil {
		return nil, err
	}
	if cfg.RadiusMeters <= 0 {
		return nil, fmt.Errorf("radius_m must be greater than 0")
	}

	if cfg.SpeedMetersPerS, err = floatParam(params, "speed_mps", cfg.SpeedMetersPerS); err != nil {
		return nil, err
	}
	if cfg.SpeedMetersPerS <= 0 {
		return nil, fmt.Errorf("speed_mps must be greater than 0")
	}

	if cfg.Separation, err = floatParam(params, "separation", cfg.Separation); err != nil {
		return nil, err
	}
	if cfg.Separation <= 0 {
		return nil, fmt.Errorf("separation must be greater than 0")
	}

	if cfg.RadiusOffsetM, err = floatParam(params, "radius_offset_m", cfg.RadiusOffsetM); err != nil {
		return nil, err
	}
	if cfg.RadiusOffsetM < 0 || cfg.RadiusOffsetM >= cfg.Separation {
		return nil, fmt.Errorf("radius_offset_m must be >= 0 and below separation")
	}

	var x, y, z float64
	if x, err = floatParam(params, "center_x", cfg.Center.X()); err != nil {
		return nil, err
	}
	if y, err = floatParam(params, "center_y", cfg.Center.Y()); err != nil {
		return nil, err
	}
	if z, err = floatParam(params, "center_z", cfg.Center.Z()); err != nil {
		return nil, err
	}
	cfg.Center = geometry.Vec3{x, y, z}

	if v, ok := params["fast_mode"]; ok {
		switch val := v.(type) {
		case bool:
			cfg.FastMode = val
		case string:
			cfg.FastMode = val == "true" || val == "1" || val == "yes"
		default:
			return nil, fmt.Errorf("fast_mode must be a boolean")
		}
	}

	if v, ok := params["seed"]; ok {
		switch val := v.(type) {
		case int:
			cfg.Seed = int64(val)
		case float64:
			cfg.Seed = int64(val)
		default:
			return nil, fmt.Errorf("seed must be an integer")
		}
	}

	return cfg, nil
}

func floatParam(params map[string]interface{}, name string, def float64) (float64, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
