package simulation

import (
	"fmt"
	"strconv"
	"time"
)

// SimulationConfig represents the configuration structure for a simulation
// loaded from simulation.yaml
type SimulationConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter for a simulation
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// Parse converts a raw string into the parameter's type.
func (p Parameter) Parse(raw string) (interface{}, error) {
	switch p.Type {
	case "integer":
		return strconv.Atoi(raw)
	case "float":
		return strconv.ParseFloat(raw, 64)
	case "string":
		return raw, nil
	case "boolean":
		return strconv.ParseBool(raw)
	case "duration":
		return time.ParseDuration(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", p.Type)
	}
}

// Normalize coerces a decoded value (from YAML, env or a prompt) into the
// parameter's Go type and checks its range and options.
func (p Parameter) Normalize(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok && p.Type != "string" {
		parsed, err := p.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		v = parsed
	}

	switch p.Type {
	case "integer":
		n, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected integer, got %T", p.Name, v)
		}
		if p.Min != nil {
			if lo, _ := toInt(p.Min); n < lo {
				return nil, fmt.Errorf("%s must be at least %d", p.Name, lo)
			}
		}
		if p.Max != nil {
			if hi, _ := toInt(p.Max); n > hi {
				return nil, fmt.Errorf("%s must be at most %d", p.Name, hi)
			}
		}
		return n, nil
	case "float":
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", p.Name, v)
		}
		if p.Min != nil {
			if lo, _ := toFloat(p.Min); f < lo {
				return nil, fmt.Errorf("%s must be at least %g", p.Name, lo)
			}
		}
		if p.Max != nil {
			if hi, _ := toFloat(p.Max); f > hi {
				return nil, fmt.Errorf("%s must be at most %g", p.Name, hi)
			}
		}
		return f, nil
	case "string":
		s := fmt.Sprintf("%v", v)
		if len(p.Options) > 0 {
			for _, opt := range p.Options {
				if opt == s {
					return s, nil
				}
			}
			return nil, fmt.Errorf("%s must be one of %v, got %q", p.Name, p.Options, s)
		}
		return s, nil
	case "boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: expected boolean, got %T", p.Name, v)
		}
		return b, nil
	case "duration":
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("%s: expected duration, got %T", p.Name, v)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", p.Type)
	}
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), val == float64(int(val))
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
