// Package scenario loads swarm scenarios (agents, obstacles, leader and
// tuning) from YAML, JSON or TOML files and validates them against a JSON
// Schema before use.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://picogrid.dev/schemas/swarm-scenario.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Format is a scenario file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported scenario extension %q", filepath.Ext(path))
	}
}

// AgentSpec describes one agent.
type AgentSpec struct {
	ID        int           `json:"id"`
	Position  geometry.Vec3 `json:"position"`
	Velocity  geometry.Vec3 `json:"velocity"`
	Immovable bool          `json:"immovable"`
	Embodied  bool          `json:"embodied"`
}

// Scenario is a complete starting state for a swarm.
type Scenario struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	LeaderID    int            `json:"leader_id"`
	Alignment   geometry.Vec3  `json:"alignment"`
	Params      swarm.Params   `json:"params"`
	Agents      []AgentSpec    `json:"agents"`
	Obstacles   []ObstacleSpec `json:"obstacles"`
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add scenario schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads, validates and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debugf("Loaded scenario %q with %d agents and %d obstacles", sc.Name, len(sc.Agents), len(sc.Obstacles))
	return sc, nil
}

// Parse decodes data in the given format, validates it against the scenario
// schema and returns the scenario. Tuning values not present in the document
// keep their defaults.
func Parse(data []byte, format Format) (*Scenario, error) {
	doc, err := decodeGeneric(data, format)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so every format is validated the same way.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize scenario: %w", err)
	}
	var instance interface{}
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return nil, fmt.Errorf("failed to normalize scenario: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(instance); err != nil {
		return nil, fmt.Errorf("scenario failed validation: %w", err)
	}

	sc := &Scenario{LeaderID: -1, Params: swarm.DefaultParams()}
	if err := json.Unmarshal(normalized, sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func decodeGeneric(data []byte, format Format) (interface{}, error) {
	var doc interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML scenario: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON scenario: %w", err)
		}
	case FormatTOML:
		var m map[string]interface{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("failed to parse TOML scenario: %w", err)
		}
		doc = m
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	return doc, nil
}

// Validate checks what the schema cannot: unique IDs and usable tuning.
func (s *Scenario) Validate() error {
	seen := make(map[int]bool, len(s.Agents))
	for _, a := range s.Agents {
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %d", a.ID)
		}
		seen[a.ID] = true
	}
	if err := s.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// BuildAgents creates fresh agents from the scenario.
func (s *Scenario) BuildAgents() []*swarm.Agent {
	agents := make([]*swarm.Agent, 0, len(s.Agents))
	for _, spec := range s.Agents {
		var a *swarm.Agent
		if spec.Immovable {
			a = swarm.NewImmovableAgent(spec.ID, spec.Position)
		} else {
			a = swarm.NewAgent(spec.ID, spec.Position, spec.Velocity)
		}
		a.Embodied = spec.Embodied
		agents = append(agents, a)
	}
	return agents
}

// NewContext builds the obstacle store and agents into a ready swarm context.
func (s *Scenario) NewContext(opts ...swarm.Option) (*swarm.Context, error) {
	store, err := BuildStore(s.Obstacles)
	if err != nil {
		return nil, err
	}
	opts = append([]swarm.Option{swarm.WithLeader(s.LeaderID)}, opts...)
	ctx, err := swarm.NewContext(s.Params, s.BuildAgents(), store, opts...)
	if err != nil {
		return nil, err
	}
	ctx.Alignment = s.Alignment
	return ctx, nil
}
