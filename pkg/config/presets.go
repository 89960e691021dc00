package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset is a named set of parameter overrides for one simulation.
type Preset struct {
	Name       string                 `yaml:"name"`
	Simulation string                 `yaml:"simulation,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters"`
}

// Config holds the saved presets
type Config struct {
	Presets  []Preset `yaml:"presets"`
	Selected string   `yaml:"selected,omitempty"`
}

// DefaultPath returns ~/.swarm-sim/presets.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".swarm-sim", "presets.yaml"), nil
}

// LoadPresets loads presets from the default location
func LoadPresets() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadPresetsFromFile(path)
}

// LoadPresetsFromFile loads presets from path. A missing file yields the
// built-in presets.
func LoadPresetsFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse presets file: %w", err)
	}
	return &config, nil
}

// SavePresets writes the presets to the default location.
func SavePresets(config *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SavePresetsToFile(config, path)
}

// SavePresetsToFile writes the presets to path, creating its directory.
func SavePresetsToFile(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write presets file: %w", err)
	}
	return nil
}

// Find returns the preset called name.
func (c *Config) Find(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Upsert adds p or replaces the preset with the same name.
func (c *Config) Upsert(p Preset) {
	for i := range c.Presets {
		if c.Presets[i].Name == p.Name {
			c.Presets[i] = p
			return
		}
	}
	c.Presets = append(c.Presets, p)
	sort.Slice(c.Presets, func(i, j int) bool { return c.Presets[i].Name < c.Presets[j].Name })
}

// Remove deletes the preset called name and reports whether it existed.
func (c *Config) Remove(name string) bool {
	for i, p := range c.Presets {
		if p.Name == name {
			c.Presets = append(c.Presets[:i], c.Presets[i+1:]...)
			if c.Selected == name {
				c.Selected = ""
			}
			return true
		}
	}
	return false
}

// getDefaultConfig returns the built-in presets
func getDefaultConfig() *Config {
	return &Config{
		Presets: []Preset{
			{
				Name:       "Dense",
				Simulation: "Swarm Flocking",
				Parameters: map[string]interface{}{"num_drones": 40, "separation": 3.0},
			},
			{
				Name:       "Sparse",
				Simulation: "Swarm Flocking",
				Parameters: map[string]interface{}{"num_drones": 12, "separation": 8.0},
			},
		},
	}
}
