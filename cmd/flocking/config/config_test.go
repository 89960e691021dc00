package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Simulation.Name != "flocking" {
		t.Errorf("Expected simulation name 'flocking', got '%s'", config.Simulation.Name)
	}

	if config.Simulation.UpdateInterval != 20*time.Millisecond {
		t.Errorf("Expected update interval 20ms, got %v", config.Simulation.UpdateInterval)
	}

	if config.Swarm.NumDrones != 12 {
		t.Errorf("Expected 12 drones, got %d", config.Swarm.NumDrones)
	}

	if len(config.Swarm.Dummies) != 1 || config.Swarm.Dummies[0].X() != 30 {
		t.Errorf("Unexpected dummies: %v", config.Swarm.Dummies)
	}

	if config.Flocking.DesiredSeparation != 5 || config.Flocking.Damping != 0.98 {
		t.Errorf("Unexpected flocking params: %+v", config.Flocking)
	}

	if len(config.Migration.Waypoints) != 3 {
		t.Errorf("Expected 3 waypoints, got %d", len(config.Migration.Waypoints))
	}

	if len(config.Obstacles) != 4 || config.Obstacles[2].Rotation.Y() != 30 {
		t.Errorf("Unexpected obstacles: %+v", config.Obstacles)
	}

	if config.Prediction.Interval != 100*time.Millisecond || config.Prediction.StepMultiplier != 2 {
		t.Errorf("Unexpected prediction config: %+v", config.Prediction)
	}

	if len(config.Feedback.Actuators) != 4 {
		t.Errorf("Expected 4 actuators, got %d", len(config.Feedback.Actuators))
	}

	if config.Termination.Duration != 3*time.Minute {
		t.Errorf("Expected duration 3m, got %v", config.Termination.Duration)
	}
}

func TestLoadConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	cfg := GetDefaultConfig()
	cfg.Swarm.NumDrones = 3
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Swarm.NumDrones != 3 {
		t.Errorf("NumDrones = %d", loaded.Swarm.NumDrones)
	}
	if loaded.Flocking.MaxForce != GetDefaultConfig().Flocking.MaxForce {
		t.Errorf("MaxForce = %v", loaded.Flocking.MaxForce)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimulationConfig)
		wantErr string
	}{
		{"default is valid", func(*SimulationConfig) {}, ""},
		{"no name", func(c *SimulationConfig) { c.Simulation.Name = "" }, "name"},
		{"zero interval", func(c *SimulationConfig) { c.Simulation.UpdateInterval = 0 }, "update interval"},
		{"zero restart delay", func(c *SimulationConfig) { c.Prediction.RestartDelay = 0 }, "restart delay"},
		{"no drones", func(c *SimulationConfig) { c.Swarm.NumDrones = 0 }, "drones"},
		{"bad formation", func(c *SimulationConfig) { c.Swarm.FormationType = "v" }, "formation"},
		{"bad params", func(c *SimulationConfig) { c.Flocking.DesiredSeparation = -1 }, "flocking"},
		{"bad obstacle", func(c *SimulationConfig) { c.Obstacles[0].Radius = 0 }, "obstacle 0"},
		{"route without waypoints", func(c *SimulationConfig) { c.Migration.Waypoints = nil }, "waypoints"},
		{"bad report format", func(c *SimulationConfig) { c.Logging.ReportFormat = "pdf" }, "report format"},
		{"no termination", func(c *SimulationConfig) {
			c.Termination.Duration = 0
			c.Termination.StopOnRouteDone = false
		}, "termination"},
		{"scenario skips swarm checks", func(c *SimulationConfig) {
			c.ScenarioFile = "scenario.yaml"
			c.Swarm.NumDrones = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMergeWithEnvironment(t *testing.T) {
	t.Setenv("SWARM_NUM_DRONES", "42")
	t.Setenv("SWARM_FORMATION_TYPE", "GRID")
	t.Setenv("SWARM_UPDATE_INTERVAL", "50ms")
	t.Setenv("SWARM_SEPARATION", "not-a-number")
	t.Setenv("SWARM_REPORT_FORMAT", "html")
	t.Setenv("SWARM_PREDICTION", "false")

	cfg := GetDefaultConfig()
	MergeWithEnvironment(cfg)

	if cfg.Swarm.NumDrones != 42 {
		t.Errorf("NumDrones = %d", cfg.Swarm.NumDrones)
	}
	if cfg.Swarm.FormationType != "grid" {
		t.Errorf("FormationType = %s", cfg.Swarm.FormationType)
	}
	if cfg.Simulation.UpdateInterval != 50*time.Millisecond {
		t.Errorf("UpdateInterval = %v", cfg.Simulation.UpdateInterval)
	}
	if cfg.Flocking.DesiredSeparation != 5 {
		t.Errorf("unparsable separation should be ignored, got %v", cfg.Flocking.DesiredSeparation)
	}
	if cfg.Logging.ReportFormat != "html" || cfg.Prediction.Enabled {
		t.Errorf("logging/prediction overrides not applied: %+v %+v", cfg.Logging, cfg.Prediction)
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	cfg := GetDefaultConfig()
	MergeWithCLIOverrides(cfg, map[string]interface{}{
		"num_drones":     25,
		"formation_type": "sphere",
		"separation":     3.5,
		"duration":       30 * time.Second,
		"fast_mode":      true,
		"report_format":  "pdf",
		"max_speed":      "fast",
	})

	if cfg.Swarm.NumDrones != 25 || cfg.Swarm.FormationType != "sphere" {
		t.Errorf("swarm overrides not applied: %+v", cfg.Swarm)
	}
	if cfg.Flocking.DesiredSeparation != 3.5 {
		t.Errorf("separation = %v", cfg.Flocking.DesiredSeparation)
	}
	if cfg.Termination.Duration != 30*time.Second || !cfg.Simulation.FastMode {
		t.Errorf("duration/fast mode not applied")
	}
	if cfg.Logging.ReportFormat != "markdown" {
		t.Errorf("invalid report format should be ignored, got %s", cfg.Logging.ReportFormat)
	}
	if cfg.Flocking.MaxSpeed != 5 {
		t.Errorf("wrong-typed max speed should be ignored, got %v", cfg.Flocking.MaxSpeed)
	}
}

func TestLoadConfigWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := SaveConfig(GetDefaultConfig(), path); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigWithOverrides(path, map[string]interface{}{"num_drones": 8})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Swarm.NumDrones != 8 {
		t.Errorf("NumDrones = %d", cfg.Swarm.NumDrones)
	}

	if _, err := LoadConfigWithOverrides(path, map[string]interface{}{"migration": true, "cruise_speed": -1.0}); err != nil {
		t.Errorf("negative cruise speed should be ignored, got %v", err)
	}
}
