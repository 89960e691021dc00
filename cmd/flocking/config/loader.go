package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-simulations/pkg/logger"
)

// LoadConfig loads configuration from a YAML file. Missing keys keep their
// default values.
func LoadConfig(path string) (*SimulationConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// DefaultPaths are searched, in order, when no config path is given.
var DefaultPaths = []string{
	"config.yaml",
	"flocking.yaml",
	filepath.Join("cmd", "flocking", "config.yaml"),
}

// LoadConfigOrDefault loads config from file or returns default, with environment overrides
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
			config = nil
		}
	}

	if config == nil {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Debugf("Loaded config from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	// Always apply environment variable overrides
	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies prompted parameter values. Values with the
// wrong type or out of range are ignored.
func MergeWithCLIOverrides(config *SimulationConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "num_drones":
			if count, ok := value.(int); ok && count > 0 {
				config.Swarm.NumDrones = count
			}
		case "formation_type":
			if formation, ok := value.(string); ok && oneOf(formation, validFormations) {
				config.Swarm.FormationType = formation
			}
		case "spawn_radius":
			if r, ok := value.(float64); ok && r > 0 {
				config.Swarm.SpawnRadius = r
			}
		case "leader_id":
			if id, ok := value.(int); ok {
				config.Swarm.LeaderID = id
			}
		case "separation":
			if d, ok := value.(float64); ok && d > 0 {
				config.Flocking.DesiredSeparation = d
			}
		case "max_speed":
			if v, ok := value.(float64); ok && v > 0 {
				config.Flocking.MaxSpeed = v
			}
		case "cruise_speed":
			if v, ok := value.(float64); ok && v > 0 {
				config.Migration.CruiseSpeed = v
			}
		case "migration":
			if enable, ok := value.(bool); ok {
				config.Migration.Enabled = enable
			}
		case "duration":
			if d, ok := value.(time.Duration); ok && d > 0 {
				config.Termination.Duration = d
			}
		case "update_interval":
			if d, ok := value.(time.Duration); ok && d > 0 {
				config.Simulation.UpdateInterval = d
			}
		case "fast_mode":
			if fast, ok := value.(bool); ok {
				config.Simulation.FastMode = fast
			}
		case "seed":
			if seed, ok := value.(int); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "prediction":
			if enable, ok := value.(bool); ok {
				config.Prediction.Enabled = enable
			}
		case "scenario_file":
			if path, ok := value.(string); ok {
				config.ScenarioFile = path
			}
		case "enable_report":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableReport = enable
			}
		case "report_format":
			if format, ok := value.(string); ok && oneOf(format, validReportFormats) {
				config.Logging.ReportFormat = format
			}
		case "log_level":
			if level, ok := value.(string); ok && oneOf(level, validLevels) {
				config.Logging.ConsoleLevel = level
			}
		}
	}
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*SimulationConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	// Apply CLI overrides after environment variables
	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment applies SWARM_* environment variables. Unparsable
// values are ignored.
func MergeWithEnvironment(config *SimulationConfig) {
	if v := os.Getenv("SWARM_UPDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.Simulation.UpdateInterval = d
		}
	}

	if v := os.Getenv("SWARM_FAST_MODE"); v != "" {
		if fast, err := strconv.ParseBool(v); err == nil {
			config.Simulation.FastMode = fast
		}
	}

	if v := os.Getenv("SWARM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = seed
		}
	}

	if v := os.Getenv("SWARM_NUM_DRONES"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count > 0 {
			config.Swarm.NumDrones = count
		}
	}

	if v := os.Getenv("SWARM_FORMATION_TYPE"); v != "" {
		if formation := strings.ToLower(v); oneOf(formation, validFormations) {
			config.Swarm.FormationType = formation
		}
	}

	if v := os.Getenv("SWARM_SEPARATION"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d > 0 {
			config.Flocking.DesiredSeparation = d
		}
	}

	if v := os.Getenv("SWARM_MAX_SPEED"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil && s > 0 {
			config.Flocking.MaxSpeed = s
		}
	}

	if v := os.Getenv("SWARM_SCENARIO_FILE"); v != "" {
		config.ScenarioFile = v
	}

	if v := os.Getenv("SWARM_PREDICTION"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			config.Prediction.Enabled = enable
		}
	}

	if v := os.Getenv("SWARM_LOG_LEVEL"); v != "" {
		if level := strings.ToLower(v); oneOf(level, validLevels) {
			config.Logging.ConsoleLevel = level
		}
	}

	if v := os.Getenv("SWARM_ENABLE_REPORT"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			config.Logging.EnableReport = enable
		}
	}

	if v := os.Getenv("SWARM_REPORT_FORMAT"); v != "" {
		if format := strings.ToLower(v); oneOf(format, validReportFormats) {
			config.Logging.ReportFormat = format
		}
	}

	if v := os.Getenv("SWARM_REPORT_OUTPUT_PATH"); v != "" {
		config.Logging.ReportOutputPath = v
	}

	if v := os.Getenv("SWARM_TELEMETRY_PATH"); v != "" {
		config.Performance.TelemetryPath = v
	}
}
