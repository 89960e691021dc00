package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/scenario"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// SimulationConfig holds the complete simulation configuration
type SimulationConfig struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Swarm composition and spawn layout
	Swarm SwarmConfig `yaml:"swarm"`

	// Flocking force tuning
	Flocking swarm.Params `yaml:"flocking"`

	// Waypoint route that drives the reference velocity
	Migration MigrationConfig `yaml:"migration"`

	// Static obstacle field
	Obstacles []scenario.ObstacleSpec `yaml:"obstacles"`

	// ScenarioFile, when set, replaces swarm, flocking and obstacles with
	// the contents of a scenario file.
	ScenarioFile string `yaml:"scenario_file,omitempty"`

	// Background trajectory forecasting
	Prediction PredictionConfig `yaml:"prediction"`

	// Obstacle feedback model
	Feedback FeedbackConfig `yaml:"feedback"`

	// Performance settings
	Performance PerformanceConfig `yaml:"performance"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`

	// Termination conditions
	Termination TerminationConfig `yaml:"termination"`
}

// SimulationSettings holds basic simulation settings
type SimulationSettings struct {
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	// FastMode steps as fast as possible instead of pacing on UpdateInterval.
	FastMode bool  `yaml:"fast_mode"`
	Seed     int64 `yaml:"seed"`
}

// SwarmConfig defines the swarm composition
type SwarmConfig struct {
	NumDrones     int           `yaml:"num_drones"`
	FormationType string        `yaml:"formation_type"` // "circle", "grid", "line", "sphere"
	SpawnRadius   float64       `yaml:"spawn_radius"`
	SpawnHeight   float64       `yaml:"spawn_height"`
	SpawnSpacing  float64       `yaml:"spawn_spacing"`
	SpawnCenter   geometry.Vec3 `yaml:"spawn_center"`
	// LeaderID is the agent the main component is chosen around; -1 means
	// the largest component wins.
	LeaderID int `yaml:"leader_id"`
	// Dummies are immovable agents placed in the field.
	Dummies []geometry.Vec3 `yaml:"dummies"`
}

// MigrationConfig defines the waypoint route
type MigrationConfig struct {
	Enabled       bool            `yaml:"enabled"`
	CruiseSpeed   float64         `yaml:"cruise_speed"`
	ArrivalRadius float64         `yaml:"arrival_radius"`
	Loop          bool            `yaml:"loop"`
	Waypoints     []geometry.Vec3 `yaml:"waypoints"`
}

// PredictionConfig defines the forecast worker
type PredictionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	Steps          int           `yaml:"steps"`
	StepMultiplier int           `yaml:"step_multiplier"`
	RestartDelay   time.Duration `yaml:"restart_delay"`
}

// FeedbackConfig defines the swarm-level obstacle response
type FeedbackConfig struct {
	Enabled          bool            `yaml:"enabled"`
	AxisScale        geometry.Vec3   `yaml:"axis_scale"`
	AxisFloor        geometry.Vec3   `yaml:"axis_floor"`
	ActivationRadius float64         `yaml:"activation_radius"`
	HorizontalOnly   bool            `yaml:"horizontal_only"`
	SmoothStep       bool            `yaml:"smooth_step"`
	ActivationGamma  float64         `yaml:"activation_gamma"`
	IntensityGamma   float64         `yaml:"intensity_gamma"`
	Actuators        []geometry.Vec3 `yaml:"actuators"`
}

// LoggingConfig defines logging and reporting settings
type LoggingConfig struct {
	ConsoleLevel      string `yaml:"console_level"` // "debug", "info", "warn", "error"
	EnableReport      bool   `yaml:"enable_report"`
	ReportFormat      string `yaml:"report_format"` // "json", "markdown", "html"
	ReportOutputPath  string `yaml:"report_output_path"`
	EventBufferSize   int    `yaml:"event_buffer_size"`
	MetricsHistory    int    `yaml:"metrics_history"`
	MetricsEveryTicks int    `yaml:"metrics_every_ticks"`
	StatusEveryTicks  int    `yaml:"status_every_ticks"`
}

// PerformanceConfig defines performance settings
type PerformanceConfig struct {
	StepsPerTick int `yaml:"steps_per_tick"`
	// TelemetryPath, when set, records agent states as JSON lines.
	TelemetryPath       string        `yaml:"telemetry_path"`
	TelemetryBatchSize  int           `yaml:"telemetry_batch_size"`
	TelemetryFlush      time.Duration `yaml:"telemetry_flush_interval"`
	MaxConcurrentWrites int           `yaml:"max_concurrent_writes"`
}

// TerminationConfig defines when a run ends
type TerminationConfig struct {
	// Duration is simulated flight time.
	Duration        time.Duration `yaml:"duration"`
	MaxTicks        int           `yaml:"max_ticks"`
	StopOnAllCrash  bool          `yaml:"stop_on_all_crashed"`
	StopOnRouteDone bool          `yaml:"stop_on_route_complete"`
	MinSurvivors    int           `yaml:"min_survivors"`
}

var validFormations = []string{"circle", "grid", "line", "sphere"}
var validLevels = []string{"debug", "info", "warn", "error"}
var validReportFormats = []string{"json", "markdown", "html"}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid
func (c *SimulationConfig) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}

	if c.Simulation.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive")
	}

	if c.ScenarioFile == "" {
		if c.Swarm.NumDrones <= 0 {
			return fmt.Errorf("number of drones must be positive")
		}
		if !oneOf(c.Swarm.FormationType, validFormations) {
			return fmt.Errorf("formation type must be one of %v", validFormations)
		}
		if err := c.Flocking.Validate(); err != nil {
			return fmt.Errorf("flocking: %w", err)
		}
		for i, o := range c.Obstacles {
			if _, err := o.Build(); err != nil {
				return fmt.Errorf("obstacle %d: %w", i, err)
			}
		}
	}

	if c.Migration.Enabled {
		if len(c.Migration.Waypoints) == 0 {
			return fmt.Errorf("migration enabled without waypoints")
		}
		if c.Migration.CruiseSpeed <= 0 || c.Migration.ArrivalRadius <= 0 {
			return fmt.Errorf("migration cruise speed and arrival radius must be positive")
		}
	}

	if c.Prediction.Enabled && (c.Prediction.Interval <= 0 || c.Prediction.RestartDelay <= 0) {
		return fmt.Errorf("prediction interval and restart delay must be positive")
	}

	if c.Performance.StepsPerTick <= 0 {
		return fmt.Errorf("steps per tick must be positive")
	}

	if !oneOf(c.Logging.ConsoleLevel, validLevels) {
		return fmt.Errorf("console level must be one of %v", validLevels)
	}

	if c.Logging.EnableReport && !oneOf(c.Logging.ReportFormat, validReportFormats) {
		return fmt.Errorf("report format must be one of %v", validReportFormats)
	}

	if c.Termination.Duration <= 0 && c.Termination.MaxTicks <= 0 && !c.Termination.StopOnRouteDone {
		return errors.New("at least one termination condition is required")
	}

	return nil
}

// String returns a human-readable representation of the configuration
func (c *SimulationConfig) String() string {
	source := fmt.Sprintf("%d drones in %s formation", c.Swarm.NumDrones, c.Swarm.FormationType)
	if c.ScenarioFile != "" {
		source = "scenario " + c.ScenarioFile
	}
	return fmt.Sprintf(`Simulation Configuration:
  Name: %s
  Description: %s
  Update Interval: %v
  Fast Mode: %t

Swarm:
  Source: %s
  Leader: %d
  Dummies: %d
  Obstacles: %d

Flocking:
  Desired Separation: %.2f
  Neighbor Radius: %.2f
  Max Speed: %.2f

Migration:
  Enabled: %t
  Waypoints: %d
  Cruise Speed: %.2f

Prediction:
  Enabled: %t
  Steps: %d x %d

Termination:
  Duration: %v
  Max Ticks: %d

Logging:
  Console Level: %s
  Report Enabled: %t
  Report Format: %s`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.UpdateInterval,
		c.Simulation.FastMode,
		source,
		c.Swarm.LeaderID,
		len(c.Swarm.Dummies),
		len(c.Obstacles),
		c.Flocking.DesiredSeparation,
		c.Flocking.NeighborRadius(),
		c.Flocking.MaxSpeed,
		c.Migration.Enabled,
		len(c.Migration.Waypoints),
		c.Migration.CruiseSpeed,
		c.Prediction.Enabled,
		c.Prediction.Steps,
		c.Prediction.StepMultiplier,
		c.Termination.Duration,
		c.Termination.MaxTicks,
		c.Logging.ConsoleLevel,
		c.Logging.EnableReport,
		c.Logging.ReportFormat,
	)
}

// GetDefaultConfig returns the stock flocking run
func GetDefaultConfig() *SimulationConfig {
	return &SimulationConfig{
		Simulation: SimulationSettings{
			Name:           "flocking",
			Description:    "Olfati-Saber flocking swarm through an obstacle field",
			UpdateInterval: 20 * time.Millisecond,
			Seed:           1,
		},

		Swarm: SwarmConfig{
			NumDrones:     10,
			FormationType: "circle",
			SpawnRadius:   5,
			SpawnHeight:   5,
			SpawnSpacing:  4,
			LeaderID:      0,
		},

		Flocking: swarm.DefaultParams(),

		Migration: MigrationConfig{
			Enabled:       true,
			CruiseSpeed:   2,
			ArrivalRadius: 3,
			Waypoints: []geometry.Vec3{
				{40, 5, 0},
				{40, 5, 40},
			},
		},

		Obstacles: []scenario.ObstacleSpec{
			{Type: "cylinder", Center: geometry.Vec3{20, 5, 2}, Radius: 1.5, Height: 12},
			{Type: "box", Center: geometry.Vec3{40, 5, 20}, Size: geometry.Vec3{6, 10, 2}, Rotation: geometry.Vec3{0, 30, 0}},
		},

		Prediction: PredictionConfig{
			Enabled:        true,
			Interval:       100 * time.Millisecond,
			Steps:          20,
			StepMultiplier: 2,
			RestartDelay:   250 * time.Millisecond,
		},

		Feedback: FeedbackConfig{
			Enabled:          true,
			AxisScale:        geometry.Vec3{1, 1, 1},
			AxisFloor:        geometry.Vec3{0.75, 0.5, 0.75},
			ActivationRadius: 5,
			SmoothStep:       true,
			ActivationGamma:  1,
			IntensityGamma:   1,
			Actuators: []geometry.Vec3{
				{0, 0, 1}, {1, 0, 0}, {0, 0, -1}, {-1, 0, 0},
			},
		},

		Performance: PerformanceConfig{
			StepsPerTick:        1,
			TelemetryBatchSize:  256,
			TelemetryFlush:      time.Second,
			MaxConcurrentWrites: 4,
		},

		Logging: LoggingConfig{
			ConsoleLevel:      "info",
			EnableReport:      true,
			ReportFormat:      "markdown",
			ReportOutputPath:  "./reports/",
			EventBufferSize:   10000,
			MetricsHistory:    1000,
			MetricsEveryTicks: 10,
			StatusEveryTicks:  250,
		},

		Termination: TerminationConfig{
			Duration:        2 * time.Minute,
			StopOnAllCrash:  true,
			StopOnRouteDone: true,
		},
	}
}
