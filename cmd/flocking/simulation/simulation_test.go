package simulation

import (
	"bufio"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/cmd/flocking/core"
	"github.com/picogrid/swarm-simulations/cmd/flocking/reporting"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/scenario"
	"github.com/picogrid/swarm-simulations/pkg/simulation"
)

func newTestSimulation(t *testing.T, mutate func(*config.SimulationConfig)) *FlockingSimulation {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Simulation.FastMode = true
	cfg.Logging.ConsoleLevel = "error"
	cfg.Logging.ReportOutputPath = t.TempDir()
	cfg.Logging.ReportFormat = "json"
	cfg.Prediction.Interval = 2 * time.Millisecond
	cfg.Termination = config.TerminationConfig{MaxTicks: 60, StopOnAllCrash: true}
	if mutate != nil {
		mutate(cfg)
	}

	s := NewFlockingSimulation().(*FlockingSimulation)
	s.out = nil
	s.config = cfg
	return s
}

func TestRegistered(t *testing.T) {
	sim, err := simulation.DefaultRegistry.Get("Swarm Flocking")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sim.(simulation.Summarizer); !ok {
		t.Error("flocking simulation should report a summary")
	}
}

func TestRunFastMode(t *testing.T) {
	telemetry := filepath.Join(t.TempDir(), "flight.jsonl")
	s := newTestSimulation(t, func(cfg *config.SimulationConfig) {
		cfg.Performance.TelemetryPath = telemetry
		cfg.Performance.StepsPerTick = 2
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	summary := s.Summary()
	if summary["End Reason"] != "tick limit reached" {
		t.Errorf("end reason = %v", summary["End Reason"])
	}
	if summary["Steps"] != uint64(60) {
		t.Errorf("steps = %v, want 60", summary["Steps"])
	}
	if _, ok := summary["Survivors"]; !ok {
		t.Error("survivors missing from summary")
	}

	path, ok := summary["Report"].(string)
	if !ok {
		t.Fatal("report path missing from summary")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var report reporting.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Outcome.Drones != 10 || len(report.Metrics) == 0 {
		t.Errorf("report outcome = %+v, %d metrics", report.Outcome, len(report.Metrics))
	}
	if report.Outcome.TelemetryRecords == 0 {
		t.Error("no telemetry recorded")
	}

	f, err := os.Open(telemetry)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec core.TelemetryRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		lines++
	}
	if int64(lines) != report.Outcome.TelemetryRecords {
		t.Errorf("telemetry lines = %d, report says %d", lines, report.Outcome.TelemetryRecords)
	}
}

func TestRunStopsWhenSwarmIsLost(t *testing.T) {
	s := newTestSimulation(t, func(cfg *config.SimulationConfig) {
		cfg.Logging.EnableReport = false
		cfg.Prediction.Enabled = false
		cfg.Obstacles = []scenario.ObstacleSpec{{
			Type:   "sphere",
			Center: geometry.Vec3{0, cfg.Swarm.SpawnHeight, 0},
			Radius: cfg.Swarm.SpawnRadius + 5,
		}}
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	summary := s.Summary()
	if summary["End Reason"] != "all drones crashed" || summary["Crashes"] != 10 {
		t.Errorf("summary = %v", summary)
	}
	if _, ok := summary["Report"]; ok {
		t.Error("no report expected when reporting is disabled")
	}

	crashes := 0
	for _, e := range s.flightLog.GetEvents() {
		if e.Type == reporting.EventTypeCrash {
			crashes++
			if e.Details["cause"] != "obstacle" {
				t.Errorf("crash cause = %v", e.Details["cause"])
			}
		}
	}
	if crashes != 10 {
		t.Errorf("crash events = %d", crashes)
	}
}

func TestStopBeforeRun(t *testing.T) {
	s := newTestSimulation(t, func(cfg *config.SimulationConfig) {
		cfg.Logging.EnableReport = false
		cfg.Termination = config.TerminationConfig{Duration: time.Hour}
	})

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal("second Stop should be a no-op")
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Summary()["End Reason"] != "stopped" {
		t.Errorf("end reason = %v", s.Summary()["End Reason"])
	}
}

func TestRunFromScenarioFile(t *testing.T) {
	s := newTestSimulation(t, func(cfg *config.SimulationConfig) {
		cfg.ScenarioFile = filepath.Join("..", "..", "..", "pkg", "scenario", "testdata", "canyon.yaml")
		cfg.Logging.EnableReport = false
		cfg.Migration.Enabled = false
		cfg.Termination = config.TerminationConfig{MaxTicks: 5}
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.sc.Obstacles.Len() == 0 {
		t.Error("scenario obstacles were not loaded")
	}
}

func TestEvery(t *testing.T) {
	tests := []struct {
		now   uint64
		steps int
		n     int
		want  bool
	}{
		{10, 1, 10, true},
		{11, 1, 10, false},
		{20, 2, 10, true},
		{20, 2, 0, false},
	}
	for _, tt := range tests {
		if got := every(tt.now, tt.steps, tt.n); got != tt.want {
			t.Errorf("every(%d, %d, %d) = %v", tt.now, tt.steps, tt.n, got)
		}
	}
}

func TestBuildContextPlacesDummiesAfterDrones(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Swarm.NumDrones = 4
	cfg.Swarm.Dummies = []geometry.Vec3{{40, 5, 0}, {40, 5, 10}}

	sc, info, err := buildContext(cfg, rand.New(rand.NewSource(1)), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if info.Drones != 4 || info.Dummies != 2 {
		t.Errorf("info = %+v", info)
	}
	if got := len(sc.Agents()); got != 6 {
		t.Fatalf("agents = %d, want 6", got)
	}
	for id, want := range map[int]geometry.Vec3{4: {40, 5, 0}, 5: {40, 5, 10}} {
		a := sc.Agent(id)
		if a == nil || a.Movable || a.Position != want {
			t.Errorf("dummy %d = %+v, want immovable at %v", id, a, want)
		}
	}
}
