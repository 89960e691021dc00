package simulation

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/cmd/flocking/controllers"
	"github.com/picogrid/swarm-simulations/cmd/flocking/core"
	"github.com/picogrid/swarm-simulations/cmd/flocking/reporting"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/metrics"
	"github.com/picogrid/swarm-simulations/pkg/simulation"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// stepLength is the simulated time covered by one integration step.
const stepLength = time.Duration(swarm.FixedDt * float64(time.Second))

// FlockingSimulation flies a swarm through an obstacle field along a
// waypoint route
type FlockingSimulation struct {
	config     *config.SimulationConfig
	configPath string
	params     map[string]interface{}

	sc         *swarm.Context
	migration  *controllers.MigrationController
	obstacles  *controllers.ObstacleController
	prediction *controllers.PredictionController
	telemetry  *core.TelemetryBuffer
	sink       *core.JSONLinesSink

	flightLog *reporting.FlightLogger
	out       io.Writer
	log       logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	stats   flightStats
	summary map[string]interface{}
}

type flightStats struct {
	runID      string
	drones     int
	crashes    int
	skipped    map[int]bool
	waypoints  int
	routeDone  bool
	leaderLost bool
	components int
	predicted  int
	reason     string
	metrics    metrics.Snapshot
	reportPath string
}

// NewFlockingSimulation creates a new flocking simulation
func NewFlockingSimulation() simulation.Simulation {
	return &FlockingSimulation{
		configPath: os.Getenv("SWARM_FLOCKING_CONFIG"),
		out:        os.Stdout,
		stopChan:   make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *FlockingSimulation) Name() string {
	return "Swarm Flocking"
}

// Description returns the simulation description
func (s *FlockingSimulation) Description() string {
	return "Olfati-Saber flocking swarm flying a waypoint route through an obstacle field"
}

// Configure loads the configuration file and applies params on top of it
func (s *FlockingSimulation) Configure(params map[string]interface{}) error {
	logger.Info("Configuring swarm flocking simulation...")

	cfg, err := config.LoadConfigWithOverrides(s.configPath, params)
	if err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.ConsoleLevel))
	logger.Debugf("Configuration:\n%s", cfg.String())

	s.config = cfg
	s.params = params
	return nil
}

// Run flies the swarm until a termination condition is met, Stop is called
// or ctx ends.
func (s *FlockingSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		if err := s.Configure(nil); err != nil {
			return err
		}
	}
	cfg := s.config
	s.log = logger.WithPrefix("flocking")
	s.stats = flightStats{runID: uuid.NewString(), skipped: make(map[int]bool)}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sc, info, err := buildContext(cfg, rand.New(rand.NewSource(seed)), s.log)
	if err != nil {
		return fmt.Errorf("failed to create swarm: %w", err)
	}
	s.sc = sc
	s.stats.drones = info.Drones

	s.flightLog = reporting.NewFlightLogger(s.stats.runID,
		reporting.WithOutput(s.out),
		reporting.WithBuffers(cfg.Logging.EventBufferSize, cfg.Logging.MetricsHistory),
		reporting.WithConsoleLevel(cfg.Logging.ConsoleLevel))
	s.flightLog.LogSpawn(sc.Tick(), info.Drones, info.Dummies, info.Formation)

	s.migration = nil
	if cfg.Migration.Enabled {
		s.migration = controllers.NewMigrationController(cfg.Migration)
	}
	s.obstacles = controllers.NewObstacleController(cfg.Feedback)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.startWorkers(runCtx); err != nil {
		return err
	}

	loopErr := s.loop(runCtx)
	s.stopWorkers()
	s.finish()

	if loopErr != nil && s.stopRequested() {
		return nil
	}
	return loopErr
}

func (s *FlockingSimulation) startWorkers(ctx context.Context) error {
	cfg := s.config
	if path := cfg.Performance.TelemetryPath; path != "" {
		sink, err := core.CreateJSONLinesFile(path)
		if err != nil {
			return fmt.Errorf("failed to open telemetry output: %w", err)
		}
		s.sink = sink
		s.telemetry = core.NewTelemetryBuffer(s.stats.runID,
			cfg.Performance.TelemetryBatchSize,
			cfg.Performance.TelemetryFlush,
			cfg.Performance.MaxConcurrentWrites,
			sink)
		s.telemetry.Start(ctx)
	}

	if cfg.Prediction.Enabled {
		s.prediction = controllers.NewPredictionController(cfg.Prediction, s.sc, s.log.WithPrefix("prediction"))
		if err := s.prediction.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlockingSimulation) stopWorkers() {
	if s.prediction != nil {
		s.prediction.Stop()
	}
	if s.telemetry != nil {
		if err := s.telemetry.Stop(context.Background()); err != nil {
			s.flightLog.LogError("Failed to flush telemetry", err, nil)
		}
		if err := s.sink.Close(); err != nil {
			s.flightLog.LogError("Failed to close telemetry output", err, nil)
		}
	}
}

func (s *FlockingSimulation) loop(ctx context.Context) error {
	cfg := s.config
	s.log.Infof("Starting flight: %d drones, step %s, %d steps per tick", s.stats.drones, stepLength, cfg.Performance.StepsPerTick)

	var ticker *time.Ticker
	var bar *logger.ProgressBar
	if cfg.Simulation.FastMode {
		if total := s.expectedSteps(); total > 0 && s.out != nil {
			bar = logger.NewProgressBar(total, "Flying")
			defer bar.Finish()
		}
	} else {
		ticker = time.NewTicker(cfg.Simulation.UpdateInterval)
		defer ticker.Stop()
	}

	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				s.stats.reason = "cancelled"
				return ctx.Err()
			case <-s.stopChan:
				s.stats.reason = "stopped"
				return nil
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				s.stats.reason = "cancelled"
				return ctx.Err()
			case <-s.stopChan:
				s.stats.reason = "stopped"
				return nil
			default:
			}
		}

		if reason := s.tick(); reason != "" {
			s.stats.reason = reason
			s.log.Infof("Flight ended: %s", reason)
			return nil
		}
		if bar != nil {
			bar.Update(int(s.sc.Tick()))
		}
	}
}

// tick advances the swarm by one update and reports a termination reason
// once the run should end.
func (s *FlockingSimulation) tick() string {
	cfg := s.config
	sc := s.sc

	steps := cfg.Performance.StepsPerTick
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		s.handleStep(sc.Step())
	}
	now := sc.Tick()

	if s.migration != nil {
		if ev, reached := s.migration.Update(sc); reached {
			s.stats.waypoints++
			s.stats.routeDone = ev.RouteComplete
			s.flightLog.LogWaypoint(now, ev.Index, ev.Lap, ev.Waypoint, ev.RouteComplete)
		}
	}

	status := s.obstacles.Update(sc)
	if len(status.NearMisses) > 0 {
		s.flightLog.LogNearMiss(now, status.NearMisses, status.Clearance)
	}

	if s.prediction != nil {
		s.prediction.Publish(sc)
		if res, crashes := s.prediction.Poll(); res != nil {
			for _, tr := range crashes {
				s.stats.predicted++
				s.flightLog.LogPredictedCrash(now, tr.AgentID, tr.FirstCrash, res.Horizon())
			}
		}
	}

	if s.telemetry != nil {
		s.telemetry.QueueAgents(now, sc.Graph(), sc.Agents())
	}

	if every(now, steps, cfg.Logging.MetricsEveryTicks) {
		s.recordMetrics()
	}
	if every(now, steps, cfg.Logging.StatusEveryTicks) {
		s.flightLog.LogSwarmStatus(now, s.survivors(), s.stats.drones, s.stats.components, s.stats.metrics.OverallCohesion)
	}

	return s.checkTermination()
}

func (s *FlockingSimulation) handleStep(res swarm.TickResult) {
	sc := s.sc
	for _, a := range res.Crashed {
		s.stats.crashes++
		s.flightLog.LogCrash(res.Tick, a.ID, a.Position, s.crashCause(a))
		if a.ID == sc.LeaderID && !s.stats.leaderLost {
			s.stats.leaderLost = true
			s.flightLog.LogLeaderLost(res.Tick, a.ID, "crashed")
		}
	}
	for _, a := range res.Skipped {
		if !s.stats.skipped[a.ID] {
			s.stats.skipped[a.ID] = true
			s.flightLog.LogSkipped(res.Tick, a.ID)
		}
	}
	if s.stats.components != 0 && res.Components != s.stats.components {
		s.flightLog.LogComponents(res.Tick, s.stats.components, res.Components, res.MainSize)
	}
	s.stats.components = res.Components

	for _, a := range sc.RemoveCrashed() {
		if s.prediction != nil {
			s.prediction.Forget(a.ID)
		}
	}
}

func (s *FlockingSimulation) crashCause(a *swarm.Agent) string {
	if cp, ok := s.sc.Obstacles.ClosestPoint(a.Position); ok &&
		geometry.Distance(cp, a.Position) <= s.sc.Params.DroneRadius+geometry.Epsilon {
		return "obstacle"
	}
	return "collision"
}

func (s *FlockingSimulation) recordMetrics() {
	g := s.sc.Graph()
	if g == nil {
		return
	}
	snap := metrics.Compute(g, s.sc.Params, s.sc.Obstacles)
	s.stats.metrics = snap
	s.flightLog.RecordSnapshot(s.sc.Tick(), snap)
}

func (s *FlockingSimulation) checkTermination() string {
	t := s.config.Termination
	steps := s.sc.Tick()
	alive := s.survivors()

	switch {
	case s.stats.drones > 0 && alive == 0 && t.StopOnAllCrash:
		return "all drones crashed"
	case t.MinSurvivors > 0 && alive < t.MinSurvivors:
		return fmt.Sprintf("fewer than %d drones flying", t.MinSurvivors)
	case t.StopOnRouteDone && s.stats.routeDone:
		return "route complete"
	case t.Duration > 0 && time.Duration(steps)*stepLength >= t.Duration:
		return "duration reached"
	case t.MaxTicks > 0 && steps >= uint64(t.MaxTicks):
		return "tick limit reached"
	}
	return ""
}

func (s *FlockingSimulation) survivors() int {
	n := 0
	for _, a := range s.sc.Agents() {
		if a.Movable && !a.Crashed {
			n++
		}
	}
	return n
}

func (s *FlockingSimulation) expectedSteps() int {
	t := s.config.Termination
	total := 0
	if t.Duration > 0 {
		total = int(t.Duration / stepLength)
	}
	if t.MaxTicks > 0 && (total == 0 || t.MaxTicks < total) {
		total = t.MaxTicks
	}
	return total
}

// every reports whether a periodic action is due at step now when the
// period n is counted in ticks of stepsPerTick steps.
func every(now uint64, stepsPerTick, n int) bool {
	if n <= 0 {
		return false
	}
	return (now/uint64(stepsPerTick))%uint64(n) == 0
}

func (s *FlockingSimulation) finish() {
	cfg := s.config
	sc := s.sc

	s.recordMetrics()
	outcome := reporting.FlightOutcome{
		Reason:           s.stats.reason,
		Ticks:            sc.Tick(),
		SimulatedTime:    time.Duration(sc.Tick()) * stepLength,
		Drones:           s.stats.drones,
		Survivors:        s.survivors(),
		RouteComplete:    s.stats.routeDone,
		WaypointsReached: s.stats.waypoints,
		NearMisses:       s.obstacles.NearMisses(),
		Skipped:          len(s.stats.skipped),
	}
	if c := s.obstacles.MinClearance(); !math.IsInf(c, 1) {
		outcome.MinClearance = c
	}
	if g := sc.Graph(); g != nil {
		outcome.LayerCounts = g.LayerCounts()
	}
	if s.prediction != nil {
		outcome.Forecasts = s.prediction.Runner().Forecasts()
		outcome.ForecastRestarts = s.prediction.Runner().Restarts()
	}
	if s.telemetry != nil {
		outcome.TelemetryRecords = s.telemetry.GetStats().RecordsSent
	}

	s.flightLog.PrintSummary()

	if cfg.Logging.EnableReport {
		gen := reporting.NewReportGenerator(s.flightLog, reporting.ReportConfig{
			OutputDir:        cfg.Logging.ReportOutputPath,
			Format:           cfg.Logging.ReportFormat,
			DetailLevel:      "detailed",
			SimulationConfig: s.params,
		})
		path, err := gen.Save(gen.Generate(outcome))
		if err != nil {
			s.flightLog.LogError("Failed to save flight report", err, nil)
		}
		s.stats.reportPath = path
	}

	summary := map[string]interface{}{
		"Run ID":            s.stats.runID,
		"End Reason":        outcome.Reason,
		"Simulated Time":    outcome.SimulatedTime.String(),
		"Steps":             outcome.Ticks,
		"Survivors":         fmt.Sprintf("%d/%d", outcome.Survivors, outcome.Drones),
		"Crashes":           s.stats.crashes,
		"Waypoints Reached": outcome.WaypointsReached,
		"Predicted Crashes": s.stats.predicted,
		"Overall Cohesion":  fmt.Sprintf("%.3f", s.stats.metrics.OverallCohesion),
	}
	if s.stats.reportPath != "" {
		summary["Report"] = s.stats.reportPath
	}

	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
}

// Summary returns the outcome of the last run
func (s *FlockingSimulation) Summary() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Stop ends a running flight. It is safe to call more than once.
func (s *FlockingSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

func (s *FlockingSimulation) stopRequested() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

func init() {
	if err := simulation.DefaultRegistry.Register("Swarm Flocking", NewFlockingSimulation); err != nil {
		logger.Errorf("Failed to register flocking simulation: %v", err)
	}
}
