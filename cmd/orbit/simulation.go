package orbit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/metrics"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
	"github.com/picogrid/swarm-simulations/pkg/simulation"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// radialGain pulls the swarm back onto the orbit radius.
const radialGain = 0.5

var stepLength = time.Duration(swarm.FixedDt * float64(time.Second))

// OrbitSimulation flies a flock around a center point at constant speed
type OrbitSimulation struct {
	config   *Config
	sc       *swarm.Context
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	log      logger.Logger

	lastAngle float64
	swept     float64
	laps      int
	crashes   int
	summary   map[string]interface{}
}

// NewOrbitSimulation creates a new instance
func NewOrbitSimulation() simulation.Simulation {
	return &OrbitSimulation{stopChan: make(chan struct{})}
}

// Name returns the simulation name
func (s *OrbitSimulation) Name() string {
	return "Swarm Orbit"
}

// Description returns the simulation description
func (s *OrbitSimulation) Description() string {
	return "Flocking swarm circling a center point at a given speed"
}

// Configure sets up the simulation with provided parameters
func (s *OrbitSimulation) Configure(params map[string]interface{}) error {
	cfg, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = cfg
	return nil
}

// Run executes the simulation
func (s *OrbitSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		return fmt.Errorf("simulation not configured")
	}
	cfg := s.config
	s.log = logger.WithPrefix("orbit")

	logger.Infof("Starting %s with %d drones, radius=%.1fm, speed=%.1fm/s", s.Name(), cfg.NumDrones, cfg.RadiusMeters, cfg.SpeedMetersPerS)

	sc, err := s.spawn()
	if err != nil {
		return err
	}
	s.sc = sc
	s.lastAngle = angleAround(geometry.Centroid(sc.Positions()), cfg.Center)

	var ticker *time.Ticker
	if !cfg.FastMode {
		ticker = time.NewTicker(cfg.UpdateInterval)
		defer ticker.Stop()
	}

	reason := "duration reached"
	for time.Duration(sc.Tick())*stepLength < cfg.Duration {
		if stop := s.wait(ctx, ticker); stop != "" {
			s.finish(stop)
			if stop == "cancelled" {
				return ctx.Err()
			}
			logger.Info("Simulation stopped by user")
			return nil
		}
		if !s.step() {
			reason = "all drones crashed"
			break
		}
	}

	logger.Infof("Simulation completed after %s simulated", time.Duration(sc.Tick())*stepLength)
	s.finish(reason)
	return nil
}

// wait blocks until the next tick is due. In fast mode it only checks for
// cancellation. A non-empty result names why the run must end.
func (s *OrbitSimulation) wait(ctx context.Context, ticker *time.Ticker) string {
	if ticker == nil {
		select {
		case <-ctx.Done():
			return "cancelled"
		case <-s.stopChan:
			return "stopped"
		default:
			return ""
		}
	}
	select {
	case <-ctx.Done():
		return "cancelled"
	case <-s.stopChan:
		return "stopped"
	case <-ticker.C:
		return ""
	}
}

// spawn places the flock in a small ring at the start of the orbit. Each
// drone gets a fixed random radial offset of up to RadiusOffsetM.
func (s *OrbitSimulation) spawn() (*swarm.Context, error) {
	cfg := s.config
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))

	start := cfg.Center.Add(geometry.Vec3{cfg.RadiusMeters, 0, 0})
	agents := make([]*swarm.Agent, cfg.NumDrones)
	for i := range agents {
		ring := cfg.Separation
		if cfg.RadiusOffsetM > 0 {
			ring += (r.Float64()*2 - 1) * cfg.RadiusOffsetM
		}
		phase := float64(i) * 2 * math.Pi / float64(cfg.NumDrones)
		pos := start.Add(geometry.Vec3{ring * math.Cos(phase), 0, ring * math.Sin(phase)})
		if cfg.NumDrones == 1 {
			pos = start
		}
		agents[i] = swarm.NewAgent(i, pos, geometry.Zero)
	}

	params := swarm.DefaultParams()
	params.DesiredSeparation = cfg.Separation
	params.MaxSpeed = math.Max(params.MaxSpeed, 2*cfg.SpeedMetersPerS)
	return swarm.NewContext(params, agents, obstacles.NewStore(), swarm.WithLeader(-1), swarm.WithLogger(s.log))
}

// step steers the reference velocity along the orbit and advances the swarm.
// It returns false once no drone is left.
func (s *OrbitSimulation) step() bool {
	cfg := s.config
	sc := s.sc

	positions := sc.Positions()
	if len(positions) == 0 {
		return false
	}
	ref := geometry.Centroid(positions)
	if g := sc.Graph(); g != nil {
		if main := g.Main(); len(main) > 0 {
			pts := make([]geometry.Vec3, len(main))
			for i, a := range main {
				pts[i] = a.Position
			}
			ref = geometry.Centroid(pts)
		}
	}
	sc.Alignment = OrbitVelocity(ref, cfg.Center, cfg.RadiusMeters, cfg.SpeedMetersPerS)

	res := sc.Step()
	for _, a := range res.Crashed {
		s.crashes++
		s.log.WithField("agent", a.ID).Warn("drone crashed")
	}
	sc.RemoveCrashed()

	s.mu.Lock()
	angle := angleAround(ref, cfg.Center)
	s.swept += wrapAngle(angle - s.lastAngle)
	s.lastAngle = angle
	laps := int(math.Abs(s.swept) / (2 * math.Pi))
	s.mu.Unlock()

	if laps > s.laps {
		s.laps = laps
		logger.Swarmf("Lap %d completed after %s with %d drones", laps, time.Duration(sc.Tick())*stepLength, len(sc.Positions()))
	}
	return len(sc.Positions()) > 0
}

// OrbitVelocity returns the horizontal velocity that keeps a point at ref
// circling center at the given radius and speed. Off-radius points are
// pulled back proportionally to their radial error.
func OrbitVelocity(ref, center geometry.Vec3, radius, speed float64) geometry.Vec3 {
	rel := geometry.Horizontal(ref.Sub(center))
	dist := rel.Len()
	if dist < geometry.Epsilon {
		return geometry.Vec3{speed, 0, 0}
	}
	out := rel.Mul(1 / dist)
	tangent := geometry.Vec3{out.Z(), 0, -out.X()}.Mul(speed)
	return tangent.Add(out.Mul((radius - dist) * radialGain))
}

func angleAround(p, center geometry.Vec3) float64 {
	rel := p.Sub(center)
	return math.Atan2(-rel.Z(), rel.X())
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Laps returns how many full orbits the swarm has flown so far.
func (s *OrbitSimulation) Laps() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swept / (2 * math.Pi)
}

func (s *OrbitSimulation) finish(reason string) {
	summary := map[string]interface{}{
		"End Reason":     reason,
		"Simulated Time": (time.Duration(s.sc.Tick()) * stepLength).String(),
		"Laps":           fmt.Sprintf("%.2f", s.Laps()),
		"Survivors":      fmt.Sprintf("%d/%d", len(s.sc.Positions()), s.config.NumDrones),
		"Crashes":        s.crashes,
	}
	if g := s.sc.Graph(); g != nil {
		snap := metrics.Compute(g, s.sc.Params, nil)
		summary["Overall Cohesion"] = fmt.Sprintf("%.3f", snap.OverallCohesion)
		summary["Components"] = snap.Components
	}

	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
}

// Summary returns the outcome of the last run
func (s *OrbitSimulation) Summary() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Stop gracefully stops the simulation
func (s *OrbitSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register("Swarm Orbit", NewOrbitSimulation); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
