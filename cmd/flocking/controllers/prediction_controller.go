package controllers

import (
	"context"
	"sync"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/prediction"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// PredictionController feeds snapshots of the live swarm to a background
// forecast runner and reports newly predicted crashes.
type PredictionController struct {
	cfg    config.PredictionConfig
	runner *prediction.Runner

	mu      sync.Mutex
	pending *prediction.Request

	lastSeen string
	warned   map[int]bool
}

// NewPredictionController creates a stopped controller for sc.
func NewPredictionController(cfg config.PredictionConfig, sc *swarm.Context, log logger.Logger) *PredictionController {
	pc := &PredictionController{cfg: cfg, warned: make(map[int]bool)}
	pc.runner = prediction.NewRunner(sc.Params, sc.Obstacles, pc.take,
		prediction.WithInterval(cfg.Interval),
		prediction.WithRestartDelay(cfg.RestartDelay),
		prediction.WithLogger(log),
	)
	return pc
}

// Start launches the runner.
func (pc *PredictionController) Start(ctx context.Context) error {
	return pc.runner.Start(ctx)
}

// Stop halts the runner.
func (pc *PredictionController) Stop() {
	pc.runner.Stop()
}

// Runner exposes the underlying runner.
func (pc *PredictionController) Runner() *prediction.Runner { return pc.runner }

// Publish snapshots sc for the next forecast, replacing any snapshot the
// worker has not picked up yet. Call it from the tick goroutine.
func (pc *PredictionController) Publish(sc *swarm.Context) {
	req := prediction.Request{
		Tick:           sc.Tick(),
		Agents:         sc.Snapshot(),
		LeaderID:       sc.LeaderID,
		Alignment:      sc.Alignment,
		Steps:          pc.cfg.Steps,
		StepMultiplier: pc.cfg.StepMultiplier,
	}
	pc.mu.Lock()
	pc.pending = &req
	pc.mu.Unlock()
}

func (pc *PredictionController) take() (prediction.Request, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.pending == nil {
		return prediction.Request{}, false
	}
	req := *pc.pending
	pc.pending = nil
	return req, true
}

// Poll returns the latest result when it is new, together with the predicted
// crashes of agents that were not warned about before.
func (pc *PredictionController) Poll() (*prediction.Result, []prediction.Trajectory) {
	res := pc.runner.Latest()
	if res == nil || res.ID == pc.lastSeen {
		return nil, nil
	}
	pc.lastSeen = res.ID

	var fresh []prediction.Trajectory
	for _, tr := range res.PredictedCrashes() {
		if !pc.warned[tr.AgentID] {
			pc.warned[tr.AgentID] = true
			fresh = append(fresh, tr)
		}
	}
	return res, fresh
}

// Forget clears the warning for agentID so a later forecast can warn again.
func (pc *PredictionController) Forget(agentID int) {
	delete(pc.warned, agentID)
}
