package simulation

import (
	"fmt"
	"math/rand"

	"github.com/picogrid/swarm-simulations/cmd/flocking/config"
	"github.com/picogrid/swarm-simulations/cmd/flocking/core"
	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/scenario"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// spawnInfo describes how the swarm was created
type spawnInfo struct {
	Drones    int
	Dummies   int
	Formation string
}

// buildContext creates the swarm context either from the scenario file or
// from the spawn settings and obstacle list in cfg.
func buildContext(cfg *config.SimulationConfig, rng *rand.Rand, log logger.Logger) (*swarm.Context, spawnInfo, error) {
	if cfg.ScenarioFile != "" {
		return contextFromScenario(cfg.ScenarioFile, log)
	}

	formation, err := core.NewFormation(cfg.Swarm.FormationType, cfg.Swarm.SpawnRadius, cfg.Swarm.SpawnSpacing, cfg.Swarm.SpawnHeight)
	if err != nil {
		return nil, spawnInfo{}, err
	}

	positions := core.SpawnPositions(formation, cfg.Swarm.NumDrones, cfg.Swarm.SpawnCenter, rng)
	agents := make([]*swarm.Agent, 0, len(positions))
	for i, p := range positions {
		agents = append(agents, swarm.NewAgent(i, p, geometry.Zero))
	}

	store, err := scenario.BuildStore(cfg.Obstacles)
	if err != nil {
		return nil, spawnInfo{}, fmt.Errorf("failed to build obstacles: %w", err)
	}

	sc, err := swarm.NewContext(cfg.Flocking, agents, store,
		swarm.WithLeader(cfg.Swarm.LeaderID),
		swarm.WithLogger(log))
	if err != nil {
		return nil, spawnInfo{}, err
	}
	for i, p := range cfg.Swarm.Dummies {
		if err := sc.AddAgent(swarm.NewImmovableAgent(len(positions)+i, p)); err != nil {
			return nil, spawnInfo{}, fmt.Errorf("failed to place dummy %d: %w", i, err)
		}
	}
	return sc, spawnInfo{
		Drones:    len(positions),
		Dummies:   len(cfg.Swarm.Dummies),
		Formation: cfg.Swarm.FormationType,
	}, nil
}

func contextFromScenario(path string, log logger.Logger) (*swarm.Context, spawnInfo, error) {
	scn, err := scenario.Load(path)
	if err != nil {
		return nil, spawnInfo{}, err
	}
	sc, err := scn.NewContext(swarm.WithLogger(log))
	if err != nil {
		return nil, spawnInfo{}, fmt.Errorf("scenario %s: %w", path, err)
	}

	info := spawnInfo{Formation: "scenario"}
	for _, a := range sc.Agents() {
		if a.Movable {
			info.Drones++
		} else {
			info.Dummies++
		}
	}
	log.Infof("Loaded scenario %s: %d drones, %d dummies, %d obstacles", path, info.Drones, info.Dummies, sc.Obstacles.Len())
	return sc, info, nil
}
