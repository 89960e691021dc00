package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-simulations/pkg/config"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/simulation"
	"github.com/picogrid/swarm-simulations/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/swarm-simulations/cmd/flocking/simulation"
	_ "github.com/picogrid/swarm-simulations/cmd/orbit"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long:  `Run a simulation interactively or with specified parameters`,
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().String("preset", "", "saved preset to apply")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	simName, err := selectSimulation(cmd, simInfos)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	info, ok := utils.FindSimulation(simInfos, simName)
	if !ok {
		return fmt.Errorf("simulation configuration not found for %s", simName)
	}

	overrides, err := collectOverrides(cmd, simName)
	if err != nil {
		return err
	}

	params, err := utils.ResolveParameters(info.Config.Parameters, overrides)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	logger.Progressf("Configuring %s with %d parameters", simName, len(params))
	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn("Received interrupt signal, stopping simulation...")
			if err := sim.Stop(); err != nil {
				logger.Errorf("Failed to stop simulation: %v", err)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if s, ok := sim.(simulation.Summarizer); ok {
		logger.LogSubSection("Summary")
		logger.LogKeyValues(s.Summary())
	}
	logger.Success("Simulation completed successfully")
	return nil
}

// collectOverrides merges the preset (if any) with the params file; file
// values win.
func collectOverrides(cmd *cobra.Command, simName string) (map[string]interface{}, error) {
	overrides := make(map[string]interface{})

	if presetName, _ := cmd.Flags().GetString("preset"); presetName != "" {
		presets, err := config.LoadPresets()
		if err != nil {
			return nil, fmt.Errorf("failed to load presets: %w", err)
		}
		preset, ok := presets.Find(presetName)
		if !ok {
			return nil, fmt.Errorf("preset %s not found", presetName)
		}
		if preset.Simulation != "" && preset.Simulation != simName {
			logger.Warnf("Preset %s targets %s, applying to %s anyway", preset.Name, preset.Simulation, simName)
		}
		for k, v := range preset.Parameters {
			overrides[k] = v
		}
	}

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		var fromFile map[string]interface{}
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse params file: %w", err)
		}
		for k, v := range fromFile {
			overrides[k] = v
		}
	}

	return overrides, nil
}

func selectSimulation(cmd *cobra.Command, simInfos []utils.SimulationInfo) (string, error) {
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}

	if len(simInfos) == 0 {
		return "", fmt.Errorf("no simulations found")
	}
	if len(simInfos) == 1 || !utils.Interactive() {
		return simInfos[0].Config.Name, nil
	}

	options := make([]string, len(simInfos))
	descriptions := make(map[string]string)
	for i, info := range simInfos {
		options[i] = info.Config.Name
		descriptions[info.Config.Name] = info.Config.Description
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: options,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
