package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-simulations/pkg/config"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/utils"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage tuning presets",
	Long:  `Manage named parameter presets applied with run --preset`,
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	RunE:  listPresets,
}

var presetAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add or replace a preset",
	Args:  cobra.MaximumNArgs(1),
	RunE:  addPreset,
}

var presetRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a preset",
	Args:  cobra.MaximumNArgs(1),
	RunE:  removePreset,
}

func init() {
	presetAddCmd.Flags().StringP("simulation", "s", "", "simulation the preset targets")
	presetAddCmd.Flags().StringToString("set", nil, "parameter values, e.g. --set num_drones=30")
	presetRemoveCmd.Flags().BoolP("yes", "y", false, "skip confirmation")

	presetCmd.AddCommand(presetListCmd)
	presetCmd.AddCommand(presetAddCmd)
	presetCmd.AddCommand(presetRemoveCmd)
}

func listPresets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadPresets()
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	if len(cfg.Presets) == 0 {
		fmt.Println("No presets configured")
		return nil
	}

	table := logger.NewTable("NAME", "SIMULATION", "PARAMETERS")
	for _, p := range cfg.Presets {
		table.AddRow(p.Name, p.Simulation, formatParameters(p.Parameters))
	}
	table.Print()
	return nil
}

func formatParameters(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func addPreset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadPresets()
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	preset := config.Preset{Parameters: make(map[string]interface{})}
	if len(args) == 1 {
		preset.Name = args[0]
	} else if err := survey.AskOne(&survey.Input{Message: "Preset name:"}, &preset.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}
	preset.Simulation, _ = cmd.Flags().GetString("simulation")
	if preset.Simulation == "" {
		if preset.Simulation, err = selectSimulation(cmd, simInfos); err != nil {
			return err
		}
	}
	info, ok := utils.FindSimulation(simInfos, preset.Simulation)
	if !ok {
		return fmt.Errorf("simulation %s not found", preset.Simulation)
	}

	set, _ := cmd.Flags().GetStringToString("set")
	for _, param := range info.Config.Parameters {
		raw, given := set[param.Name]
		if !given && utils.Interactive() {
			prompt := &survey.Input{
				Message: fmt.Sprintf("%s (blank to keep default %v):", param.Name, param.Default),
				Help:    param.Description,
			}
			if err := survey.AskOne(prompt, &raw); err != nil {
				return err
			}
		}
		if raw == "" {
			continue
		}
		value, err := param.Normalize(raw)
		if err != nil {
			return err
		}
		// Durations are stored as strings so the YAML stays readable.
		if param.Type == "duration" {
			value = raw
		}
		preset.Parameters[param.Name] = value
		delete(set, param.Name)
	}
	if len(set) > 0 {
		return fmt.Errorf("%s has no parameter %s", preset.Simulation, formatUnknown(set))
	}

	cfg.Upsert(preset)
	if err := config.SavePresets(cfg); err != nil {
		return fmt.Errorf("failed to save presets: %w", err)
	}

	logger.Successf("Preset %s saved", preset.Name)
	return nil
}

func removePreset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadPresets()
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	if len(cfg.Presets) == 0 {
		fmt.Println("No presets to remove")
		return nil
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		names := make([]string, len(cfg.Presets))
		for i, p := range cfg.Presets {
			names[i] = p.Name
		}
		prompt := &survey.Select{
			Message: "Select preset to remove:",
			Options: names,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes && utils.Interactive() {
		var confirm bool
		confirmPrompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
			Default: false,
		}
		if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Removal cancelled")
			return nil
		}
	}

	if !cfg.Remove(selected) {
		return fmt.Errorf("preset %s not found", selected)
	}
	if err := config.SavePresets(cfg); err != nil {
		return fmt.Errorf("failed to save presets: %w", err)
	}

	logger.Successf("Preset %s removed", selected)
	return nil
}

func formatUnknown(set map[string]string) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
