package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/metrics"
	"github.com/picogrid/swarm-simulations/pkg/prediction"
	"github.com/picogrid/swarm-simulations/pkg/scenario"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast a scenario",
	Long:  `Load a scenario file and forecast where every agent ends up`,
	RunE:  predictScenario,
}

func init() {
	predictCmd.Flags().String("scenario", "", "scenario file (yaml, json or toml)")
	predictCmd.Flags().Int("steps", prediction.DefaultSteps, "forecast iterations")
	predictCmd.Flags().Int("multiplier", prediction.DefaultStepMultiplier, "integration steps per iteration")
	predictCmd.Flags().String("format", "table", "output format (table, json)")
	_ = predictCmd.MarkFlagRequired("scenario")
}

type predictOutput struct {
	Start    map[int]geometry.Vec3 `json:"-"`
	Scenario string                `json:"scenario"`
	Metrics  metrics.Snapshot      `json:"metrics"`
	Forecast prediction.Result     `json:"forecast"`
}

func predictScenario(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("scenario")
	steps, _ := cmd.Flags().GetInt("steps")
	multiplier, _ := cmd.Flags().GetInt("multiplier")
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	sctx, err := sc.NewContext(swarm.WithLogger(logger.Default()))
	if err != nil {
		return fmt.Errorf("failed to build scenario: %w", err)
	}

	g := swarm.BuildGraph(sctx.Agents(), sctx.Params.NeighborRadius())
	g.Refresh(sctx.LeaderID)
	start := make(map[int]geometry.Vec3, len(sctx.Agents()))
	for _, a := range sctx.Agents() {
		start[a.ID] = a.Position
	}
	out := predictOutput{
		Start:    start,
		Scenario: sc.Name,
		Metrics:  metrics.Compute(g, sctx.Params, sctx.Obstacles),
	}
	forecast := func() error {
		out.Forecast = prediction.RunForecast(sctx.Params, sctx.Obstacles, prediction.Request{
			Tick:           sctx.Tick(),
			Agents:         sctx.Snapshot(),
			LeaderID:       sctx.LeaderID,
			Alignment:      sctx.Alignment,
			Steps:          steps,
			StepMultiplier: multiplier,
		})
		return nil
	}

	if format == "json" {
		_ = forecast()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	_ = logger.WithSpinner(fmt.Sprintf("Forecasting %d agents", len(sctx.Agents())), forecast)
	printForecast(out)
	return nil
}

func printForecast(out predictOutput) {
	logger.LogSection(fmt.Sprintf("Forecast: %s", out.Scenario))
	logger.LogKeyValues(map[string]interface{}{
		"Horizon":               out.Forecast.Horizon(),
		"Components":            out.Metrics.Components,
		"Relative connectivity": fmt.Sprintf("%.2f", out.Metrics.RelativeConnectivity),
		"Overall cohesion":      fmt.Sprintf("%.2f", out.Metrics.OverallCohesion),
		"Predicted crashes":     len(out.Forecast.PredictedCrashes()),
	})

	table := logger.NewTable("AGENT", "START", "END", "FIRST CRASH")
	for _, tr := range out.Forecast.Trajectories {
		if len(tr.Positions) == 0 {
			continue
		}
		first, last := out.Start[tr.AgentID], tr.Positions[len(tr.Positions)-1]
		crash := "-"
		if tr.FirstCrash >= 0 {
			crash = strconv.Itoa(tr.FirstCrash)
		}
		table.AddRow(
			strconv.Itoa(tr.AgentID),
			fmt.Sprintf("(%.1f, %.1f, %.1f)", first.X(), first.Y(), first.Z()),
			fmt.Sprintf("(%.1f, %.1f, %.1f)", last.X(), last.Y(), last.Z()),
			crash,
		)
	}
	table.Print()

	if crashes := out.Forecast.PredictedCrashes(); len(crashes) > 0 {
		items := make([]string, len(crashes))
		for i, tr := range crashes {
			items[i] = fmt.Sprintf("agent %d at iteration %d", tr.AgentID, tr.FirstCrash)
		}
		logger.LogList("Predicted crashes:", items)
	}
}
