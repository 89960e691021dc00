package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/simulation"
	"github.com/picogrid/swarm-simulations/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available simulations",
	Long:  `List all available simulations with their descriptions`,
	RunE:  listSimulations,
}

func listSimulations(cmd *cobra.Command, args []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	if len(simInfos) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	table := logger.NewTable("NAME", "VERSION", "CATEGORY", "REGISTERED", "DESCRIPTION")
	for _, info := range simInfos {
		registered := "no"
		if simulation.DefaultRegistry.Has(info.Config.Name) {
			registered = "yes"
		}
		table.AddRow(
			info.Config.Name,
			info.Config.Version,
			info.Config.Category,
			registered,
			info.Config.Description,
		)
	}
	table.Print()
	return nil
}
