package simulation

import (
	"context"
)

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until it finishes, fails or ctx ends.
	Run(ctx context.Context) error

	// Stop gracefully shuts down the simulation
	Stop() error
}

// Summarizer is implemented by simulations that can describe their outcome
// once Run returns.
type Summarizer interface {
	Summary() map[string]interface{}
}
