package main

import (
	"fmt"
	"os"

	// Import to register the simulation
	_ "github.com/picogrid/swarm-simulations/cmd/flocking/simulation"
)

func main() {
	fmt.Println("Swarm Flocking simulation registered. Use 'swarm-sim run' to execute.")
	os.Exit(0)
}
