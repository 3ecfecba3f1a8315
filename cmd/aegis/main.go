package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	local   bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Fleet coordination backbone for emergency vehicles",
	Long: `AEGIS coordinates a fleet of emergency vehicles over a pub/sub fabric.
Vehicle agents stream telemetry and predictive alerts; the orchestrator
maintains fleet state and dispatches the nearest available units to
reported emergencies.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "use the in-process bus instead of Redis (single-process demos)")

	// Add subcommands
	rootCmd.AddCommand(orchestratorCmd)
	rootCmd.AddCommand(vehicleCmd)
	rootCmd.AddCommand(fleetCmd)
}

// Commands are defined in separate files:
// - orchestratorCmd in orchestrator.go
// - vehicleCmd in vehicle.go
// - fleetCmd in fleet.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
