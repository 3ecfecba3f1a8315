package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/aegis/pkg/agent"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Args:  cobra.NoArgs,
	Short: "Run a simulated fleet of vehicle agents in one process",
	Long: `Starts a mixed fleet of ambulance, fire truck, and police agents with
generated IDs (AMB-001, FIRE-001, ...), all publishing to the same bus.
Useful for demos and load testing the orchestrator.`,
	RunE: runFleet,
}

func init() {
	fleetCmd.Flags().Int("ambulances", 3, "number of ambulance agents")
	fleetCmd.Flags().Int("fire-trucks", 2, "number of fire truck agents")
	fleetCmd.Flags().Int("police", 2, "number of police agents")
}

func runFleet(cmd *cobra.Command, args []string) error {
	ambulances, _ := cmd.Flags().GetInt("ambulances")
	fireTrucks, _ := cmd.Flags().GetInt("fire-trucks")
	police, _ := cmd.Flags().GetInt("police")

	total := ambulances + fireTrucks + police
	if total == 0 {
		return fmt.Errorf("fleet must contain at least one vehicle")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("AEGIS fleet starting", "version", version, "vehicles", total)

	ctx, cancel := signalContext()
	defer cancel()

	fleetBus, err := newBus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer fleetBus.Close()

	var ids []string
	for i := 1; i <= ambulances; i++ {
		ids = append(ids, fmt.Sprintf("AMB-%03d", i))
	}
	for i := 1; i <= fireTrucks; i++ {
		ids = append(ids, fmt.Sprintf("FIRE-%03d", i))
	}
	for i := 1; i <= police; i++ {
		ids = append(ids, fmt.Sprintf("POL-%03d", i))
	}

	var wg sync.WaitGroup
	for i, vehicleID := range ids {
		a, err := agent.New(agent.Config{
			VehicleID:           vehicleID,
			FleetID:             cfg.Fleet.FleetID,
			FrequencyHz:         cfg.Agent.TelemetryFrequencyHz,
			HeartbeatEveryTicks: cfg.Agent.HeartbeatEveryTicks,
			InitialLatitude:     cfg.Agent.InitialLatitude + float64(i)*0.002,
			InitialLongitude:    cfg.Agent.InitialLongitude + float64(i)*0.002,
			AgentVersion:        cfg.Agent.AgentVersion,
			Seed:                time.Now().UnixNano() + int64(i),
		}, fleetBus, logger)
		if err != nil {
			return fmt.Errorf("failed to create agent %s: %w", vehicleID, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Vehicle agent exited", "error", err)
			}
		}()
	}

	wg.Wait()
	logger.Info("AEGIS fleet stopped")
	return nil
}
