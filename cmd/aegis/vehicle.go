package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/aegis/pkg/agent"
	"github.com/jihwankim/aegis/pkg/model"
)

var vehicleCmd = &cobra.Command{
	Use:   "vehicle",
	Args:  cobra.NoArgs,
	Short: "Run a single simulated vehicle agent",
	Long: `Starts one vehicle agent that streams telemetry, detects anomalies,
and reacts to dispatch commands. The vehicle type is inferred from the ID
prefix (AMB, FIRE, POL).`,
	RunE: runVehicle,
}

func init() {
	vehicleCmd.Flags().String("id", "", "vehicle ID (e.g. AMB-001), required")
	vehicleCmd.Flags().Float64("frequency", 0, "telemetry frequency in Hz (overrides config)")
	vehicleCmd.Flags().StringArray("failure", nil, "failure scenario to activate at start (repeatable)")
}

func runVehicle(cmd *cobra.Command, args []string) error {
	vehicleID, _ := cmd.Flags().GetString("id")
	if vehicleID == "" {
		return fmt.Errorf("--id flag is required")
	}
	frequency, _ := cmd.Flags().GetFloat64("frequency")
	failures, _ := cmd.Flags().GetStringArray("failure")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if frequency != 0 {
		cfg.Agent.TelemetryFrequencyHz = frequency
	}

	logger := newLogger(cfg)
	logger.Info("AEGIS vehicle agent starting", "version", version, "vehicle_id", vehicleID)

	ctx, cancel := signalContext()
	defer cancel()

	fleetBus, err := newBus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer fleetBus.Close()

	a, err := agent.New(agent.Config{
		VehicleID:           vehicleID,
		FleetID:             cfg.Fleet.FleetID,
		FrequencyHz:         cfg.Agent.TelemetryFrequencyHz,
		HeartbeatEveryTicks: cfg.Agent.HeartbeatEveryTicks,
		InitialLatitude:     cfg.Agent.InitialLatitude,
		InitialLongitude:    cfg.Agent.InitialLongitude,
		AgentVersion:        cfg.Agent.AgentVersion,
		Seed:                time.Now().UnixNano(),
	}, fleetBus, logger)
	if err != nil {
		return fmt.Errorf("failed to create vehicle agent: %w", err)
	}

	for _, name := range failures {
		scenario, ok := model.ParseFailureScenario(name)
		if !ok {
			return fmt.Errorf("unknown failure scenario: %s", name)
		}
		a.ActivateFailure(scenario)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("AEGIS vehicle agent stopped", "vehicle_id", vehicleID)
	return nil
}
