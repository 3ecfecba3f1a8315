package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihwankim/aegis/pkg/api"
	"github.com/jihwankim/aegis/pkg/orchestrator"
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Args:  cobra.NoArgs,
	Short: "Run the fleet orchestrator and its HTTP API",
	Long: `Starts the fleet coordination core: consumes vehicle telemetry,
heartbeats, and alerts from the bus, dispatches units to emergencies, and
serves the operator REST/WebSocket API.`,
	RunE: runOrchestrator,
}

func init() {
	orchestratorCmd.Flags().String("listen", "", "API listen address (overrides config)")
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	listenAddr, _ := cmd.Flags().GetString("listen")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if listenAddr != "" {
		cfg.API.ListenAddr = listenAddr
	}

	logger := newLogger(cfg)
	logger.Info("AEGIS orchestrator starting", "version", version)

	ctx, cancel := signalContext()
	defer cancel()

	fleetBus, err := newBus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer fleetBus.Close()

	orch := orchestrator.New(orchestrator.Config{FleetID: cfg.Fleet.FleetID}, fleetBus, logger)
	server := api.NewServer(orch, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- orch.Run(ctx) }()
	go func() { errCh <- server.Run(ctx, cfg.API.ListenAddr) }()

	err = <-errCh
	cancel()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("AEGIS orchestrator stopped")
	return nil
}
