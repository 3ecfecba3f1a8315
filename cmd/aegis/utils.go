package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jihwankim/aegis/pkg/bus"
	"github.com/jihwankim/aegis/pkg/config"
	"github.com/jihwankim/aegis/pkg/logging"
)

// loadConfig loads and validates the configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger from config and the --verbose flag
func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.Level(cfg.Framework.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
}

// newBus connects the selected transport: Redis by default, the in-process
// bus with --local
func newBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	if local {
		return bus.NewMemoryBus(), nil
	}
	return bus.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
