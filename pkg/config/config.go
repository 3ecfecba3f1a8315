package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the AEGIS fleet coordination configuration
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Redis     RedisConfig     `yaml:"redis"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Agent     AgentConfig     `yaml:"agent"`
	API       APIConfig       `yaml:"api"`
}

// FrameworkConfig contains general framework settings
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FleetConfig contains fleet-wide settings
type FleetConfig struct {
	FleetID string `yaml:"fleet_id"`
}

// AgentConfig contains vehicle agent settings
type AgentConfig struct {
	TelemetryFrequencyHz float64 `yaml:"telemetry_frequency_hz"`
	HeartbeatEveryTicks  int     `yaml:"heartbeat_every_ticks"`
	InitialLatitude      float64 `yaml:"initial_latitude"`
	InitialLongitude     float64 `yaml:"initial_longitude"`
	AgentVersion         string  `yaml:"agent_version"`
}

// APIConfig contains the orchestrator HTTP API settings
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Fleet: FleetConfig{
			FleetID: "fleet01",
		},
		Agent: AgentConfig{
			TelemetryFrequencyHz: 1.0,
			HeartbeatEveryTicks:  10,
			InitialLatitude:      37.7749,
			InitialLongitude:     -122.4194,
			AgentVersion:         "1.0.0",
		},
		API: APIConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults. Environment variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Fleet.FleetID == "" {
		return fmt.Errorf("fleet.fleet_id is required")
	}
	if c.Agent.TelemetryFrequencyHz < 0.1 || c.Agent.TelemetryFrequencyHz > 10.0 {
		return fmt.Errorf("agent.telemetry_frequency_hz must be in [0.1, 10.0], got %.2f", c.Agent.TelemetryFrequencyHz)
	}
	if c.Agent.HeartbeatEveryTicks < 1 {
		return fmt.Errorf("agent.heartbeat_every_ticks must be at least 1")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required")
	}
	return nil
}
