// Package agent implements the on-vehicle pipeline: telemetry generation,
// failure injection, anomaly detection, and publication to the fleet bus.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jihwankim/aegis/pkg/bus"
	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
)

// Config contains the settings for a single vehicle agent
type Config struct {
	VehicleID           string
	VehicleType         model.VehicleType
	FleetID             string
	FrequencyHz         float64
	HeartbeatEveryTicks int
	InitialLatitude     float64
	InitialLongitude    float64
	AgentVersion        string
	Seed                int64
}

// Agent is a simulated vehicle: it generates telemetry at a fixed frequency,
// overlays failure scenarios, detects anomalies, and publishes everything on
// the fleet bus. It also listens for dispatch commands addressed to it.
type Agent struct {
	cfg       Config
	bus       bus.Bus
	logger    *logging.Logger
	generator *Generator
	injector  *FailureInjector
	detector  *AnomalyDetector

	mu          sync.Mutex
	status      model.OperationalStatus
	emergencyID string

	startedAt time.Time
	tickCount int
}

// New creates a vehicle agent. The vehicle type is inferred from the ID
// prefix when not set explicitly.
func New(cfg Config, b bus.Bus, logger *logging.Logger) (*Agent, error) {
	if cfg.VehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}
	if cfg.FrequencyHz < 0.1 || cfg.FrequencyHz > 10.0 {
		return nil, fmt.Errorf("telemetry frequency %.2f Hz out of range [0.1, 10.0]", cfg.FrequencyHz)
	}
	if cfg.HeartbeatEveryTicks <= 0 {
		cfg.HeartbeatEveryTicks = 10
	}
	if cfg.AgentVersion == "" {
		cfg.AgentVersion = "1.0.0"
	}
	if cfg.VehicleType == "" {
		vt, known := model.VehicleTypeFromID(cfg.VehicleID)
		if !known {
			logger.Warn("Unknown vehicle ID prefix, defaulting to ambulance", "vehicle_id", cfg.VehicleID)
		}
		cfg.VehicleType = vt
	}

	return &Agent{
		cfg:       cfg,
		bus:       b,
		logger:    logger.WithField("vehicle_id", cfg.VehicleID),
		generator: NewGenerator(cfg.VehicleID, cfg.InitialLatitude, cfg.InitialLongitude, cfg.Seed),
		injector:  NewFailureInjector(),
		detector:  NewAnomalyDetector(cfg.VehicleID),
		status:    model.StatusIdle,
	}, nil
}

// ActivateFailure starts a failure scenario on this vehicle
func (a *Agent) ActivateFailure(s model.FailureScenario) {
	a.injector.Activate(s)
	a.logger.Info("Failure scenario activated", "scenario", string(s))
}

// Status returns the current operational status
func (a *Agent) Status() model.OperationalStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// CurrentEmergencyID returns the emergency this vehicle is assigned to,
// empty when none
func (a *Agent) CurrentEmergencyID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emergencyID
}

// Run executes the agent until the context is cancelled. It starts the
// command listener and then drives the telemetry loop at the configured
// frequency, compensating for tick processing time so the long-run rate
// stays accurate.
func (a *Agent) Run(ctx context.Context) error {
	cmdSub, err := a.bus.Subscribe(ctx, bus.CommandsTopic(a.cfg.FleetID, a.cfg.VehicleID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to command channel: %w", err)
	}
	defer cmdSub.Unsubscribe()

	resolvedSub, err := a.bus.PSubscribe(ctx, bus.PatternDispatchResolved)
	if err != nil {
		return fmt.Errorf("failed to subscribe to resolution broadcasts: %w", err)
	}
	defer resolvedSub.Unsubscribe()

	go a.listen(ctx, cmdSub, resolvedSub)

	a.startedAt = time.Now()
	a.logger.Info("Vehicle agent started",
		"vehicle_type", string(a.cfg.VehicleType),
		"fleet_id", a.cfg.FleetID,
		"frequency_hz", a.cfg.FrequencyHz)

	interval := time.Duration(float64(time.Second) / a.cfg.FrequencyHz)
	next := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Vehicle agent stopping", "ticks", a.tickCount)
			return ctx.Err()
		case <-timer.C:
			a.tick(ctx)
			next = next.Add(interval)
			wait := time.Until(next)
			if wait < 0 {
				// Fell behind, skip the missed slots instead of bursting
				next = time.Now().Add(interval)
				wait = interval
			}
			timer.Reset(wait)
		}
	}
}

// tick runs one generate, inject, detect, publish cycle. Publish failures
// are logged and swallowed; a broken bus must not stop the pipeline.
func (a *Agent) tick(ctx context.Context) {
	a.tickCount++

	telemetry := a.generator.Generate()
	a.injector.Apply(&telemetry)
	alerts := a.detector.Analyze(&telemetry)

	a.publishTelemetry(ctx, &telemetry)
	for i := range alerts {
		a.publishAlert(ctx, &alerts[i])
	}
	if a.tickCount%a.cfg.HeartbeatEveryTicks == 0 {
		a.publishHeartbeat(ctx)
	}
}

func (a *Agent) publishTelemetry(ctx context.Context, t *model.VehicleTelemetry) {
	payload, err := json.Marshal(t)
	if err != nil {
		a.logger.Error("Failed to encode telemetry", "error", err)
		return
	}
	a.publishEnvelope(ctx, bus.TelemetryTopic(a.cfg.FleetID, a.cfg.VehicleID),
		model.MessageTelemetryUpdate, payload)
}

func (a *Agent) publishAlert(ctx context.Context, alert *model.PredictiveAlert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		a.logger.Error("Failed to encode alert", "error", err)
		return
	}
	a.publishEnvelope(ctx, bus.AlertsTopic(a.cfg.FleetID, a.cfg.VehicleID),
		model.MessageAlertGenerated, payload)
	a.logger.Warn("Predictive alert published",
		"component", alert.Component,
		"severity", string(alert.Severity))
}

func (a *Agent) publishHeartbeat(ctx context.Context) {
	hb := model.HeartbeatPayload{
		VehicleID:             a.cfg.VehicleID,
		UptimeSeconds:         int64(time.Since(a.startedAt).Seconds()),
		LastTelemetrySequence: a.generator.LastSequence(),
		AgentVersion:          a.cfg.AgentVersion,
	}
	payload, err := json.Marshal(hb)
	if err != nil {
		a.logger.Error("Failed to encode heartbeat", "error", err)
		return
	}
	a.publishEnvelope(ctx, bus.HeartbeatTopic(a.cfg.FleetID, a.cfg.VehicleID),
		model.MessageHeartbeat, payload)
}

func (a *Agent) publishEnvelope(ctx context.Context, topic string, t model.MessageType, payload []byte) {
	msg := model.NewMessage(t, a.cfg.VehicleID, payload)
	data, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error("Failed to encode message envelope", "error", err)
		return
	}
	if err := a.bus.Publish(ctx, topic, data); err != nil {
		a.logger.Error("Publish failed", "topic", topic, "error", err)
	}
}

// listen consumes dispatch commands and resolution broadcasts until the
// context is cancelled
func (a *Agent) listen(ctx context.Context, cmdSub, resolvedSub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-cmdSub.Messages():
			if !ok {
				return
			}
			a.handleCommand(msg.Payload)
		case msg, ok := <-resolvedSub.Messages():
			if !ok {
				return
			}
			a.handleResolution(msg.Payload)
		}
	}
}

// handleCommand reacts to a command addressed to this vehicle
func (a *Agent) handleCommand(payload []byte) {
	var cmd model.DispatchCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		a.logger.Warn("Dropping malformed command", "error", err)
		return
	}

	switch cmd.Command {
	case model.CommandDispatch:
		a.mu.Lock()
		a.status = model.StatusEnRoute
		a.emergencyID = cmd.EmergencyID
		a.mu.Unlock()
		a.logger.Info("Dispatched to emergency",
			"emergency_id", cmd.EmergencyID,
			"emergency_type", cmd.EmergencyType,
			"dispatch_id", cmd.DispatchID)
	case model.CommandStandby, model.CommandReturnToBase:
		a.mu.Lock()
		a.status = model.StatusIdle
		a.emergencyID = ""
		a.mu.Unlock()
		a.logger.Info("Returning to idle", "command", string(cmd.Command))
	default:
		a.logger.Warn("Ignoring unknown command", "command", string(cmd.Command))
	}
}

// handleResolution returns the vehicle to idle when a resolution broadcast
// names it as released. Resolution broadcasts carry no command field; they
// are identified purely by the topic pattern they arrive on.
func (a *Agent) handleResolution(payload []byte) {
	var rb model.ResolvedBroadcast
	if err := json.Unmarshal(payload, &rb); err != nil {
		a.logger.Warn("Dropping malformed resolution broadcast", "error", err)
		return
	}

	released := false
	for _, id := range rb.ReleasedVehicles {
		if id == a.cfg.VehicleID {
			released = true
			break
		}
	}
	if !released {
		return
	}

	a.mu.Lock()
	a.status = model.StatusIdle
	a.emergencyID = ""
	a.mu.Unlock()
	a.logger.Info("Released from emergency", "emergency_id", rb.EmergencyID)
}
