// Package orchestrator implements the fleet coordination core: it consumes
// vehicle streams from the bus, maintains per-vehicle snapshots, and
// dispatches units to emergencies.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jihwankim/aegis/pkg/bus"
	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
)

// Sentinel errors surfaced to API callers
var (
	ErrEmergencyNotFound = errors.New("emergency not found")
	ErrEmergencyResolved = errors.New("emergency already resolved")
)

// Config contains orchestrator settings
type Config struct {
	FleetID string
}

// Event is a state-change notification consumed by the API layer for
// WebSocket push
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
	TS   time.Time   `json:"ts"`
}

// Orchestrator owns all fleet state. Every mutation happens on the event
// loop goroutine inside Run: bus messages and public operations are both
// funneled through it, so dispatch reservations are fully serialized without
// locks.
type Orchestrator struct {
	cfg     Config
	bus     bus.Bus
	logger  *logging.Logger
	metrics *Metrics

	fleet       map[string]*model.VehicleStatusSnapshot
	emergencies map[string]*model.Emergency
	dispatches  map[string]*model.Dispatch
	dispatcher  *Dispatcher

	ops     chan func()
	events  chan Event
	stopped chan struct{}
}

// New creates an orchestrator. Run must be called before any operation.
func New(cfg Config, b bus.Bus, logger *logging.Logger) *Orchestrator {
	fleet := make(map[string]*model.VehicleStatusSnapshot)
	return &Orchestrator{
		cfg:         cfg,
		bus:         b,
		logger:      logger,
		metrics:     NewMetrics(),
		fleet:       fleet,
		emergencies: make(map[string]*model.Emergency),
		dispatches:  make(map[string]*model.Dispatch),
		dispatcher:  NewDispatcher(fleet, logger),
		ops:         make(chan func()),
		events:      make(chan Event, 64),
		stopped:     make(chan struct{}),
	}
}

// Metrics returns the orchestrator's Prometheus instrumentation
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Events returns the stream of state-change notifications. Slow consumers
// lose events rather than back-pressuring the loop.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Run consumes the vehicle streams and operation requests until the context
// is cancelled. It is the only goroutine that touches fleet state.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)

	vehicleSub, err := o.bus.PSubscribe(ctx,
		bus.PatternTelemetry,
		bus.PatternHeartbeat,
		bus.PatternAlerts,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to vehicle streams: %w", err)
	}
	defer vehicleSub.Unsubscribe()

	emergencySub, err := o.bus.Subscribe(ctx, bus.TopicEmergenciesNew)
	if err != nil {
		return fmt.Errorf("failed to subscribe to emergency stream: %w", err)
	}
	defer emergencySub.Unsubscribe()

	o.logger.Info("Orchestrator started", "fleet_id", o.cfg.FleetID)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Orchestrator stopping",
				"vehicles", len(o.fleet),
				"emergencies", len(o.emergencies))
			return ctx.Err()
		case msg, ok := <-vehicleSub.Messages():
			if !ok {
				return fmt.Errorf("vehicle stream closed")
			}
			o.handleVehicleMessage(msg)
		case msg, ok := <-emergencySub.Messages():
			if !ok {
				return fmt.Errorf("emergency stream closed")
			}
			o.handleEmergencyMessage(ctx, msg)
		case op := <-o.ops:
			op()
		}
	}
}

// do runs fn on the event loop and waits for it to complete
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case o.ops <- wrapped:
	case <-o.stopped:
		return fmt.Errorf("orchestrator is not running")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessEmergency registers an emergency and dispatches units to it.
// Returns the resulting dispatch record. The event loop stores its own copy
// of the emergency: the caller's struct reflects the outcome but is never
// touched by later operations such as a resolve.
func (o *Orchestrator) ProcessEmergency(ctx context.Context, e *model.Emergency) (*model.Dispatch, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid emergency: %w", err)
	}
	var dispatch *model.Dispatch
	err := o.do(ctx, func() {
		owned := *e
		dispatch = o.processEmergency(ctx, &owned)
		*e = owned
	})
	if err != nil {
		return nil, err
	}
	return dispatch.Clone(), nil
}

// ResolveEmergency marks an emergency resolved and releases its units.
// Returns the released vehicle IDs.
func (o *Orchestrator) ResolveEmergency(ctx context.Context, emergencyID string) ([]string, error) {
	var (
		released []string
		opErr    error
	)
	err := o.do(ctx, func() {
		released, opErr = o.resolveEmergency(ctx, emergencyID)
	})
	if err != nil {
		return nil, err
	}
	return released, opErr
}

// Emergency returns a copy of the emergency with the given ID
func (o *Orchestrator) Emergency(ctx context.Context, emergencyID string) (*model.Emergency, error) {
	var found *model.Emergency
	err := o.do(ctx, func() {
		if e, ok := o.emergencies[emergencyID]; ok {
			clone := *e
			found = &clone
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrEmergencyNotFound
	}
	return found, nil
}

// Emergencies returns copies of all known emergencies sorted by creation
// time, newest first
func (o *Orchestrator) Emergencies(ctx context.Context) ([]model.Emergency, error) {
	var out []model.Emergency
	err := o.do(ctx, func() {
		for _, e := range o.emergencies {
			out = append(out, *e)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].EmergencyID < out[j].EmergencyID
	})
	return out, nil
}

// Dispatch returns a copy of the dispatch record for an emergency
func (o *Orchestrator) Dispatch(ctx context.Context, emergencyID string) (*model.Dispatch, error) {
	var found *model.Dispatch
	err := o.do(ctx, func() {
		if d, ok := o.dispatches[emergencyID]; ok {
			found = d.Clone()
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrEmergencyNotFound
	}
	return found, nil
}

// Snapshots returns copies of every vehicle snapshot sorted by vehicle ID
func (o *Orchestrator) Snapshots(ctx context.Context) ([]model.VehicleStatusSnapshot, error) {
	var out []model.VehicleStatusSnapshot
	err := o.do(ctx, func() {
		for _, snap := range o.fleet {
			copied := *snap
			if snap.Location != nil {
				loc := *snap.Location
				copied.Location = &loc
			}
			out = append(out, copied)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out, nil
}

// FleetSummary is an aggregate view of the fleet for the API
type FleetSummary struct {
	FleetSize       int                             `json:"fleet_size"`
	StatusCounts    map[model.OperationalStatus]int `json:"status_counts"`
	AvailableUnits  map[model.VehicleType]int       `json:"available_units"`
	ActiveAlerts    int                             `json:"active_alerts"`
	OpenEmergencies int                             `json:"open_emergencies"`
}

// Summary returns the aggregate fleet view
func (o *Orchestrator) Summary(ctx context.Context) (*FleetSummary, error) {
	summary := &FleetSummary{
		StatusCounts:   make(map[model.OperationalStatus]int),
		AvailableUnits: make(map[model.VehicleType]int),
	}
	err := o.do(ctx, func() {
		summary.FleetSize = len(o.fleet)
		for _, snap := range o.fleet {
			summary.StatusCounts[snap.OperationalStatus]++
			if snap.HasActiveAlert {
				summary.ActiveAlerts++
			}
		}
		summary.AvailableUnits = o.dispatcher.AvailableCount()
		summary.OpenEmergencies = o.openEmergencies()
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// handleVehicleMessage decodes the envelope and routes by message type
func (o *Orchestrator) handleVehicleMessage(msg bus.Message) {
	var envelope model.Message
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping undecodable message", "topic", msg.Topic, "error", err)
		return
	}

	o.metrics.messagesTotal.WithLabelValues(string(envelope.MessageType)).Inc()

	switch envelope.MessageType {
	case model.MessageTelemetryUpdate:
		o.handleTelemetry(&envelope)
	case model.MessageHeartbeat:
		o.handleHeartbeat(&envelope)
	case model.MessageAlertGenerated:
		o.handleAlert(&envelope)
	default:
		o.logger.Warn("Ignoring unknown message type",
			"message_type", string(envelope.MessageType),
			"source", envelope.Source)
	}
}

// handleTelemetry applies a telemetry record to the fleet state,
// auto-registering unknown vehicles as idle
func (o *Orchestrator) handleTelemetry(envelope *model.Message) {
	var t model.VehicleTelemetry
	if err := json.Unmarshal(envelope.Payload, &t); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping malformed telemetry", "source", envelope.Source, "error", err)
		return
	}
	if t.VehicleID == "" {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping telemetry without vehicle ID", "source", envelope.Source)
		return
	}

	snap, ok := o.fleet[t.VehicleID]
	if !ok {
		snap = o.registerVehicle(t.VehicleID)
	}

	snap.LastSeenAt = time.Now().UTC()
	if err := t.Location.Validate(); err == nil {
		loc := t.Location
		snap.Location = &loc
	} else {
		o.logger.Warn("Keeping prior location, telemetry location invalid",
			"vehicle_id", t.VehicleID, "error", err)
	}
	snap.BatteryVoltage = t.BatteryVoltage
	snap.FuelLevelPercent = t.FuelLevelPercent

	o.updateGauges()
}

// registerVehicle creates an idle snapshot for a vehicle seen for the first
// time
func (o *Orchestrator) registerVehicle(vehicleID string) *model.VehicleStatusSnapshot {
	vt, known := model.VehicleTypeFromID(vehicleID)
	if !known {
		o.logger.Warn("Unknown vehicle ID prefix, registering as ambulance", "vehicle_id", vehicleID)
	}
	snap := &model.VehicleStatusSnapshot{
		VehicleID:         vehicleID,
		VehicleType:       vt,
		OperationalStatus: model.StatusIdle,
		LastSeenAt:        time.Now().UTC(),
	}
	o.fleet[vehicleID] = snap
	o.logger.Info("Vehicle registered",
		"vehicle_id", vehicleID,
		"vehicle_type", string(vt),
		"fleet_size", len(o.fleet))
	return snap
}

// handleHeartbeat refreshes liveness for known vehicles; heartbeats from
// unknown vehicles are ignored
func (o *Orchestrator) handleHeartbeat(envelope *model.Message) {
	var hb model.HeartbeatPayload
	if err := json.Unmarshal(envelope.Payload, &hb); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping malformed heartbeat", "source", envelope.Source, "error", err)
		return
	}
	vehicleID := hb.VehicleID
	if vehicleID == "" {
		vehicleID = envelope.Source
	}
	snap, ok := o.fleet[vehicleID]
	if !ok {
		o.logger.Debug("Ignoring heartbeat from unknown vehicle", "vehicle_id", vehicleID)
		return
	}
	snap.LastSeenAt = time.Now().UTC()
	o.logger.Debug("Heartbeat received", "vehicle_id", vehicleID, "uptime_seconds", hb.UptimeSeconds)
}

// handleAlert marks the vehicle as carrying an active alert. The flag is
// sticky: it is cleared only by explicit acknowledgment, never by a healthy
// telemetry record.
func (o *Orchestrator) handleAlert(envelope *model.Message) {
	var alert model.PredictiveAlert
	if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping malformed alert", "source", envelope.Source, "error", err)
		return
	}

	o.metrics.alertsTotal.WithLabelValues(string(alert.Severity)).Inc()

	snap, ok := o.fleet[alert.VehicleID]
	if !ok {
		o.logger.Debug("Ignoring alert from unknown vehicle", "vehicle_id", alert.VehicleID)
		return
	}
	snap.HasActiveAlert = true
	o.logger.Warn("Vehicle alert active",
		"vehicle_id", alert.VehicleID,
		"severity", string(alert.Severity),
		"component", alert.Component,
		"recommended_action", alert.RecommendedAction)

	o.updateGauges()
}

// handleEmergencyMessage ingests an operator-injected emergency from the bus
func (o *Orchestrator) handleEmergencyMessage(ctx context.Context, msg bus.Message) {
	var e model.Emergency
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping malformed emergency", "error", err)
		return
	}
	if e.EmergencyID == "" {
		fresh := model.NewEmergency(e.EmergencyType, e.Severity, e.Location, e.UnitsRequired)
		fresh.Address = e.Address
		fresh.Description = e.Description
		fresh.ReportedBy = e.ReportedBy
		e = *fresh
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.UnitsRequired.Total() == 0 {
		e.UnitsRequired = model.DefaultUnitsRequired(e.EmergencyType)
	}
	if err := e.Validate(); err != nil {
		o.metrics.parseErrors.Inc()
		o.logger.Warn("Dropping invalid emergency", "emergency_id", e.EmergencyID, "error", err)
		return
	}
	o.processEmergency(ctx, &e)
}

// processEmergency runs the dispatch pipeline for one emergency. Called
// only from the event loop.
func (o *Orchestrator) processEmergency(ctx context.Context, e *model.Emergency) *model.Dispatch {
	e.Status = model.EmergencyDispatching
	o.emergencies[e.EmergencyID] = e

	dispatch := o.dispatcher.SelectUnits(e)
	o.dispatches[e.EmergencyID] = dispatch
	o.metrics.dispatchesTotal.Inc()

	if len(dispatch.Units) > 0 {
		now := time.Now().UTC()
		e.Status = model.EmergencyDispatched
		e.DispatchedAt = &now
	} else {
		o.logger.Warn("no_units_available",
			"emergency_id", e.EmergencyID,
			"emergency_type", string(e.EmergencyType))
	}

	// Best-effort publication: a failed publish is logged but never rolls
	// back the reservation.
	for _, unit := range dispatch.Units {
		cmd := model.DispatchCommand{
			Command:       model.CommandDispatch,
			EmergencyID:   e.EmergencyID,
			EmergencyType: string(e.EmergencyType),
			Location:      &e.Location,
			DispatchID:    dispatch.DispatchID,
		}
		payload, err := json.Marshal(cmd)
		if err != nil {
			o.logger.Error("Failed to encode dispatch command", "vehicle_id", unit.VehicleID, "error", err)
			continue
		}
		topic := bus.CommandsTopic(o.cfg.FleetID, unit.VehicleID)
		if err := o.bus.Publish(ctx, topic, payload); err != nil {
			o.logger.Error("dispatch_publish_failed",
				"vehicle_id", unit.VehicleID,
				"error", err)
		}
	}

	broadcast := model.AssignedBroadcast{
		EmergencyID:      e.EmergencyID,
		DispatchID:       dispatch.DispatchID,
		AssignedVehicles: dispatch.VehicleIDs(),
	}
	if payload, err := json.Marshal(broadcast); err == nil {
		topic := bus.DispatchAssignedTopic(e.EmergencyID)
		if err := o.bus.Publish(ctx, topic, payload); err != nil {
			o.logger.Error("broadcast_failed", "emergency_id", e.EmergencyID, "error", err)
		}
	}

	o.logger.Info("emergency_processed",
		"emergency_id", e.EmergencyID,
		"emergency_type", string(e.EmergencyType),
		"status", string(e.Status),
		"units_assigned", len(dispatch.Units))

	o.updateGauges()
	o.emit(Event{Name: "emergency.dispatched", Data: broadcast, TS: time.Now().UTC()})
	return dispatch
}

// resolveEmergency releases units and closes out the emergency. Called only
// from the event loop.
func (o *Orchestrator) resolveEmergency(ctx context.Context, emergencyID string) ([]string, error) {
	e, ok := o.emergencies[emergencyID]
	if !ok {
		return nil, ErrEmergencyNotFound
	}
	if e.Status == model.EmergencyResolved {
		return nil, ErrEmergencyResolved
	}

	released := o.dispatcher.ReleaseUnits(emergencyID)

	now := time.Now().UTC()
	e.Status = model.EmergencyResolved
	e.ResolvedAt = &now
	if d, ok := o.dispatches[emergencyID]; ok {
		d.CompletedAt = &now
	}

	broadcast := model.ResolvedBroadcast{
		EmergencyID:      emergencyID,
		ReleasedVehicles: released,
	}
	if payload, err := json.Marshal(broadcast); err == nil {
		topic := bus.DispatchResolvedTopic(emergencyID)
		if err := o.bus.Publish(ctx, topic, payload); err != nil {
			o.logger.Error("broadcast_failed", "emergency_id", emergencyID, "error", err)
		}
	}

	o.logger.Info("emergency_resolved",
		"emergency_id", emergencyID,
		"released_vehicles", released)

	o.updateGauges()
	o.emit(Event{Name: "emergency.resolved", Data: broadcast, TS: now})
	return released, nil
}

func (o *Orchestrator) openEmergencies() int {
	open := 0
	for _, e := range o.emergencies {
		if e.Status != model.EmergencyResolved && e.Status != model.EmergencyCancelled {
			open++
		}
	}
	return open
}

func (o *Orchestrator) updateGauges() {
	o.metrics.fleetSize.Set(float64(len(o.fleet)))
	o.metrics.emergenciesOpen.Set(float64(o.openEmergencies()))
	counts := o.dispatcher.AvailableCount()
	for _, vt := range []model.VehicleType{
		model.VehicleTypeAmbulance,
		model.VehicleTypeFireTruck,
		model.VehicleTypePolice,
	} {
		o.metrics.availableUnits.WithLabelValues(string(vt)).Set(float64(counts[vt]))
	}
}

// emit pushes an event to the notification channel, dropping it when the
// consumer is behind
func (o *Orchestrator) emit(e Event) {
	select {
	case o.events <- e:
	default:
	}
}
