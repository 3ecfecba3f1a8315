package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/aegis/pkg/bus"
	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
)

func startOrchestrator(t *testing.T) (*Orchestrator, *bus.MemoryBus, context.Context) {
	t.Helper()
	b := bus.NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })

	o := New(Config{FleetID: "fleet01"}, b, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = o.Run(ctx) }()

	// Wait until the loop is serving operations
	require.Eventually(t, func() bool {
		_, err := o.Snapshots(ctx)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	return o, b, ctx
}

func publishTelemetry(t *testing.T, b bus.Bus, ctx context.Context, vehicleID string, lat, lon float64) {
	t.Helper()
	telemetry := model.VehicleTelemetry{
		VehicleID:      vehicleID,
		Timestamp:      time.Now().UTC(),
		SequenceNumber: 1,
		Location: model.GeoLocation{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: time.Now().UTC(),
		},
		BatteryVoltage:   13.8,
		FuelLevelPercent: 75.0,
	}
	payload, err := json.Marshal(telemetry)
	require.NoError(t, err)
	envelope, err := json.Marshal(model.NewMessage(model.MessageTelemetryUpdate, vehicleID, payload))
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.TelemetryTopic("fleet01", vehicleID), envelope))
}

func publishAlert(t *testing.T, b bus.Bus, ctx context.Context, vehicleID string, severity model.AlertSeverity) {
	t.Helper()
	alert := model.PredictiveAlert{
		AlertID:   model.NewAlertID(),
		VehicleID: vehicleID,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Category:  model.CategoryEngine,
		Component: "engine",
	}
	payload, err := json.Marshal(alert)
	require.NoError(t, err)
	envelope, err := json.Marshal(model.NewMessage(model.MessageAlertGenerated, vehicleID, payload))
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.AlertsTopic("fleet01", vehicleID), envelope))
}

func waitForFleetSize(t *testing.T, o *Orchestrator, ctx context.Context, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snaps, err := o.Snapshots(ctx)
		return err == nil && len(snaps) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTelemetryAutoRegistersVehicle(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.7749, -122.4194)
	waitForFleetSize(t, o, ctx, 1)

	snaps, err := o.Snapshots(ctx)
	require.NoError(t, err)
	snap := snaps[0]
	assert.Equal(t, "AMB-001", snap.VehicleID)
	assert.Equal(t, model.VehicleTypeAmbulance, snap.VehicleType)
	assert.Equal(t, model.StatusIdle, snap.OperationalStatus)
	require.NotNil(t, snap.Location)
	assert.Equal(t, 37.7749, snap.Location.Latitude)
	assert.Equal(t, 13.8, snap.BatteryVoltage)
}

func TestAlertFlagIsSticky(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.7749, -122.4194)
	waitForFleetSize(t, o, ctx, 1)

	publishAlert(t, b, ctx, "AMB-001", model.SeverityCritical)
	require.Eventually(t, func() bool {
		snaps, _ := o.Snapshots(ctx)
		return len(snaps) == 1 && snaps[0].HasActiveAlert
	}, 2*time.Second, 5*time.Millisecond)

	// A subsequent healthy reading does not clear the flag
	publishTelemetry(t, b, ctx, "AMB-001", 37.7749, -122.4194)
	time.Sleep(50 * time.Millisecond)
	snaps, err := o.Snapshots(ctx)
	require.NoError(t, err)
	assert.True(t, snaps[0].HasActiveAlert)
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	require.NoError(t, b.Publish(ctx, bus.TelemetryTopic("fleet01", "AMB-001"), []byte("{broken")))
	require.NoError(t, b.Publish(ctx, bus.TopicEmergenciesNew, []byte("also broken")))

	// The loop survives and keeps processing
	publishTelemetry(t, b, ctx, "AMB-001", 37.7749, -122.4194)
	waitForFleetSize(t, o, ctx, 1)
}

func TestProcessEmergencyDispatchesNearestUnits(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 38.00, -122.42)
	publishTelemetry(t, b, ctx, "AMB-002", 37.775, -122.419)
	waitForFleetSize(t, o, ctx, 2)

	cmdSub, err := b.Subscribe(ctx, bus.CommandsTopic("fleet01", "AMB-002"))
	require.NoError(t, err)

	e := model.NewEmergency(model.EmergencyMedical, 4,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	dispatch, err := o.ProcessEmergency(ctx, e)
	require.NoError(t, err)
	require.Len(t, dispatch.Units, 1)
	assert.Equal(t, "AMB-002", dispatch.Units[0].VehicleID)

	// The selected vehicle received a dispatch command
	select {
	case msg := <-cmdSub.Messages():
		var cmd model.DispatchCommand
		require.NoError(t, json.Unmarshal(msg.Payload, &cmd))
		assert.Equal(t, model.CommandDispatch, cmd.Command)
		assert.Equal(t, e.EmergencyID, cmd.EmergencyID)
		assert.Equal(t, dispatch.DispatchID, cmd.DispatchID)
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch command received")
	}

	stored, err := o.Emergency(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyDispatched, stored.Status)
	assert.NotNil(t, stored.DispatchedAt)

	snaps, err := o.Snapshots(ctx)
	require.NoError(t, err)
	for _, snap := range snaps {
		if snap.VehicleID == "AMB-002" {
			assert.Equal(t, model.StatusEnRoute, snap.OperationalStatus)
		} else {
			assert.Equal(t, model.StatusIdle, snap.OperationalStatus)
		}
	}
}

func TestProcessEmergencyNoUnitsStaysDispatching(t *testing.T) {
	o, _, ctx := startOrchestrator(t)

	e := model.NewEmergency(model.EmergencyFire, 5,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	dispatch, err := o.ProcessEmergency(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, dispatch.Units)

	stored, err := o.Emergency(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyDispatching, stored.Status)
}

func TestProcessEmergencyRejectsInvalid(t *testing.T) {
	o, _, ctx := startOrchestrator(t)

	bad := model.NewEmergency(model.EmergencyMedical, 9,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	_, err := o.ProcessEmergency(ctx, bad)
	assert.Error(t, err)
}

func TestResolveEmergencyReleasesUnits(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	waitForFleetSize(t, o, ctx, 1)

	e := model.NewEmergency(model.EmergencyMedical, 3,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	_, err := o.ProcessEmergency(ctx, e)
	require.NoError(t, err)

	resolvedSub, err := b.PSubscribe(ctx, bus.PatternDispatchResolved)
	require.NoError(t, err)

	released, err := o.ResolveEmergency(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMB-001"}, released)

	select {
	case msg := <-resolvedSub.Messages():
		var rb model.ResolvedBroadcast
		require.NoError(t, json.Unmarshal(msg.Payload, &rb))
		assert.Equal(t, e.EmergencyID, rb.EmergencyID)
		assert.Equal(t, []string{"AMB-001"}, rb.ReleasedVehicles)
	case <-time.After(2 * time.Second):
		t.Fatal("no resolution broadcast received")
	}

	stored, err := o.Emergency(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyResolved, stored.Status)
	assert.NotNil(t, stored.ResolvedAt)

	// Resolving twice surfaces the conflict
	_, err = o.ResolveEmergency(ctx, e.EmergencyID)
	assert.ErrorIs(t, err, ErrEmergencyResolved)

	_, err = o.ResolveEmergency(ctx, "em-unknown")
	assert.ErrorIs(t, err, ErrEmergencyNotFound)
}

func TestResolveDoesNotMutateCallerEmergency(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	waitForFleetSize(t, o, ctx, 1)

	e := model.NewEmergency(model.EmergencyMedical, 3,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	_, err := o.ProcessEmergency(ctx, e)
	require.NoError(t, err)
	require.Equal(t, model.EmergencyDispatched, e.Status, "caller sees the dispatch outcome")

	_, err = o.ResolveEmergency(ctx, e.EmergencyID)
	require.NoError(t, err)

	// The loop owns its own copy: resolving must not reach back into the
	// struct the caller handed in.
	assert.Equal(t, model.EmergencyDispatched, e.Status)
	assert.Nil(t, e.ResolvedAt)

	stored, err := o.Emergency(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyResolved, stored.Status)
}

func TestInvalidUnitsOverBusAreDropped(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	waitForFleetSize(t, o, ctx, 1)
	parseErrorsBefore := testutil.ToFloat64(o.metrics.parseErrors)

	// Negative counts total to a non-zero value, so the defaults fallback
	// does not rewrite them; the message must be rejected outright.
	payload, err := json.Marshal(map[string]interface{}{
		"emergency_type": "crime",
		"severity":       3,
		"location": map[string]interface{}{
			"latitude":  37.7749,
			"longitude": -122.4194,
			"timestamp": time.Now().UTC(),
		},
		"units_required": map[string]int{"ambulances": -1, "police": 2},
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.TopicEmergenciesNew, payload))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(o.metrics.parseErrors) == parseErrorsBefore+1
	}, 2*time.Second, 5*time.Millisecond)

	emergencies, err := o.Emergencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, emergencies, "invalid emergency never enters the registry")

	// The loop is still alive and dispatching
	publishTelemetry(t, b, ctx, "AMB-002", 37.776, -122.420)
	waitForFleetSize(t, o, ctx, 2)
}

func TestConcurrentEmergenciesNeverShareUnits(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	publishTelemetry(t, b, ctx, "AMB-002", 37.776, -122.420)
	waitForFleetSize(t, o, ctx, 2)

	loc := model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()}
	first := model.NewEmergency(model.EmergencyMedical, 3, loc, model.UnitsRequired{})
	second := model.NewEmergency(model.EmergencyMedical, 3, loc, model.UnitsRequired{})

	type result struct {
		dispatch *model.Dispatch
		err      error
	}
	results := make(chan result, 2)
	for _, e := range []*model.Emergency{first, second} {
		go func(e *model.Emergency) {
			d, err := o.ProcessEmergency(ctx, e)
			results <- result{d, err}
		}(e)
	}

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Len(t, r.dispatch.Units, 1)
		seen[r.dispatch.Units[0].VehicleID]++
	}
	for vehicleID, count := range seen {
		assert.Equal(t, 1, count, "vehicle %s double-booked", vehicleID)
	}
}

func TestEmergencyInjectedOverBus(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "POL-001", 37.775, -122.419)
	publishTelemetry(t, b, ctx, "POL-002", 37.776, -122.420)
	waitForFleetSize(t, o, ctx, 2)

	payload, err := json.Marshal(map[string]interface{}{
		"emergency_type": "crime",
		"severity":       4,
		"location": map[string]interface{}{
			"latitude":  37.7749,
			"longitude": -122.4194,
			"timestamp": time.Now().UTC(),
		},
		"reported_by": "911",
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.TopicEmergenciesNew, payload))

	require.Eventually(t, func() bool {
		emergencies, err := o.Emergencies(ctx)
		return err == nil && len(emergencies) == 1 &&
			emergencies[0].Status == model.EmergencyDispatched
	}, 2*time.Second, 5*time.Millisecond)

	emergencies, err := o.Emergencies(ctx)
	require.NoError(t, err)
	e := emergencies[0]
	assert.NotEmpty(t, e.EmergencyID, "orchestrator assigns an ID")
	assert.Equal(t, model.UnitsRequired{Police: 2}, e.UnitsRequired, "crime defaults applied")

	dispatch, err := o.Dispatch(ctx, e.EmergencyID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"POL-001", "POL-002"}, dispatch.VehicleIDs())
}

func TestSummaryAggregates(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	publishTelemetry(t, b, ctx, "FIRE-001", 37.776, -122.420)
	waitForFleetSize(t, o, ctx, 2)

	publishAlert(t, b, ctx, "FIRE-001", model.SeverityWarning)
	require.Eventually(t, func() bool {
		s, err := o.Summary(ctx)
		return err == nil && s.ActiveAlerts == 1
	}, 2*time.Second, 5*time.Millisecond)

	summary, err := o.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FleetSize)
	assert.Equal(t, 2, summary.StatusCounts[model.StatusIdle])
	assert.Equal(t, 1, summary.AvailableUnits[model.VehicleTypeAmbulance])
	assert.Zero(t, summary.AvailableUnits[model.VehicleTypeFireTruck], "alerted unit is unavailable")
	assert.Zero(t, summary.OpenEmergencies)
}

func TestEventsEmittedOnDispatchAndResolve(t *testing.T) {
	o, b, ctx := startOrchestrator(t)

	publishTelemetry(t, b, ctx, "AMB-001", 37.775, -122.419)
	waitForFleetSize(t, o, ctx, 1)

	e := model.NewEmergency(model.EmergencyMedical, 3,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		model.UnitsRequired{})
	_, err := o.ProcessEmergency(ctx, e)
	require.NoError(t, err)
	_, err = o.ResolveEmergency(ctx, e.EmergencyID)
	require.NoError(t, err)

	var names []string
	for len(names) < 2 {
		select {
		case ev := <-o.Events():
			names = append(names, ev.Name)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 events, got %v", names)
		}
	}
	assert.Equal(t, []string{"emergency.dispatched", "emergency.resolved"}, names)
}
