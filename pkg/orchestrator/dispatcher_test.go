package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
)

func snapshotAt(vehicleID string, lat, lon float64) *model.VehicleStatusSnapshot {
	vt, _ := model.VehicleTypeFromID(vehicleID)
	return &model.VehicleStatusSnapshot{
		VehicleID:         vehicleID,
		VehicleType:       vt,
		OperationalStatus: model.StatusIdle,
		Location: &model.GeoLocation{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: time.Now(),
		},
	}
}

func testEmergency(units model.UnitsRequired) *model.Emergency {
	return model.NewEmergency(model.EmergencyMedical, 3,
		model.GeoLocation{Latitude: 37.7749, Longitude: -122.4194, Timestamp: time.Now()},
		units)
}

func TestSelectUnitsPicksNearest(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001": snapshotAt("AMB-001", 37.80, -122.42), // ~2.8 km away
		"AMB-002": snapshotAt("AMB-002", 37.775, -122.419), // ~50 m away
		"AMB-003": snapshotAt("AMB-003", 38.00, -122.42), // ~25 km away
	}
	d := NewDispatcher(fleet, logging.Nop())

	dispatch := d.SelectUnits(testEmergency(model.UnitsRequired{Ambulances: 1}))
	require.Len(t, dispatch.Units, 1)
	assert.Equal(t, "AMB-002", dispatch.Units[0].VehicleID)
	assert.Equal(t, model.StatusEnRoute, fleet["AMB-002"].OperationalStatus)
	assert.Equal(t, model.StatusIdle, fleet["AMB-001"].OperationalStatus)
}

func TestSelectUnitsTieBreaksOnVehicleID(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-002": snapshotAt("AMB-002", 37.7749, -122.4194),
		"AMB-001": snapshotAt("AMB-001", 37.7749, -122.4194),
	}
	d := NewDispatcher(fleet, logging.Nop())

	dispatch := d.SelectUnits(testEmergency(model.UnitsRequired{Ambulances: 1}))
	require.Len(t, dispatch.Units, 1)
	assert.Equal(t, "AMB-001", dispatch.Units[0].VehicleID)
}

func TestSelectUnitsMixedTypes(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001":  snapshotAt("AMB-001", 37.775, -122.419),
		"FIRE-001": snapshotAt("FIRE-001", 37.776, -122.420),
		"FIRE-002": snapshotAt("FIRE-002", 37.777, -122.421),
		"POL-001":  snapshotAt("POL-001", 37.778, -122.422),
	}
	d := NewDispatcher(fleet, logging.Nop())

	e := testEmergency(model.UnitsRequired{Ambulances: 1, FireTrucks: 2, Police: 1})
	dispatch := d.SelectUnits(e)
	assert.ElementsMatch(t,
		[]string{"AMB-001", "FIRE-001", "FIRE-002", "POL-001"},
		dispatch.VehicleIDs())

	for _, snap := range fleet {
		assert.Equal(t, model.StatusEnRoute, snap.OperationalStatus)
		assert.Equal(t, e.EmergencyID, snap.CurrentEmergencyID)
	}
}

func TestSelectUnitsPartialWhenShort(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001": snapshotAt("AMB-001", 37.775, -122.419),
	}
	d := NewDispatcher(fleet, logging.Nop())

	dispatch := d.SelectUnits(testEmergency(model.UnitsRequired{Ambulances: 3}))
	assert.Len(t, dispatch.Units, 1, "dispatch goes out partial, not empty")
}

func TestSelectUnitsSkipsUnavailable(t *testing.T) {
	busy := snapshotAt("AMB-001", 37.775, -122.419)
	busy.OperationalStatus = model.StatusEnRoute

	alerted := snapshotAt("AMB-002", 37.775, -122.419)
	alerted.HasActiveAlert = true

	noLocation := snapshotAt("AMB-003", 37.775, -122.419)
	noLocation.Location = nil

	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001": busy,
		"AMB-002": alerted,
		"AMB-003": noLocation,
		"AMB-004": snapshotAt("AMB-004", 38.00, -122.42),
	}
	d := NewDispatcher(fleet, logging.Nop())

	dispatch := d.SelectUnits(testEmergency(model.UnitsRequired{Ambulances: 2}))
	require.Len(t, dispatch.Units, 1)
	assert.Equal(t, "AMB-004", dispatch.Units[0].VehicleID,
		"a distant available unit beats nearer unavailable ones")
}

func TestSelectUnitsIgnoresNonPositiveRequirements(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001": snapshotAt("AMB-001", 37.775, -122.419),
	}
	d := NewDispatcher(fleet, logging.Nop())

	e := testEmergency(model.UnitsRequired{Ambulances: -1, Police: 2})
	dispatch := d.SelectUnits(e)
	assert.Empty(t, dispatch.Units)
	assert.Equal(t, model.StatusIdle, fleet["AMB-001"].OperationalStatus)
}

func TestReleaseUnits(t *testing.T) {
	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001": snapshotAt("AMB-001", 37.775, -122.419),
		"AMB-002": snapshotAt("AMB-002", 37.776, -122.420),
	}
	d := NewDispatcher(fleet, logging.Nop())

	e := testEmergency(model.UnitsRequired{Ambulances: 2})
	d.SelectUnits(e)

	released := d.ReleaseUnits(e.EmergencyID)
	assert.Equal(t, []string{"AMB-001", "AMB-002"}, released, "sorted by ID")
	for _, snap := range fleet {
		assert.Equal(t, model.StatusIdle, snap.OperationalStatus)
		assert.Empty(t, snap.CurrentEmergencyID)
	}

	assert.Empty(t, d.ReleaseUnits("em-unknown"))
}

func TestAvailableCount(t *testing.T) {
	busy := snapshotAt("FIRE-002", 37.775, -122.419)
	busy.OperationalStatus = model.StatusMaintenance

	fleet := map[string]*model.VehicleStatusSnapshot{
		"AMB-001":  snapshotAt("AMB-001", 37.775, -122.419),
		"AMB-002":  snapshotAt("AMB-002", 37.776, -122.420),
		"FIRE-001": snapshotAt("FIRE-001", 37.777, -122.421),
		"FIRE-002": busy,
	}
	d := NewDispatcher(fleet, logging.Nop())

	counts := d.AvailableCount()
	assert.Equal(t, 2, counts[model.VehicleTypeAmbulance])
	assert.Equal(t, 1, counts[model.VehicleTypeFireTruck])
	assert.Zero(t, counts[model.VehicleTypePolice])
}
