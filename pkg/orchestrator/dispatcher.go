package orchestrator

import (
	"sort"
	"time"

	"github.com/jihwankim/aegis/pkg/geo"
	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
)

// Dispatcher selects the best available vehicles for an emergency and
// releases them on resolution. It operates directly on the orchestrator's
// fleet map and is only ever called from the orchestrator's event loop, so
// it needs no locking of its own.
//
// Selection strategy: filter to available vehicles of the required type,
// sort by Haversine distance from the emergency (vehicle ID breaks ties),
// take the closest N. When fewer units are available than required, the
// dispatch goes out partial and the shortfall is logged.
type Dispatcher struct {
	fleet  map[string]*model.VehicleStatusSnapshot
	logger *logging.Logger
}

// NewDispatcher creates a dispatcher over the shared fleet state
func NewDispatcher(fleet map[string]*model.VehicleStatusSnapshot, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{fleet: fleet, logger: logger}
}

// SelectUnits builds a dispatch for the emergency and reserves the selected
// vehicles by moving them to en_route
func (d *Dispatcher) SelectUnits(emergency *model.Emergency) *model.Dispatch {
	dispatch := model.NewDispatch(emergency.EmergencyID)

	requirements := []struct {
		vehicleType model.VehicleType
		count       int
	}{
		{model.VehicleTypeAmbulance, emergency.UnitsRequired.Ambulances},
		{model.VehicleTypeFireTruck, emergency.UnitsRequired.FireTrucks},
		{model.VehicleTypePolice, emergency.UnitsRequired.Police},
	}

	for _, req := range requirements {
		if req.count <= 0 {
			continue
		}

		candidates := d.availableCandidates(req.vehicleType, emergency.Location)
		if len(candidates) < req.count {
			d.logger.Warn("insufficient_units",
				"emergency_id", emergency.EmergencyID,
				"vehicle_type", string(req.vehicleType),
				"required", req.count,
				"available", len(candidates))
		}

		chosen := candidates
		if len(chosen) > req.count {
			chosen = chosen[:req.count]
		}
		for _, snap := range chosen {
			dispatch.Units = append(dispatch.Units, model.DispatchedUnit{
				VehicleID:   snap.VehicleID,
				VehicleType: snap.VehicleType,
				AssignedAt:  time.Now().UTC(),
			})
			snap.OperationalStatus = model.StatusEnRoute
			snap.CurrentEmergencyID = emergency.EmergencyID

			d.logger.Info("unit_assigned",
				"vehicle_id", snap.VehicleID,
				"emergency_id", emergency.EmergencyID,
				"vehicle_type", string(req.vehicleType))
		}
	}

	d.logger.Info("dispatch_created",
		"dispatch_id", dispatch.DispatchID,
		"emergency_id", emergency.EmergencyID,
		"units_count", len(dispatch.Units),
		"vehicle_ids", dispatch.VehicleIDs())

	return dispatch
}

// availableCandidates returns available vehicles of a type sorted
// nearest-first, with the vehicle ID as a deterministic tie-break
func (d *Dispatcher) availableCandidates(vt model.VehicleType, loc model.GeoLocation) []*model.VehicleStatusSnapshot {
	var candidates []*model.VehicleStatusSnapshot
	for _, snap := range d.fleet {
		if snap.VehicleType == vt && snap.IsAvailable() {
			candidates = append(candidates, snap)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := geo.HaversineKm(*candidates[i].Location, loc)
		dj := geo.HaversineKm(*candidates[j].Location, loc)
		if di != dj {
			return di < dj
		}
		return candidates[i].VehicleID < candidates[j].VehicleID
	})

	return candidates
}

// ReleaseUnits returns every vehicle assigned to the emergency to idle and
// reports which vehicles were released, sorted by ID
func (d *Dispatcher) ReleaseUnits(emergencyID string) []string {
	var released []string
	for _, snap := range d.fleet {
		if snap.CurrentEmergencyID == emergencyID {
			snap.OperationalStatus = model.StatusIdle
			snap.CurrentEmergencyID = ""
			released = append(released, snap.VehicleID)

			d.logger.Info("unit_released",
				"vehicle_id", snap.VehicleID,
				"emergency_id", emergencyID)
		}
	}
	sort.Strings(released)
	return released
}

// AvailableCount returns the number of available vehicles per type
func (d *Dispatcher) AvailableCount() map[model.VehicleType]int {
	counts := make(map[model.VehicleType]int)
	for _, snap := range d.fleet {
		if snap.IsAvailable() {
			counts[snap.VehicleType]++
		}
	}
	return counts
}
