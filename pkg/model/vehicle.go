package model

import "time"

// VehicleStatusSnapshot is the orchestrator's in-memory view of one vehicle.
// It is updated on every telemetry, heartbeat, and alert message and consulted
// by the dispatch engine when selecting units.
type VehicleStatusSnapshot struct {
	VehicleID          string            `json:"vehicle_id"`
	VehicleType        VehicleType       `json:"vehicle_type"`
	OperationalStatus  OperationalStatus `json:"operational_status"`
	Location           *GeoLocation      `json:"location,omitempty"`
	CurrentEmergencyID string            `json:"current_emergency_id,omitempty"`
	LastSeenAt         time.Time         `json:"last_seen_at"`
	BatteryVoltage     float64           `json:"battery_voltage,omitempty"`
	FuelLevelPercent   float64           `json:"fuel_level_percent,omitempty"`
	HasActiveAlert     bool              `json:"has_active_alert"`
}

// IsAvailable reports whether the vehicle can be dispatched. A vehicle is
// available when it is idle, carries no active alert, and has reported a
// position at least once.
func (v *VehicleStatusSnapshot) IsAvailable() bool {
	return v.OperationalStatus == StatusIdle && !v.HasActiveAlert && v.Location != nil
}
