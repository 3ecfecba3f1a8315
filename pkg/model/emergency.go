package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmergencyType represents the category of an emergency incident
type EmergencyType string

const (
	EmergencyMedical         EmergencyType = "medical"
	EmergencyFire            EmergencyType = "fire"
	EmergencyCrime           EmergencyType = "crime"
	EmergencyAccident        EmergencyType = "accident"
	EmergencyHazmat          EmergencyType = "hazmat"
	EmergencyRescue          EmergencyType = "rescue"
	EmergencyNaturalDisaster EmergencyType = "natural_disaster"
)

// EmergencyTypes lists all known emergency types
var EmergencyTypes = []EmergencyType{
	EmergencyMedical,
	EmergencyFire,
	EmergencyCrime,
	EmergencyAccident,
	EmergencyHazmat,
	EmergencyRescue,
	EmergencyNaturalDisaster,
}

// ParseEmergencyType converts a string to a known emergency type
func ParseEmergencyType(s string) (EmergencyType, bool) {
	for _, t := range EmergencyTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// EmergencyStatus represents the lifecycle status of an emergency event
type EmergencyStatus string

const (
	EmergencyPending     EmergencyStatus = "pending"
	EmergencyDispatching EmergencyStatus = "dispatching"
	EmergencyDispatched  EmergencyStatus = "dispatched"
	EmergencyInProgress  EmergencyStatus = "in_progress"
	EmergencyResolved    EmergencyStatus = "resolved"
	EmergencyCancelled   EmergencyStatus = "cancelled"
)

// UnitsRequired specifies how many of each vehicle type an emergency needs
type UnitsRequired struct {
	Ambulances int `json:"ambulances"`
	FireTrucks int `json:"fire_trucks"`
	Police     int `json:"police"`
}

// Total returns the total number of units required
func (u UnitsRequired) Total() int {
	return u.Ambulances + u.FireTrucks + u.Police
}

// OfType returns the number of units required for a vehicle type
func (u UnitsRequired) OfType(vt VehicleType) int {
	switch vt {
	case VehicleTypeAmbulance:
		return u.Ambulances
	case VehicleTypeFireTruck:
		return u.FireTrucks
	case VehicleTypePolice:
		return u.Police
	default:
		return 0
	}
}

// DefaultUnitsRequired returns the standard unit mix for an emergency type
func DefaultUnitsRequired(t EmergencyType) UnitsRequired {
	switch t {
	case EmergencyMedical:
		return UnitsRequired{Ambulances: 1}
	case EmergencyFire:
		return UnitsRequired{Ambulances: 1, FireTrucks: 2}
	case EmergencyCrime:
		return UnitsRequired{Police: 2}
	case EmergencyAccident:
		return UnitsRequired{Ambulances: 2, Police: 1}
	case EmergencyHazmat:
		return UnitsRequired{Ambulances: 1, FireTrucks: 2, Police: 1}
	case EmergencyRescue:
		return UnitsRequired{Ambulances: 1, FireTrucks: 1}
	case EmergencyNaturalDisaster:
		return UnitsRequired{Ambulances: 2, FireTrucks: 2, Police: 2}
	default:
		return UnitsRequired{Ambulances: 1}
	}
}

// Emergency represents an incident requiring dispatch of one or more units
type Emergency struct {
	EmergencyID   string          `json:"emergency_id"`
	EmergencyType EmergencyType   `json:"emergency_type"`
	Status        EmergencyStatus `json:"status"`
	Severity      int             `json:"severity"`
	Location      GeoLocation     `json:"location"`
	Address       string          `json:"address,omitempty"`
	Description   string          `json:"description,omitempty"`
	UnitsRequired UnitsRequired   `json:"units_required"`
	ReportedBy    string          `json:"reported_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	Notes         []string        `json:"notes,omitempty"`
}

// NewEmergency creates a pending emergency with a generated ID. A zero
// units_required falls back to the defaults for the emergency type.
func NewEmergency(t EmergencyType, severity int, loc GeoLocation, units UnitsRequired) *Emergency {
	if units.Total() == 0 {
		units = DefaultUnitsRequired(t)
	}
	return &Emergency{
		EmergencyID:   uuid.NewString(),
		EmergencyType: t,
		Status:        EmergencyPending,
		Severity:      severity,
		Location:      loc,
		UnitsRequired: units,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the emergency for structural validity
func (e *Emergency) Validate() error {
	if e.EmergencyID == "" {
		return fmt.Errorf("emergency_id is required")
	}
	if _, ok := ParseEmergencyType(string(e.EmergencyType)); !ok {
		return fmt.Errorf("unknown emergency_type %q", e.EmergencyType)
	}
	if e.Severity < 1 || e.Severity > 5 {
		return fmt.Errorf("severity %d out of range [1, 5]", e.Severity)
	}
	if u := e.UnitsRequired; u.Ambulances < 0 || u.FireTrucks < 0 || u.Police < 0 {
		return fmt.Errorf("units_required counts must be non-negative")
	}
	if e.UnitsRequired.Total() < 1 {
		return fmt.Errorf("units_required must request at least one unit")
	}
	if err := e.Location.Validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	return nil
}
