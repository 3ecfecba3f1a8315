package model

import (
	"time"

	"github.com/google/uuid"
)

// DispatchedUnit represents a single vehicle assigned to an emergency
type DispatchedUnit struct {
	VehicleID      string      `json:"vehicle_id"`
	VehicleType    VehicleType `json:"vehicle_type"`
	AssignedAt     time.Time   `json:"assigned_at"`
	Acknowledged   bool        `json:"acknowledged"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
}

// Dispatch records which units were assigned to handle an emergency
type Dispatch struct {
	DispatchID        string           `json:"dispatch_id"`
	EmergencyID       string           `json:"emergency_id"`
	Units             []DispatchedUnit `json:"units"`
	DispatchedAt      time.Time        `json:"dispatched_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	SelectionCriteria string           `json:"selection_criteria"`
	Notes             []string         `json:"notes,omitempty"`
}

// NewDispatch creates an empty dispatch record for an emergency
func NewDispatch(emergencyID string) *Dispatch {
	return &Dispatch{
		DispatchID:        uuid.NewString(),
		EmergencyID:       emergencyID,
		DispatchedAt:      time.Now().UTC(),
		SelectionCriteria: "nearest_available",
	}
}

// VehicleIDs returns the IDs of all units in this dispatch
func (d *Dispatch) VehicleIDs() []string {
	ids := make([]string, len(d.Units))
	for i, u := range d.Units {
		ids[i] = u.VehicleID
	}
	return ids
}

// Clone returns a deep copy of the dispatch record
func (d *Dispatch) Clone() *Dispatch {
	clone := *d
	clone.Units = append([]DispatchedUnit(nil), d.Units...)
	clone.Notes = append([]string(nil), d.Notes...)
	return &clone
}

// AllAcknowledged reports whether every unit has acknowledged its
// assignment. True for a dispatch with no units.
func (d *Dispatch) AllAcknowledged() bool {
	for _, u := range d.Units {
		if !u.Acknowledged {
			return false
		}
	}
	return true
}
