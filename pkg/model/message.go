package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the payload kind inside a Message envelope
type MessageType string

const (
	MessageTelemetryUpdate MessageType = "telemetry.update"
	MessageHeartbeat       MessageType = "vehicle.heartbeat"
	MessageAlertGenerated  MessageType = "alert.generated"
)

// Message is the envelope wrapping every vehicle-to-orchestrator payload
type Message struct {
	MessageID   string          `json:"message_id"`
	MessageType MessageType     `json:"message_type"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Payload     json.RawMessage `json:"payload"`
}

// NewMessage wraps a payload in an envelope. The payload must already be
// JSON-encoded.
func NewMessage(t MessageType, source string, payload []byte) *Message {
	return &Message{
		MessageID:   uuid.NewString(),
		MessageType: t,
		Timestamp:   time.Now().UTC(),
		Source:      source,
		Payload:     payload,
	}
}

// HeartbeatPayload is the liveness payload published on every tenth tick
type HeartbeatPayload struct {
	VehicleID             string `json:"vehicle_id"`
	UptimeSeconds         int64  `json:"uptime_seconds"`
	LastTelemetrySequence uint64 `json:"last_telemetry_sequence"`
	AgentVersion          string `json:"agent_version"`
}

// DispatchCommand is sent on a vehicle's command channel when it is
// assigned to an emergency
type DispatchCommand struct {
	Command       CommandType  `json:"command"`
	EmergencyID   string       `json:"emergency_id"`
	EmergencyType string       `json:"emergency_type"`
	Location      *GeoLocation `json:"location,omitempty"`
	DispatchID    string       `json:"dispatch_id"`
}

// AssignedBroadcast announces that units have been assigned to an emergency
type AssignedBroadcast struct {
	EmergencyID      string   `json:"emergency_id"`
	DispatchID       string   `json:"dispatch_id"`
	AssignedVehicles []string `json:"assigned_vehicles"`
}

// ResolvedBroadcast announces that an emergency has been resolved and its
// units released
type ResolvedBroadcast struct {
	EmergencyID      string   `json:"emergency_id"`
	ReleasedVehicles []string `json:"released_vehicles"`
}
