package bus

import "strings"

// Namespace is the topic prefix shared by all fleet channels
const Namespace = "aegis"

// TopicEmergenciesNew carries newly reported emergencies
const TopicEmergenciesNew = Namespace + ":emergencies:new"

// Patterns the orchestrator subscribes to
const (
	PatternTelemetry        = Namespace + ":*:telemetry:*"
	PatternHeartbeat        = Namespace + ":*:heartbeat:*"
	PatternAlerts           = Namespace + ":*:alerts:*"
	PatternDispatchResolved = Namespace + ":dispatch:*:resolved"
)

// TelemetryTopic returns the telemetry channel for a vehicle
func TelemetryTopic(fleetID, vehicleID string) string {
	return Namespace + ":" + fleetID + ":telemetry:" + vehicleID
}

// AlertsTopic returns the alert channel for a vehicle
func AlertsTopic(fleetID, vehicleID string) string {
	return Namespace + ":" + fleetID + ":alerts:" + vehicleID
}

// HeartbeatTopic returns the heartbeat channel for a vehicle
func HeartbeatTopic(fleetID, vehicleID string) string {
	return Namespace + ":" + fleetID + ":heartbeat:" + vehicleID
}

// CommandsTopic returns the orchestrator-to-vehicle command channel
func CommandsTopic(fleetID, vehicleID string) string {
	return Namespace + ":" + fleetID + ":commands:" + vehicleID
}

// DispatchAssignedTopic returns the broadcast channel announcing unit
// assignment for an emergency
func DispatchAssignedTopic(emergencyID string) string {
	return Namespace + ":dispatch:" + emergencyID + ":assigned"
}

// DispatchResolvedTopic returns the broadcast channel announcing resolution
// of an emergency
func DispatchResolvedTopic(emergencyID string) string {
	return Namespace + ":dispatch:" + emergencyID + ":resolved"
}

// MatchPattern reports whether a topic matches a subscription pattern.
// Patterns are colon-separated, and * matches exactly one segment.
func MatchPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, ":")
	tp := strings.Split(topic, ":")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}
