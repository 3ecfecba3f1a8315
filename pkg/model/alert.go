package model

import (
	"time"

	"github.com/google/uuid"
)

// PredictiveAlert represents a predicted component failure derived from
// telemetry. Critical alerts mark the vehicle unsafe to operate.
type PredictiveAlert struct {
	AlertID                    string             `json:"alert_id"`
	VehicleID                  string             `json:"vehicle_id"`
	Timestamp                  time.Time          `json:"timestamp"`
	Severity                   AlertSeverity      `json:"severity"`
	Category                   FailureCategory    `json:"category"`
	Component                  string             `json:"component"`
	FailureProbability         float64            `json:"failure_probability"`
	Confidence                 float64            `json:"confidence"`
	PredictedFailureMinHours   float64            `json:"predicted_failure_min_hours"`
	PredictedFailureMaxHours   float64            `json:"predicted_failure_max_hours"`
	PredictedFailureLikelyHrs  float64            `json:"predicted_failure_likely_hours"`
	CanCompleteCurrentMission  bool               `json:"can_complete_current_mission"`
	SafeToOperate              bool               `json:"safe_to_operate"`
	RecommendedAction          string             `json:"recommended_action"`
	ContributingFactors        []string           `json:"contributing_factors"`
	RelatedTelemetry           map[string]float64 `json:"related_telemetry"`
}

// NewAlertID generates a unique alert identifier
func NewAlertID() string {
	return uuid.NewString()
}
