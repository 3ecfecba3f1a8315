package model

import "strings"

// VehicleType represents the kind of emergency vehicle
type VehicleType string

const (
	VehicleTypeAmbulance VehicleType = "ambulance"
	VehicleTypeFireTruck VehicleType = "fire_truck"
	VehicleTypePolice    VehicleType = "police"
)

// VehicleTypeFromID infers the vehicle type from the vehicle ID prefix.
// Returns false when the prefix is unknown; callers fall back to ambulance
// and log a warning.
func VehicleTypeFromID(vehicleID string) (VehicleType, bool) {
	upper := strings.ToUpper(vehicleID)
	switch {
	case strings.HasPrefix(upper, "AMB"):
		return VehicleTypeAmbulance, true
	case strings.HasPrefix(upper, "FIRE"):
		return VehicleTypeFireTruck, true
	case strings.HasPrefix(upper, "POL"):
		return VehicleTypePolice, true
	default:
		return VehicleTypeAmbulance, false
	}
}

// OperationalStatus represents the current operational status of a vehicle
type OperationalStatus string

const (
	StatusIdle         OperationalStatus = "idle"
	StatusEnRoute      OperationalStatus = "en_route"
	StatusOnScene      OperationalStatus = "on_scene"
	StatusReturning    OperationalStatus = "returning"
	StatusMaintenance  OperationalStatus = "maintenance"
	StatusOutOfService OperationalStatus = "out_of_service"
	StatusOffline      OperationalStatus = "offline"
)

// AlertSeverity represents the severity level of a predictive alert
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// FailureCategory represents the vehicle subsystem a failure belongs to
type FailureCategory string

const (
	CategoryEngine     FailureCategory = "engine"
	CategoryElectrical FailureCategory = "electrical"
	CategoryBrakes     FailureCategory = "brakes"
	CategoryCooling    FailureCategory = "cooling"
	CategoryFuel       FailureCategory = "fuel"
	CategoryTires      FailureCategory = "tires"
)

// FailureScenario represents a predefined failure mode for simulation
type FailureScenario string

const (
	ScenarioEngineOverheat     FailureScenario = "engine_overheat"
	ScenarioAlternatorFailure  FailureScenario = "alternator_failure"
	ScenarioBrakePadWear       FailureScenario = "brake_pad_wear"
	ScenarioTirePressureLow    FailureScenario = "tire_pressure_low"
	ScenarioBatteryDegradation FailureScenario = "battery_degradation"
	ScenarioFuelLeak           FailureScenario = "fuel_leak"
)

// FailureScenarios lists every scenario the injector knows how to simulate
var FailureScenarios = []FailureScenario{
	ScenarioEngineOverheat,
	ScenarioAlternatorFailure,
	ScenarioBrakePadWear,
	ScenarioTirePressureLow,
	ScenarioBatteryDegradation,
	ScenarioFuelLeak,
}

// ParseFailureScenario converts a string to a known failure scenario
func ParseFailureScenario(s string) (FailureScenario, bool) {
	for _, sc := range FailureScenarios {
		if string(sc) == s {
			return sc, true
		}
	}
	return "", false
}

// CommandType represents a command sent from the orchestrator to a vehicle
type CommandType string

const (
	CommandStandby      CommandType = "standby"
	CommandDispatch     CommandType = "dispatch"
	CommandReturnToBase CommandType = "return_to_base"
)
