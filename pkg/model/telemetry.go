package model

import (
	"fmt"
	"time"
)

// Wheel position keys used in per-wheel telemetry maps
const (
	WheelFrontLeft  = "front_left"
	WheelFrontRight = "front_right"
	WheelRearLeft   = "rear_left"
	WheelRearRight  = "rear_right"
)

// Wheels lists all wheel position keys in stable order
var Wheels = []string{WheelFrontLeft, WheelFrontRight, WheelRearLeft, WheelRearRight}

// VehicleTelemetry represents one full sensor reading from a vehicle.
// Sequence numbers are monotonic per vehicle and used for ordering and
// deduplication downstream.
type VehicleTelemetry struct {
	VehicleID      string      `json:"vehicle_id"`
	Timestamp      time.Time   `json:"timestamp"`
	SequenceNumber uint64      `json:"sequence_number"`
	Location       GeoLocation `json:"location"`
	OdometerKm     float64     `json:"odometer_km"`

	// Engine
	EngineTempCelsius       float64 `json:"engine_temp_celsius"`
	EngineRPM               int     `json:"engine_rpm"`
	CoolantTempCelsius      float64 `json:"coolant_temp_celsius"`
	OilPressurePSI          float64 `json:"oil_pressure_psi"`
	TransmissionTempCelsius float64 `json:"transmission_temp_celsius"`
	ThrottlePercent         float64 `json:"throttle_position_percent"`

	// Electrical
	BatteryVoltage     float64 `json:"battery_voltage"`
	BatteryCurrentAmps float64 `json:"battery_current_amps"`
	AlternatorVoltage  float64 `json:"alternator_voltage"`
	BatterySOCPercent  float64 `json:"battery_state_of_charge_percent"`
	BatteryHealth      float64 `json:"battery_health_percent"`

	// Fuel
	FuelLevelPercent float64 `json:"fuel_level_percent"`
	FuelLevelLiters  float64 `json:"fuel_level_liters"`

	// Brakes
	BrakePadThicknessMm  map[string]float64 `json:"brake_pad_thickness_mm"`
	BrakeFluidPercent    float64            `json:"brake_fluid_level_percent"`
	BrakeTempCelsius     map[string]float64 `json:"brake_temp_celsius"`

	// Tires and chassis
	TirePressurePSI  map[string]float64 `json:"tire_pressure_psi"`
	TireTempCelsius  map[string]float64 `json:"tire_temp_celsius"`
	VibrationGForce  map[string]float64 `json:"vibration_g_force"`

	// Emergency equipment
	SirenActive  bool `json:"siren_active"`
	LightsActive bool `json:"lights_active"`
}

// Validate checks telemetry values against physical sensor ranges
func (t *VehicleTelemetry) Validate() error {
	if t.VehicleID == "" {
		return fmt.Errorf("vehicle_id is required")
	}
	if err := t.Location.Validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if t.EngineTempCelsius < -40 || t.EngineTempCelsius > 150 {
		return fmt.Errorf("engine_temp_celsius %.1f out of range [-40, 150]", t.EngineTempCelsius)
	}
	if t.EngineRPM < 0 || t.EngineRPM > 8000 {
		return fmt.Errorf("engine_rpm %d out of range [0, 8000]", t.EngineRPM)
	}
	if t.BatteryVoltage < 0 || t.BatteryVoltage > 30 {
		return fmt.Errorf("battery_voltage %.1f out of range [0, 30]", t.BatteryVoltage)
	}
	for _, pct := range []struct {
		name  string
		value float64
	}{
		{"battery_state_of_charge_percent", t.BatterySOCPercent},
		{"battery_health_percent", t.BatteryHealth},
		{"fuel_level_percent", t.FuelLevelPercent},
		{"brake_fluid_level_percent", t.BrakeFluidPercent},
		{"throttle_position_percent", t.ThrottlePercent},
	} {
		if pct.value < 0 || pct.value > 100 {
			return fmt.Errorf("%s %.1f out of range [0, 100]", pct.name, pct.value)
		}
	}
	for wheel, mm := range t.BrakePadThicknessMm {
		if mm < 0 {
			return fmt.Errorf("brake_pad_thickness_mm[%s] %.2f must be non-negative", wheel, mm)
		}
	}
	for wheel, psi := range t.TirePressurePSI {
		if psi < 0 {
			return fmt.Errorf("tire_pressure_psi[%s] %.1f must be non-negative", wheel, psi)
		}
	}
	return nil
}
