package agent

import (
	"math/rand"
	"time"

	"github.com/jihwankim/aegis/pkg/model"
)

// Baseline sensor values for an idle vehicle parked at station
const (
	baselineEngineTemp   = 90.0
	baselineEngineRPM    = 800.0
	baselineCoolantTemp  = 85.0
	baselineOilPressure  = 45.0
	baselineTransTemp    = 75.0
	baselineBatteryVolts = 13.8
	baselineBatteryAmps  = -2.0
	baselineAlternator   = 14.2
	baselineBatterySOC   = 95.0
	baselineBattHealth   = 92.0
	baselineFuelPercent  = 75.0
	baselineFuelLiters   = 30.0
	baselineBrakeFluid   = 100.0
	baselineTirePSI      = 80.0
	baselineFrontPadMm   = 8.0
	baselineRearPadMm    = 9.0
	baselineOdometerKm   = 45678.9
)

// Generator produces synthetic telemetry readings: constant baselines with
// Gaussian noise, which is realistic enough for an idle vehicle. Sequence
// numbers are monotonic for the lifetime of the generator.
type Generator struct {
	vehicleID string
	latitude  float64
	longitude float64
	seq       uint64
	rng       *rand.Rand
	now       func() time.Time
}

// NewGenerator creates a telemetry generator for a parked vehicle. The seed
// makes output deterministic in tests.
func NewGenerator(vehicleID string, latitude, longitude float64, seed int64) *Generator {
	return &Generator{
		vehicleID: vehicleID,
		latitude:  latitude,
		longitude: longitude,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}
}

// Generate produces the next telemetry reading
func (g *Generator) Generate() model.VehicleTelemetry {
	g.seq++
	ts := g.now().UTC()

	return model.VehicleTelemetry{
		VehicleID:      g.vehicleID,
		Timestamp:      ts,
		SequenceNumber: g.seq,
		Location: model.GeoLocation{
			Latitude:  g.latitude,
			Longitude: g.longitude,
			Accuracy:  5.0,
			Timestamp: ts,
		},
		OdometerKm: baselineOdometerKm,

		EngineTempCelsius:       g.noise(baselineEngineTemp, 0.02),
		EngineRPM:               int(g.noise(baselineEngineRPM, 0.06)),
		CoolantTempCelsius:      g.noise(baselineCoolantTemp, 0.02),
		OilPressurePSI:          g.noise(baselineOilPressure, 0.03),
		TransmissionTempCelsius: g.noise(baselineTransTemp, 0.03),
		ThrottlePercent:         0.0,

		BatteryVoltage:     g.noise(baselineBatteryVolts, 0.02),
		BatteryCurrentAmps: g.noise(baselineBatteryAmps, 0.15),
		AlternatorVoltage:  g.noise(baselineAlternator, 0.01),
		BatterySOCPercent:  g.noise(baselineBatterySOC, 0.01),
		BatteryHealth:      g.noise(baselineBattHealth, 0.005),

		FuelLevelPercent: g.noise(baselineFuelPercent, 0.01),
		FuelLevelLiters:  g.noise(baselineFuelLiters, 0.01),

		BrakePadThicknessMm: map[string]float64{
			model.WheelFrontLeft:  baselineFrontPadMm,
			model.WheelFrontRight: baselineFrontPadMm,
			model.WheelRearLeft:   baselineRearPadMm,
			model.WheelRearRight:  baselineRearPadMm,
		},
		BrakeFluidPercent: g.noise(baselineBrakeFluid, 0.005),
		BrakeTempCelsius: map[string]float64{
			model.WheelFrontLeft:  25.0,
			model.WheelFrontRight: 25.0,
			model.WheelRearLeft:   25.0,
			model.WheelRearRight:  25.0,
		},

		TirePressurePSI: map[string]float64{
			model.WheelFrontLeft:  g.noise(baselineTirePSI, 0.02),
			model.WheelFrontRight: g.noise(baselineTirePSI, 0.02),
			model.WheelRearLeft:   g.noise(baselineTirePSI, 0.02),
			model.WheelRearRight:  g.noise(baselineTirePSI, 0.02),
		},
		TireTempCelsius: map[string]float64{
			model.WheelFrontLeft:  25.0,
			model.WheelFrontRight: 25.0,
			model.WheelRearLeft:   25.0,
			model.WheelRearRight:  25.0,
		},
		VibrationGForce: map[string]float64{"x": 0.01, "y": 0.01, "z": 1.0},
	}
}

// LastSequence returns the most recently generated sequence number
func (g *Generator) LastSequence() uint64 {
	return g.seq
}

// noise adds Gaussian noise to a baseline value. The noise level is treated
// as roughly two standard deviations, and values whose baseline sits inside
// [0, 100] are clamped there to keep percentages valid.
func (g *Generator) noise(baseline, level float64) float64 {
	if level == 0 {
		return baseline
	}
	std := abs(baseline*level) / 2.0
	result := baseline + g.rng.NormFloat64()*std
	if baseline >= 0 && baseline <= 100 {
		result = clamp(result, 0, 100)
	}
	return result
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
