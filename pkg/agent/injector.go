package agent

import (
	"time"

	"github.com/jihwankim/aegis/pkg/model"
)

// FailureInjector overlays active failure scenarios onto generated
// telemetry. Each scenario progresses linearly with the time elapsed since
// its activation, so an agent left running will cross the warning and then
// the critical anomaly thresholds.
type FailureInjector struct {
	active map[model.FailureScenario]time.Time
	order  []model.FailureScenario
	now    func() time.Time
}

// NewFailureInjector creates an injector with no active scenarios
func NewFailureInjector() *FailureInjector {
	return &FailureInjector{
		active: make(map[model.FailureScenario]time.Time),
		now:    time.Now,
	}
}

// Activate starts a failure scenario. Re-activating an already active
// scenario does not reset its clock or its position in the activation order.
func (f *FailureInjector) Activate(s model.FailureScenario) {
	if _, ok := f.active[s]; !ok {
		f.active[s] = f.now()
		f.order = append(f.order, s)
	}
}

// Deactivate stops a failure scenario
func (f *FailureInjector) Deactivate(s model.FailureScenario) {
	if _, ok := f.active[s]; !ok {
		return
	}
	delete(f.active, s)
	for i, sc := range f.order {
		if sc == s {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Active returns the scenarios currently in effect, in activation order
func (f *FailureInjector) Active() []model.FailureScenario {
	return append([]model.FailureScenario(nil), f.order...)
}

// Apply mutates the telemetry in place. Scenarios apply in activation order,
// so where two scenarios write the same field the later activation wins.
func (f *FailureInjector) Apply(t *model.VehicleTelemetry) {
	for _, s := range f.order {
		m := f.now().Sub(f.active[s]).Minutes()
		switch s {
		case model.ScenarioEngineOverheat:
			f.applyEngineOverheat(t, m)
		case model.ScenarioAlternatorFailure:
			f.applyAlternatorFailure(t, m)
		case model.ScenarioBrakePadWear:
			f.applyBrakePadWear(t, m)
		case model.ScenarioTirePressureLow:
			f.applyTirePressureLow(t, m)
		case model.ScenarioBatteryDegradation:
			f.applyBatteryDegradation(t, m)
		case model.ScenarioFuelLeak:
			f.applyFuelLeak(t, m)
		}
	}
}

// Engine heats 2°C per minute from its 90°C baseline, coolant follows at
// 2.5°C per minute, both capped at the sensor ceiling.
func (f *FailureInjector) applyEngineOverheat(t *model.VehicleTelemetry, m float64) {
	t.EngineTempCelsius = min(baselineEngineTemp+2.0*m, 150.0)
	t.CoolantTempCelsius = min(baselineCoolantTemp+2.5*m, 150.0)
}

// Alternator output decays toward battery-only voltage while the battery
// discharges at 3% SOC per minute. Battery voltage tracks SOC.
func (f *FailureInjector) applyAlternatorFailure(t *model.VehicleTelemetry, m float64) {
	t.AlternatorVoltage = max(11.5, baselineAlternator-0.02*m)
	t.BatterySOCPercent = max(0.0, 100.0-3.0*m)
	t.BatteryVoltage = 11.5 + t.BatterySOCPercent*0.025
}

// Front pads wear faster than rear; brake temperature creeps up with use.
func (f *FailureInjector) applyBrakePadWear(t *model.VehicleTelemetry, m float64) {
	front := max(0.0, baselineFrontPadMm-0.065*m)
	rear := max(0.0, baselineRearPadMm-0.05*m)
	t.BrakePadThicknessMm[model.WheelFrontLeft] = front
	t.BrakePadThicknessMm[model.WheelFrontRight] = front
	t.BrakePadThicknessMm[model.WheelRearLeft] = rear
	t.BrakePadThicknessMm[model.WheelRearRight] = rear
	temp := min(40.0+0.5*m, 120.0)
	for _, wheel := range model.Wheels {
		t.BrakeTempCelsius[wheel] = temp
	}
}

// Single-tire slow leak on the front left, with growing chassis vibration.
func (f *FailureInjector) applyTirePressureLow(t *model.VehicleTelemetry, m float64) {
	t.TirePressurePSI[model.WheelFrontLeft] = max(0.0, baselineTirePSI-2.0*m)
	t.VibrationGForce["z"] += min(0.02*m, 0.5)
}

func (f *FailureInjector) applyBatteryDegradation(t *model.VehicleTelemetry, m float64) {
	t.BatteryVoltage = max(0.0, baselineBatteryVolts-0.02*m)
}

func (f *FailureInjector) applyFuelLeak(t *model.VehicleTelemetry, m float64) {
	t.FuelLevelPercent = max(0.0, baselineFuelPercent-5.0*m)
	t.FuelLevelLiters = t.FuelLevelPercent * (baselineFuelLiters / baselineFuelPercent)
}
