package agent

import (
	"fmt"
	"time"

	"github.com/jihwankim/aegis/pkg/model"
)

// AnomalyDetector runs rule-based threshold checks over telemetry and
// produces predictive alerts. Detection is a pure function of the telemetry
// record: it keeps no history and has no side effects, so multiple metrics
// crossing thresholds on the same record produce independent alerts.
type AnomalyDetector struct {
	vehicleID string
	now       func() time.Time
}

// NewAnomalyDetector creates a detector for one vehicle
func NewAnomalyDetector(vehicleID string) *AnomalyDetector {
	return &AnomalyDetector{vehicleID: vehicleID, now: time.Now}
}

// Analyze checks all failure conditions and returns any alerts
func (d *AnomalyDetector) Analyze(t *model.VehicleTelemetry) []model.PredictiveAlert {
	var alerts []model.PredictiveAlert
	alerts = append(alerts, d.checkEngineTemp(t)...)
	alerts = append(alerts, d.checkBattery(t)...)
	alerts = append(alerts, d.checkAlternator(t)...)
	alerts = append(alerts, d.checkBatterySOC(t)...)
	alerts = append(alerts, d.checkFuel(t)...)
	alerts = append(alerts, d.checkBrakePads(t)...)
	alerts = append(alerts, d.checkTirePressure(t)...)
	return alerts
}

// Engine temperature: warning above 105°C, critical above 120°C
func (d *AnomalyDetector) checkEngineTemp(t *model.VehicleTelemetry) []model.PredictiveAlert {
	temp := t.EngineTempCelsius
	related := map[string]float64{"engine_temp_celsius": temp}

	if temp > 120.0 {
		return []model.PredictiveAlert{d.critical(model.CategoryEngine, "engine",
			0.95, 0.98, 0.5, 2.0, 1.0,
			"STOP IMMEDIATELY - Engine damage imminent. Activate limp mode.",
			fmt.Sprintf("engine_temp_celsius=%.1f°C (critical threshold 120°C)", temp),
			related)}
	}
	if temp > 105.0 {
		return []model.PredictiveAlert{d.warning(model.CategoryEngine, "engine",
			0.65, 0.85, 2.0, 8.0, 4.0,
			"Monitor engine temperature closely. Schedule inspection.",
			fmt.Sprintf("engine_temp_celsius=%.1f°C (warning threshold 105°C)", temp),
			related)}
	}
	return nil
}

// Battery voltage: warning below 12.0V, critical below 11.5V
func (d *AnomalyDetector) checkBattery(t *model.VehicleTelemetry) []model.PredictiveAlert {
	volts := t.BatteryVoltage
	related := map[string]float64{"battery_voltage": volts}

	if volts < 11.5 {
		return []model.PredictiveAlert{d.critical(model.CategoryElectrical, "battery",
			0.95, 0.98, 0.1, 1.0, 0.5,
			"STOP IMMEDIATELY - Critical electrical failure.",
			fmt.Sprintf("battery_voltage=%.1fV (critical threshold 11.5V)", volts),
			related)}
	}
	if volts < 12.0 {
		return []model.PredictiveAlert{d.warning(model.CategoryElectrical, "battery",
			0.65, 0.85, 1.0, 4.0, 2.0,
			"Monitor electrical system. Check alternator.",
			fmt.Sprintf("battery_voltage=%.1fV (warning threshold 12.0V)", volts),
			related)}
	}
	return nil
}

// Alternator voltage: warning below 13.5V, critical below 13.0V
func (d *AnomalyDetector) checkAlternator(t *model.VehicleTelemetry) []model.PredictiveAlert {
	volts := t.AlternatorVoltage
	related := map[string]float64{"alternator_voltage": volts}

	if volts < 13.0 {
		return []model.PredictiveAlert{d.critical(model.CategoryElectrical, "alternator",
			0.95, 0.98, 0.5, 2.0, 1.0,
			"STOP IMMEDIATELY - Charging system failure. Battery will drain.",
			fmt.Sprintf("alternator_voltage=%.1fV (critical threshold 13.0V)", volts),
			related)}
	}
	if volts < 13.5 {
		return []model.PredictiveAlert{d.warning(model.CategoryElectrical, "alternator",
			0.65, 0.85, 1.0, 4.0, 2.0,
			"Monitor charging system. Check alternator belt and wiring.",
			fmt.Sprintf("alternator_voltage=%.1fV (warning threshold 13.5V)", volts),
			related)}
	}
	return nil
}

// Battery state of charge: warning below 40%, critical below 20%
func (d *AnomalyDetector) checkBatterySOC(t *model.VehicleTelemetry) []model.PredictiveAlert {
	soc := t.BatterySOCPercent
	related := map[string]float64{"battery_state_of_charge_percent": soc}

	if soc < 20.0 {
		return []model.PredictiveAlert{d.critical(model.CategoryElectrical, "battery_charge",
			0.90, 0.95, 0.1, 1.0, 0.5,
			"Return to station IMMEDIATELY - Battery charge critically low.",
			fmt.Sprintf("battery_state_of_charge_percent=%.1f%% (critical threshold 20%%)", soc),
			related)}
	}
	if soc < 40.0 {
		return []model.PredictiveAlert{d.warning(model.CategoryElectrical, "battery_charge",
			0.65, 0.85, 1.0, 4.0, 2.0,
			"Battery charge low. Plan return to station for charging.",
			fmt.Sprintf("battery_state_of_charge_percent=%.1f%% (warning threshold 40%%)", soc),
			related)}
	}
	return nil
}

// Fuel level: warning below 15%, critical below 5%
func (d *AnomalyDetector) checkFuel(t *model.VehicleTelemetry) []model.PredictiveAlert {
	fuel := t.FuelLevelPercent
	related := map[string]float64{"fuel_level_percent": fuel}

	if fuel < 5.0 {
		return []model.PredictiveAlert{d.critical(model.CategoryFuel, "fuel",
			0.99, 0.99, 0.1, 0.5, 0.2,
			"REFUEL IMMEDIATELY - Vehicle will stop soon.",
			fmt.Sprintf("fuel_level_percent=%.1f%% (critical threshold 5%%)", fuel),
			related)}
	}
	if fuel < 15.0 {
		return []model.PredictiveAlert{d.warning(model.CategoryFuel, "fuel",
			0.80, 0.90, 0.5, 2.0, 1.0,
			"Refuel soon. Low fuel level warning.",
			fmt.Sprintf("fuel_level_percent=%.1f%% (warning threshold 15%%)", fuel),
			related)}
	}
	return nil
}

// Brake pads: per wheel, warning below 3.0mm, critical below 1.5mm
func (d *AnomalyDetector) checkBrakePads(t *model.VehicleTelemetry) []model.PredictiveAlert {
	var alerts []model.PredictiveAlert
	for _, wheel := range model.Wheels {
		mm, ok := t.BrakePadThicknessMm[wheel]
		if !ok {
			continue
		}
		related := map[string]float64{"brake_pad_thickness_mm_" + wheel: mm}
		if mm < 1.5 {
			alerts = append(alerts, d.critical(model.CategoryBrakes, "brake_pad_"+wheel,
				0.90, 0.95, 0.5, 4.0, 2.0,
				"STOP IMMEDIATELY - Brake pads critically worn. Do not operate.",
				fmt.Sprintf("brake_pad_thickness_mm[%s]=%.2fmm (critical threshold 1.5mm)", wheel, mm),
				related))
		} else if mm < 3.0 {
			alerts = append(alerts, d.warning(model.CategoryBrakes, "brake_pad_"+wheel,
				0.65, 0.85, 8.0, 48.0, 24.0,
				"Brake pads worn. Schedule replacement.",
				fmt.Sprintf("brake_pad_thickness_mm[%s]=%.2fmm (warning threshold 3.0mm)", wheel, mm),
				related))
		}
	}
	return alerts
}

// Tire pressure: per wheel, warning below 60 psi, critical below 40 psi
func (d *AnomalyDetector) checkTirePressure(t *model.VehicleTelemetry) []model.PredictiveAlert {
	var alerts []model.PredictiveAlert
	for _, wheel := range model.Wheels {
		psi, ok := t.TirePressurePSI[wheel]
		if !ok {
			continue
		}
		related := map[string]float64{"tire_pressure_psi_" + wheel: psi}
		if psi < 40.0 {
			alerts = append(alerts, d.critical(model.CategoryTires, "tire_"+wheel,
				0.90, 0.95, 0.1, 1.0, 0.5,
				"STOP IMMEDIATELY - Tire pressure critically low. Risk of blowout.",
				fmt.Sprintf("tire_pressure_psi[%s]=%.1fpsi (critical threshold 40psi)", wheel, psi),
				related))
		} else if psi < 60.0 {
			alerts = append(alerts, d.warning(model.CategoryTires, "tire_"+wheel,
				0.65, 0.85, 0.5, 4.0, 2.0,
				"Tire pressure low. Inflate or inspect for leak.",
				fmt.Sprintf("tire_pressure_psi[%s]=%.1fpsi (warning threshold 60psi)", wheel, psi),
				related))
		}
	}
	return alerts
}

func (d *AnomalyDetector) critical(cat model.FailureCategory, component string,
	prob, conf, minH, maxH, likelyH float64, action, factor string,
	related map[string]float64) model.PredictiveAlert {
	return model.PredictiveAlert{
		AlertID:                   model.NewAlertID(),
		VehicleID:                 d.vehicleID,
		Timestamp:                 d.now().UTC(),
		Severity:                  model.SeverityCritical,
		Category:                  cat,
		Component:                 component,
		FailureProbability:        prob,
		Confidence:                conf,
		PredictedFailureMinHours:  minH,
		PredictedFailureMaxHours:  maxH,
		PredictedFailureLikelyHrs: likelyH,
		CanCompleteCurrentMission: false,
		SafeToOperate:             false,
		RecommendedAction:         action,
		ContributingFactors:       []string{factor},
		RelatedTelemetry:          related,
	}
}

func (d *AnomalyDetector) warning(cat model.FailureCategory, component string,
	prob, conf, minH, maxH, likelyH float64, action, factor string,
	related map[string]float64) model.PredictiveAlert {
	return model.PredictiveAlert{
		AlertID:                   model.NewAlertID(),
		VehicleID:                 d.vehicleID,
		Timestamp:                 d.now().UTC(),
		Severity:                  model.SeverityWarning,
		Category:                  cat,
		Component:                 component,
		FailureProbability:        prob,
		Confidence:                conf,
		PredictedFailureMinHours:  minH,
		PredictedFailureMaxHours:  maxH,
		PredictedFailureLikelyHrs: likelyH,
		CanCompleteCurrentMission: true,
		SafeToOperate:             true,
		RecommendedAction:         action,
		ContributingFactors:       []string{factor},
		RelatedTelemetry:          related,
	}
}
