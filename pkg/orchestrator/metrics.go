package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus instrumentation
type Metrics struct {
	registry *prometheus.Registry

	messagesTotal   *prometheus.CounterVec
	parseErrors     prometheus.Counter
	alertsTotal     *prometheus.CounterVec
	dispatchesTotal prometheus.Counter
	emergenciesOpen prometheus.Gauge
	fleetSize       prometheus.Gauge
	availableUnits  *prometheus.GaugeVec
}

// NewMetrics creates and registers the orchestrator metrics on a fresh
// registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "messages_received_total",
			Help:      "Messages consumed from the fleet bus by kind.",
		}, []string{"kind"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "message_parse_errors_total",
			Help:      "Messages dropped because they could not be decoded.",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "alerts_received_total",
			Help:      "Predictive alerts received by severity.",
		}, []string{"severity"}),
		dispatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "dispatches_total",
			Help:      "Dispatch records created.",
		}),
		emergenciesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "emergencies_open",
			Help:      "Emergencies not yet resolved or cancelled.",
		}),
		fleetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "fleet_size",
			Help:      "Vehicles known to the orchestrator.",
		}),
		availableUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "available_units",
			Help:      "Vehicles available for dispatch by type.",
		}, []string{"vehicle_type"}),
	}

	m.registry.MustRegister(
		m.messagesTotal,
		m.parseErrors,
		m.alertsTotal,
		m.dispatchesTotal,
		m.emergenciesOpen,
		m.fleetSize,
		m.availableUnits,
	)
	return m
}

// Registry returns the registry for exposure via promhttp
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
