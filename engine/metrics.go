package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics
var (
	loadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mixdeck_loads_total", Help: "Sessions loaded"},
	)
	triggersStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mixdeck_triggers_started_total", Help: "Overlay triggers dispatched"},
	)
	triggerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mixdeck_trigger_failures_total", Help: "Overlay triggers dropped on open/play failure"},
	)
	activeDecks = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "mixdeck_active_decks", Help: "Overlay decks currently playing"},
	)
)

// RegisterMetrics registers the engine collectors on the default
// Prometheus registry. Call at most once per process.
func RegisterMetrics() {
	prometheus.MustRegister(loadsTotal, triggersStarted, triggerFailures, activeDecks)
}
