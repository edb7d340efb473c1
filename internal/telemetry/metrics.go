package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the evaluation pipeline.
type Metrics struct {
	registry *prometheus.Registry

	EvaluationsTotal  *prometheus.CounterVec
	SafetyBlocksTotal *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	AttemptsTotal     *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry so tests
// can run many instances without collisions.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crucible_evaluations_total",
			Help: "Completed pipeline evaluations by outcome kind.",
		}, []string{"kind"}),
		SafetyBlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crucible_safety_blocks_total",
			Help: "Code samples rejected by the safety scanner, by category.",
		}, []string{"category"}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crucible_execution_duration_seconds",
			Help:    "Wall-clock duration of sandboxed executions.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crucible_attempts_total",
			Help: "Agent loop attempts by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.EvaluationsTotal,
		m.SafetyBlocksTotal,
		m.ExecutionDuration,
		m.AttemptsTotal,
	)
	return m
}

// RecordEvaluation records one completed pipeline evaluation.
func (m *Metrics) RecordEvaluation(kind string, seconds float64) {
	if kind == "" {
		kind = "success"
	}
	m.EvaluationsTotal.WithLabelValues(kind).Inc()
	m.ExecutionDuration.Observe(seconds)
}

// RecordSafetyBlock records a scanner rejection.
func (m *Metrics) RecordSafetyBlock(category string) {
	m.SafetyBlocksTotal.WithLabelValues(category).Inc()
}

// RecordAttempt records one agent loop attempt.
func (m *Metrics) RecordAttempt(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint for this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the raw registry for tests.
func (m *Metrics) Gather() prometheus.Gatherer { return m.registry }
