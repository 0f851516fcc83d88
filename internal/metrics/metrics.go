// Package metrics exposes Prometheus collectors for the assistant pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-assistant/internal/assistant"
)

const namespace = "weather_assistant"

// Metrics implements assistant.Recorder on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	freshness           *prometheus.CounterVec
	telemetry           *prometheus.CounterVec
	telemetryDuration   prometheus.Histogram
	persistenceFailures prometheus.Counter
}

var _ assistant.Recorder = (*Metrics)(nil)

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Queries handled, by terminal state and failure cause.",
		}, []string{"state", "cause"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end query latency by terminal state.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"state"}),
		freshness: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freshness_decisions_total",
			Help:      "Freshness policy outcomes.",
		}, []string{"decision"}),
		telemetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_fetches_total",
			Help:      "Live telemetry fetches by result.",
		}, []string{"result"}),
		telemetryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telemetry_fetch_duration_seconds",
			Help:      "Live telemetry fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Fresh snapshots that could not be written to the knowledge store.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.freshness,
		m.telemetry,
		m.telemetryDuration,
		m.persistenceFailures,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(state assistant.State, cause string, elapsed time.Duration) {
	if cause == "" {
		cause = "none"
	}
	m.requests.WithLabelValues(string(state), cause).Inc()
	m.requestDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFreshness(fresh bool) {
	decision := "cached"
	if fresh {
		decision = "fresh"
	}
	m.freshness.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveTelemetry(cause string, elapsed time.Duration) {
	result := cause
	if result == "" {
		result = "ok"
	}
	m.telemetry.WithLabelValues(result).Inc()
	m.telemetryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePersistenceFailure() {
	m.persistenceFailures.Inc()
}
