package syncstart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus
// metrics on a private registry.
type PrometheusMetricsCollector struct {
	launchDuration    *prometheus.HistogramVec
	handshakeDuration *prometheus.HistogramVec
	handshakes        *prometheus.CounterVec
	inFlight          prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "syncstart"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.launchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Duration of the synchronous child launch phase",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"child_id", "status"},
	)

	pmc.handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time spent waiting for the readiness acknowledgment",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"child_id", "outcome"},
	)

	pmc.handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of readiness handshakes by outcome",
		},
		[]string{"child_id", "outcome"},
	)

	pmc.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handshakes_in_flight",
			Help:      "Number of readiness handshakes currently waiting",
		},
	)

	pmc.registry.MustRegister(
		pmc.launchDuration,
		pmc.handshakeDuration,
		pmc.handshakes,
		pmc.inFlight,
	)

	return pmc
}

// LaunchDuration records the duration of the synchronous launch phase.
func (pmc *PrometheusMetricsCollector) LaunchDuration(childID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	pmc.launchDuration.WithLabelValues(childID, status).Observe(duration.Seconds())
}

// HandshakeStarted records the start of a rendezvous.
func (pmc *PrometheusMetricsCollector) HandshakeStarted(childID string) {
	pmc.inFlight.Inc()
}

// HandshakeOutcome records the terminal outcome of a rendezvous.
func (pmc *PrometheusMetricsCollector) HandshakeOutcome(childID string, outcome Outcome, duration time.Duration) {
	pmc.inFlight.Dec()
	pmc.handshakes.WithLabelValues(childID, string(outcome)).Inc()
	pmc.handshakeDuration.WithLabelValues(childID, string(outcome)).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
