// Package middleware provides cross-cutting concerns for the review service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aphrc/proposal-review/infrastructure/redcap"
	"github.com/aphrc/proposal-review/internal/ports"
)

const namespace = "proposal_review"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// REDCap request metrics get dedicated vectors; everything else lands in
// the generic operation vectors keyed by metric name.
type PrometheusMetrics struct {
	redcapDuration   *prometheus.HistogramVec
	redcapRequests   *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec

	breakerState    prometheus.Gauge
	breakerTrips    prometheus.Counter
	breakerOutcomes *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance whose metrics
// are registered with reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		redcapDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      redcap.MetricRequestDuration,
				Help:      "Duration of REDCap API calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		redcapRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      redcap.MetricRequestsTotal,
				Help:      "Total number of REDCap API calls by outcome.",
			},
			[]string{"operation", "status"},
		),
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Execution time of service operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of service operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_state",
				Help:      "Current values of the review dashboard state.",
			},
			[]string{"metric"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "observations",
				Help:      "Distribution of recorded values.",
				Buckets:   prometheus.LinearBuckets(0, 3, 8),
			},
			[]string{"metric"},
		),
		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redcap_circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
		breakerTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redcap_circuit_breaker_trips_total",
			Help:      "Number of requests rejected by an open circuit.",
		}),
		breakerOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redcap_circuit_breaker_results_total",
				Help:      "Requests that passed through the circuit breaker by result.",
			},
			[]string{"result"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.executionLatency.WithLabelValues(operation, status(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case redcap.MetricRequestsTotal:
		pm.redcapRequests.WithLabelValues(operation(labels), status(labels)).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, status(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case redcap.MetricRequestDuration:
		pm.redcapDuration.WithLabelValues(operation(labels), status(labels)).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

// CircuitBreaker returns an adapter reporting breaker activity into the
// same registry.
func (pm *PrometheusMetrics) CircuitBreaker() redcap.CircuitBreakerMetrics {
	return breakerMetrics{pm: pm}
}

type breakerMetrics struct{ pm *PrometheusMetrics }

func (b breakerMetrics) RecordState(s redcap.CircuitBreakerState) {
	b.pm.breakerState.Set(float64(s))
}

func (b breakerMetrics) RecordTrip()    { b.pm.breakerTrips.Inc() }
func (b breakerMetrics) RecordSuccess() { b.pm.breakerOutcomes.WithLabelValues("success").Inc() }
func (b breakerMetrics) RecordFailure() { b.pm.breakerOutcomes.WithLabelValues("failure").Inc() }

func status(labels map[string]string) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "success"
}

func operation(labels map[string]string) string {
	if op := labels["operation"]; op != "" {
		return op
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
