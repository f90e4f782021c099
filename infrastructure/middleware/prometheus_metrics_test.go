package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aphrc/proposal-review/infrastructure/redcap"
	"github.com/aphrc/proposal-review/internal/ports"
)

// newTestMetrics registers a fresh collector on a private registry so
// tests never collide on metric names.
func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// sample returns the value of the series in family name whose labels
// include want. Counters and gauges report their value, histograms their
// sample count.
func sample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func TestNewPrometheusMetrics(t *testing.T) {
	pm, _ := newTestMetrics(t)

	assert.NotNil(t, pm.redcapDuration)
	assert.NotNil(t, pm.redcapRequests)
	assert.NotNil(t, pm.executionLatency)
	assert.NotNil(t, pm.operationCounter)
	assert.NotNil(t, pm.systemGauges)

	var _ ports.MetricsCollector = pm
}

func TestNewPrometheusMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusMetrics(reg)
	assert.Panics(t, func() { NewPrometheusMetrics(reg) })
}

func TestPrometheusMetrics_RedcapRequests(t *testing.T) {
	pm, reg := newTestMetrics(t)
	labels := map[string]string{"operation": redcap.ContentRecord, "status": "success"}

	pm.RecordCounter(redcap.MetricRequestsTotal, 1, labels)
	pm.RecordCounter(redcap.MetricRequestsTotal, 1, labels)
	pm.RecordHistogram(redcap.MetricRequestDuration, 0.2, labels)

	assert.Equal(t, 2.0, sample(t, reg, "proposal_review_redcap_requests_total", labels))
	assert.Equal(t, 1.0, sample(t, reg, "proposal_review_redcap_request_duration_seconds", labels))
}

func TestPrometheusMetrics_GenericMetrics(t *testing.T) {
	pm, reg := newTestMetrics(t)

	tests := []struct {
		name   string
		record func()
		family string
		labels map[string]string
		want   float64
	}{
		{
			name:   "counter defaults status to success",
			record: func() { pm.RecordCounter("dashboard_refresh", 1, nil) },
			family: "proposal_review_operations_total",
			labels: map[string]string{"operation": "dashboard_refresh", "status": "success"},
			want:   1,
		},
		{
			name:   "counter keeps explicit status",
			record: func() { pm.RecordCounter("dashboard_refresh", 3, map[string]string{"status": "error"}) },
			family: "proposal_review_operations_total",
			labels: map[string]string{"operation": "dashboard_refresh", "status": "error"},
			want:   3,
		},
		{
			name:   "gauge",
			record: func() { pm.RecordGauge("dashboard_candidates", 12, nil) },
			family: "proposal_review_system_state",
			labels: map[string]string{"metric": "dashboard_candidates"},
			want:   12,
		},
		{
			name:   "latency",
			record: func() { pm.RecordLatency("dashboard_refresh", 150*time.Millisecond, map[string]string{"status": "success"}) },
			family: "proposal_review_operation_duration_seconds",
			labels: map[string]string{"operation": "dashboard_refresh"},
			want:   1,
		},
		{
			name:   "histogram",
			record: func() { pm.RecordHistogram("total_score", 17, nil) },
			family: "proposal_review_observations",
			labels: map[string]string{"metric": "total_score"},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record()
			assert.Equal(t, tt.want, sample(t, reg, tt.family, tt.labels))
		})
	}
}

func TestPrometheusMetrics_CircuitBreaker(t *testing.T) {
	pm, reg := newTestMetrics(t)
	cb := pm.CircuitBreaker()

	cb.RecordState(redcap.StateOpen)
	cb.RecordTrip()
	cb.RecordTrip()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, 1.0, sample(t, reg, "proposal_review_redcap_circuit_breaker_state", nil))
	assert.Equal(t, 2.0, sample(t, reg, "proposal_review_redcap_circuit_breaker_trips_total", nil))
	assert.Equal(t, 1.0, sample(t, reg, "proposal_review_redcap_circuit_breaker_results_total", map[string]string{"result": "failure"}))

	cb.RecordState(redcap.StateHalfOpen)
	assert.Equal(t, 2.0, sample(t, reg, "proposal_review_redcap_circuit_breaker_state", nil))
}
