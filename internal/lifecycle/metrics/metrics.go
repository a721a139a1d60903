package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for lifecycle request processing.
type Metrics struct {
	RequestsSubmitted *prometheus.CounterVec
	RequestsCompleted *prometheus.CounterVec
	RequestsFailed    *prometheus.CounterVec
	RequestConflicts  *prometheus.CounterVec
	InFlightRequests  prometheus.Gauge
	ExecuteDuration   *prometheus.HistogramVec
}

// New registers and returns lifecycle metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_lifecycle_requests_submitted_total",
			Help: "Total number of lifecycle requests admitted, labeled by kind",
		}, []string{"kind"}),
		RequestsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_lifecycle_requests_completed_total",
			Help: "Total number of lifecycle requests completed, labeled by kind",
		}, []string{"kind"}),
		RequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_lifecycle_requests_failed_total",
			Help: "Total number of lifecycle requests that reached failed, labeled by kind",
		}, []string{"kind"}),
		RequestConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_lifecycle_request_conflicts_total",
			Help: "Total number of submissions rejected by the in-flight invariant, labeled by kind",
		}, []string{"kind"}),
		InFlightRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "leadcrm_lifecycle_requests_in_flight",
			Help: "Current number of pending or processing lifecycle requests",
		}),
		ExecuteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadcrm_lifecycle_execute_duration_seconds",
			Help:    "Duration of lifecycle request execution, labeled by kind and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) IncrementSubmitted(kind string) {
	m.RequestsSubmitted.WithLabelValues(kind).Inc()
	m.InFlightRequests.Inc()
}

func (m *Metrics) IncrementConflicts(kind string) {
	m.RequestConflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTerminal(kind, outcome string, seconds float64) {
	switch outcome {
	case "completed":
		m.RequestsCompleted.WithLabelValues(kind).Inc()
	case "failed":
		m.RequestsFailed.WithLabelValues(kind).Inc()
	}
	m.InFlightRequests.Dec()
	m.ExecuteDuration.WithLabelValues(kind, outcome).Observe(seconds)
}
