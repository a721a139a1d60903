package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent ledger operations.
type Metrics struct {
	ConsentsRecorded    *prometheus.CounterVec
	ConsentsWithdrawn   *prometheus.CounterVec
	ActiveConsentsTotal prometheus.Gauge
	ConsentCheckPassed  *prometheus.CounterVec
	ConsentCheckFailed  *prometheus.CounterVec
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_consents_recorded_total",
			Help: "Total number of consents recorded, labeled by type",
		}, []string{"type"}),
		ConsentsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_consents_withdrawn_total",
			Help: "Total number of consents withdrawn, labeled by type",
		}, []string{"type"}),
		ActiveConsentsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "leadcrm_active_consents_total",
			Help: "Current number of active consents system-wide",
		}),
		ConsentCheckPassed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_consent_checks_passed_total",
			Help: "Total number of consent checks that passed, labeled by type",
		}, []string{"type"}),
		ConsentCheckFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadcrm_consent_checks_failed_total",
			Help: "Total number of consent checks that failed, labeled by type",
		}, []string{"type"}),
	}
}

func (m *Metrics) IncrementConsentsRecorded(consentType string) {
	m.ConsentsRecorded.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementConsentsWithdrawn(consentType string) {
	m.ConsentsWithdrawn.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementConsentCheckPassed(consentType string) {
	m.ConsentCheckPassed.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementConsentCheckFailed(consentType string) {
	m.ConsentCheckFailed.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementActiveConsents(count float64) {
	m.ActiveConsentsTotal.Add(count)
}

func (m *Metrics) DecrementActiveConsents(count float64) {
	m.ActiveConsentsTotal.Sub(count)
}
