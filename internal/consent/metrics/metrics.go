package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentsGranted     *prometheus.CounterVec
	ConsentsRevoked     *prometheus.CounterVec
	ConsentsRenewed     *prometheus.CounterVec
	ConsentsExpired     prometheus.Counter
	ActiveConsentsTotal prometheus.Gauge
	GrantConflicts      prometheus.Counter
	ReceiptVerifyFailed prometheus.Counter
	GrantLatency        prometheus.Histogram
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consents_granted_total",
			Help: "Total number of consents granted, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consents_revoked_total",
			Help: "Total number of consents revoked, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsRenewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consents_renewed_total",
			Help: "Total number of consents renewed, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_consents_expired_total",
			Help: "Total number of consents materialized as expired by the sweep",
		}),
		ActiveConsentsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentd_active_consents_total",
			Help: "Current number of active consents system-wide",
		}),
		GrantConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_grant_conflicts_total",
			Help: "Total number of grants rejected because an active consent already existed",
		}),
		ReceiptVerifyFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_receipt_verify_failed_total",
			Help: "Total number of receipt reads whose stored signature failed verification",
		}),
		GrantLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentd_consent_grant_latency_seconds",
			Help:    "Latency of consent grant operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementConsentsGranted(purpose string) {
	m.ConsentsGranted.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentsRevoked(purpose string) {
	m.ConsentsRevoked.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentsRenewed(purpose string) {
	m.ConsentsRenewed.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentsExpired() {
	m.ConsentsExpired.Inc()
}

func (m *Metrics) IncrementGrantConflicts() {
	m.GrantConflicts.Inc()
}

func (m *Metrics) IncrementReceiptVerifyFailed() {
	m.ReceiptVerifyFailed.Inc()
}

func (m *Metrics) IncrementActiveConsents(count float64) {
	m.ActiveConsentsTotal.Add(count)
}

func (m *Metrics) DecrementActiveConsents(count float64) {
	m.ActiveConsentsTotal.Sub(count)
}

func (m *Metrics) ObserveGrantLatency(durationSeconds float64) {
	m.GrantLatency.Observe(durationSeconds)
}
