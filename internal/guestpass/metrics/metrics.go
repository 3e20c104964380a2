package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the guestpass module. Services
// accept a nil *Metrics so unit tests run without touching the default
// registry.
type Metrics struct {
	PassesIssued    prometheus.Counter
	IssueDenied     *prometheus.CounterVec
	PassesRedeemed  prometheus.Counter
	RedeemFailures  *prometheus.CounterVec
	IssueDuration   prometheus.Histogram
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		PassesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_passes_issued_total",
			Help: "Total number of guest passes issued",
		}),
		IssueDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_issue_denied_total",
			Help: "Total number of denied issuance attempts by reason",
		}, []string{"reason"}),
		PassesRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_passes_redeemed_total",
			Help: "Total number of guest passes redeemed",
		}),
		RedeemFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_redeem_failures_total",
			Help: "Total number of failed redemption attempts by outcome",
		}, []string{"outcome"}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatepass_issue_duration_seconds",
			Help:    "Latency of pass issuance including credential rendering",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatepass_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.PassesIssued.Inc()
}

func (m *Metrics) IncrementDenied(reason string) {
	if m == nil {
		return
	}
	m.IssueDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRedeemed() {
	if m == nil {
		return
	}
	m.PassesRedeemed.Inc()
}

func (m *Metrics) IncrementRedeemFailure(outcome string) {
	if m == nil {
		return
	}
	m.RedeemFailures.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIssue(d time.Duration) {
	if m == nil {
		return
	}
	m.IssueDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
