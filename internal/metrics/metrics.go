// Package metrics defines the prometheus collectors for signature handling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Phases at which a signature is evaluated.
const (
	PhaseAdmit = "admit"
	PhaseRead  = "read"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	replays       prometheus.Counter
	nonceErrors   prometheus.Counter
	bindings      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustbook",
			Name:      "signature_verifications_total",
			Help:      "Signature verifications by resulting status and phase.",
		}, []string{"status", "phase"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trustbook",
			Name:      "signature_verification_duration_seconds",
			Help:      "Time spent verifying a signature.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"phase"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trustbook",
			Name:      "signature_replays_total",
			Help:      "Requests rejected because their nonce was already used.",
		}),
		nonceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trustbook",
			Name:      "nonce_store_errors_total",
			Help:      "Nonce store failures during admission.",
		}),
		bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustbook",
			Name:      "identity_bindings_total",
			Help:      "Identity bindings by resulting identity status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.verifications, m.duration, m.replays, m.nonceErrors, m.bindings)
	return m
}

// ObserveVerification records one verification.
func (m *Metrics) ObserveVerification(phase, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(status, phase).Inc()
	m.duration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// IncReplay records a replayed nonce.
func (m *Metrics) IncReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// IncNonceError records a nonce store failure.
func (m *Metrics) IncNonceError() {
	if m == nil {
		return
	}
	m.nonceErrors.Inc()
}

// IncBinding records an identity binding.
func (m *Metrics) IncBinding(status string) {
	if m == nil {
		return
	}
	m.bindings.WithLabelValues(status).Inc()
}
