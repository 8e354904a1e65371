package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	WalletsRegistered   prometheus.Counter
	WalletsDeregistered prometheus.Counter
	Verifications       *prometheus.CounterVec
	VerificationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		WalletsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_registry_wallets_registered_total",
			Help: "Total number of wallets registered in the identity registry",
		}),
		WalletsDeregistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_registry_wallets_deregistered_total",
			Help: "Total number of wallets removed from the identity registry",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spout_registry_verifications_total",
			Help: "Total number of wallet verification checks, by outcome",
		}, []string{"outcome"}),
		VerificationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "spout_registry_verification_duration_seconds",
			Help:    "Latency of wallet verification checks",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
	}
}

func (m *Metrics) IncrementWalletsRegistered() {
	if m != nil {
		m.WalletsRegistered.Inc()
	}
}

func (m *Metrics) IncrementWalletsDeregistered() {
	if m != nil {
		m.WalletsDeregistered.Inc()
	}
}

func (m *Metrics) ObserveVerification(verified bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
	m.VerificationSeconds.Observe(seconds)
}
