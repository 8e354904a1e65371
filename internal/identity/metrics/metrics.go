package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IdentitiesCreated prometheus.Counter
	ClaimsAdded       prometheus.Counter
	ClaimsRejected    *prometheus.CounterVec
	ClaimsRemoved     prometheus.Counter
	ClaimValidations  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_identities_created_total",
			Help: "Total number of identities onboarded",
		}),
		ClaimsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_claims_added_total",
			Help: "Total number of claims stored on identities",
		}),
		ClaimsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spout_claims_rejected_total",
			Help: "Total number of claim additions rejected, by reason",
		}, []string{"reason"}),
		ClaimsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spout_claims_removed_total",
			Help: "Total number of claims removed from identities",
		}),
		ClaimValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spout_claim_validations_total",
			Help: "Total number of issuer-side claim validity checks, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementIdentitiesCreated() {
	if m != nil {
		m.IdentitiesCreated.Inc()
	}
}

func (m *Metrics) IncrementClaimsAdded() {
	if m != nil {
		m.ClaimsAdded.Inc()
	}
}

func (m *Metrics) IncrementClaimsRejected(reason string) {
	if m != nil {
		m.ClaimsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementClaimsRemoved() {
	if m != nil {
		m.ClaimsRemoved.Inc()
	}
}

func (m *Metrics) IncrementClaimValidations(valid bool) {
	if m == nil {
		return
	}
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.ClaimValidations.WithLabelValues(outcome).Inc()
}
