package miniauth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for exchange results.
const (
	ExchangeOutcomeCreated  = "created"
	ExchangeOutcomeUpdated  = "updated"
	ExchangeOutcomeRejected = "rejected"
	ExchangeOutcomeFailed   = "failed"
)

// ExchangeMetrics counts exchange results per outcome. A nil *ExchangeMetrics
// is a no-op so the exchanger works without a registry.
type ExchangeMetrics struct {
	exchanges *prometheus.CounterVec
}

// NewExchangeMetrics registers the exchange counters on the given registerer.
func NewExchangeMetrics(reg prometheus.Registerer) *ExchangeMetrics {
	m := &ExchangeMetrics{
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_exchanges_total",
				Help: "Total number of identity exchanges by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.exchanges)
	}

	return m
}

func (m *ExchangeMetrics) observe(outcome string) {
	if m == nil || m.exchanges == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}
