package gate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for gate decisions.
const (
	OutcomeStatic       = "static"
	OutcomeUngated      = "ungated"
	OutcomePass         = "pass"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRedirect     = "redirect"
)

// Metrics counts gate decisions per outcome. A nil *Metrics is a no-op so the
// gate works without a registry.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the gate counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_decisions_total",
				Help: "Total number of route gate decisions by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.decisions)
	}

	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}
