// Package metrics provides observability for the rehabilitation module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rehabilitation module.
type Metrics struct {
	// Attempts by outcome (Granted / Denied)
	Rehabilitations *prometheus.CounterVec
}

// New creates a new Metrics instance with all rehabilitation metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Rehabilitations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_rehabilitations_total",
			Help: "Rehabilitation attempts by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveOutcome records one rehabilitation attempt.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m != nil {
		m.Rehabilitations.WithLabelValues(outcome).Inc()
	}
}
