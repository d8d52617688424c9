package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow module.
type Metrics struct {
	// Stage completions by stage name
	StageCompletions *prometheus.CounterVec

	// Rejected completion attempts by reason (error code)
	CompletionRejections *prometheus.CounterVec

	// Cases reaching the terminal state
	CasesCompleted prometheus.Counter

	// CompleteStage latency including lock wait
	CompleteStageLatency prometheus.Histogram
}

// New creates a new Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		StageCompletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_stage_completions_total",
			Help: "Total successful stage completions by stage",
		}, []string{"stage"}),

		CompletionRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_stage_rejections_total",
			Help: "Rejected stage completion attempts by reason",
		}, []string{"reason"}),

		CasesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_cases_completed_total",
			Help: "Total cases reaching the terminal all-stages-complete state",
		}),

		CompleteStageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certflow_complete_stage_duration_seconds",
			Help:    "Duration of CompleteStage including per-case lock wait",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// ObserveCompletion records a successful stage completion.
func (m *Metrics) ObserveCompletion(stage string) {
	if m != nil {
		m.StageCompletions.WithLabelValues(stage).Inc()
	}
}

// ObserveRejection records a rejected completion attempt.
func (m *Metrics) ObserveRejection(reason string) {
	if m != nil {
		m.CompletionRejections.WithLabelValues(reason).Inc()
	}
}

// ObserveCaseComplete records a case reaching the terminal state.
func (m *Metrics) ObserveCaseComplete() {
	if m != nil {
		m.CasesCompleted.Inc()
	}
}

// ObserveCompleteStageLatency records the duration of a CompleteStage call.
func (m *Metrics) ObserveCompleteStageLatency(d time.Duration) {
	if m != nil {
		m.CompleteStageLatency.Observe(d.Seconds())
	}
}
