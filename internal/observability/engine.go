package observability

import "github.com/prometheus/client_golang/prometheus"

// Mutation outcome labels.
const (
	OutcomeApplied      = "applied"
	OutcomeRejected     = "rejected"
	OutcomeInconsistent = "inconsistent"
)

// EngineMetrics carries the inventory engine's metric vectors. All methods
// are nil-safe so components can run without metrics wired.
type EngineMetrics struct {
	mutationsTotal *prometheus.CounterVec
	matchScore     *prometheus.HistogramVec
	reconcileDrift prometheus.Gauge
}

// NewEngineMetrics registers the engine vectors on reg.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soletrack_stock_mutations_total",
		Help: "Stock mutations by movement type and outcome.",
	}, []string{"type", "outcome"})
	scores := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soletrack_filter_match_score",
		Help:    "Fuzzy match scores per filter field.",
		Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 100},
	}, []string{"field"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soletrack_reconcile_drifted_variants",
		Help: "Variants whose live quantity disagrees with the movement log net.",
	})
	reg.MustRegister(mutations, scores, drift)
	return &EngineMetrics{mutationsTotal: mutations, matchScore: scores, reconcileDrift: drift}
}

// ObserveMutation counts one mutation attempt.
func (m *EngineMetrics) ObserveMutation(movementType, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(movementType, outcome).Inc()
}

// ObserveMatchScore records the score of a fuzzy filter resolution.
func (m *EngineMetrics) ObserveMatchScore(field string, score int) {
	if m == nil {
		return
	}
	m.matchScore.WithLabelValues(field).Observe(float64(score))
}

// SetReconcileDrift publishes the latest reconciliation drift count.
func (m *EngineMetrics) SetReconcileDrift(n int) {
	if m == nil {
		return
	}
	m.reconcileDrift.Set(float64(n))
}
