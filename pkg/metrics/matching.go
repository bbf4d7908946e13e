package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchingMetrics tracks matching engine runs.
type MatchingMetrics struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	upserted    *prometheus.CounterVec
	deactivated prometheus.Counter
	scores      prometheus.Histogram
}

// NewMatchingMetrics registers the engine metrics on the provided registerer.
func NewMatchingMetrics(reg prometheus.Registerer) *MatchingMetrics {
	if reg == nil {
		return &MatchingMetrics{}
	}
	m := &MatchingMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matching_runs_total",
			Help:      "Matching runs by outcome (succeeded, failed, skipped).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_run_duration_seconds",
			Help:      "Duration of single-request matching runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		upserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matching_matches_upserted_total",
			Help:      "Match rows written by the engine (created, updated).",
		}, []string{"op"}),
		deactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matching_matches_deactivated_total",
			Help:      "Match rows soft-deactivated as stale.",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_score",
			Help:      "Scores of persisted matches.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.upserted, m.deactivated, m.scores)
	return m
}

func (m *MatchingMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(duration.Seconds())
}

func (m *MatchingMetrics) AddUpserted(op string, n int) {
	if m == nil || m.upserted == nil || n <= 0 {
		return
	}
	m.upserted.WithLabelValues(normalizeLabel(op)).Add(float64(n))
}

func (m *MatchingMetrics) AddDeactivated(n int) {
	if m == nil || m.deactivated == nil || n <= 0 {
		return
	}
	m.deactivated.Add(float64(n))
}

func (m *MatchingMetrics) ObserveScore(score float64) {
	if m == nil || m.scores == nil {
		return
	}
	m.scores.Observe(score)
}
