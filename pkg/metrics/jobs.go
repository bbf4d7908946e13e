package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks dispatcher attempts and terminal outcomes.
type JobMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	terminal *prometheus.CounterVec
	queue    prometheus.Gauge
}

// NewJobMetrics registers the dispatcher metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	m := &JobMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_attempts_total",
			Help:      "Job attempts by kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_attempt_duration_seconds",
			Help:      "Duration of job attempts.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 180, 300},
		}, []string{"kind"}),
		terminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs reaching a terminal state.",
		}, []string{"kind", "state"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Jobs waiting for a dispatcher worker.",
		}),
	}
	reg.MustRegister(m.attempts, m.duration, m.terminal, m.queue)
	return m
}

func (m *JobMetrics) ObserveAttempt(kind, result string, duration time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func (m *JobMetrics) IncTerminal(kind, state string) {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.WithLabelValues(normalizeLabel(kind), normalizeLabel(state)).Inc()
}

func (m *JobMetrics) SetQueueDepth(n int) {
	if m == nil || m.queue == nil {
		return
	}
	m.queue.Set(float64(n))
}
