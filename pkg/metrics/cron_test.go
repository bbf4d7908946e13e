package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

	m.ObserveRun("match-all", finished, 90*time.Second, nil)
	m.ObserveRun("match-all", finished.Add(time.Hour), time.Second, errors.New("db down"))
	m.ObserveRun("", finished, time.Second, nil)
	m.IncSkippedCycle()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("match-all", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("match-all", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", "succeeded")))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("match-all")),
		"a failed run must not move the last success time")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration), "one duration series per job")
}

func TestCronJobMetricsNil(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.Nil(t, m)
	assert.NotPanics(t, func() {
		m.ObserveRun("match-all", time.Now(), time.Second, nil)
		m.IncSkippedCycle()
	})
}
