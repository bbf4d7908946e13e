package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/internal/analytics/types"
	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

type captureInserter struct {
	rows []types.MatchRunRow
	err  error
}

func (c *captureInserter) InsertMatchRun(_ context.Context, row types.MatchRunRow) error {
	c.rows = append(c.rows, row)
	return c.err
}

func finishedStatus(job Job, state enums.JobState, result *Result, err error) Status {
	started := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	return Status{
		Job:        job,
		State:      state,
		Attempts:   1,
		StartedAt:  &started,
		FinishedAt: &finished,
		Result:     result,
		Err:        err,
	}
}

func TestAnalyticsObserver_MatchRequestRow(t *testing.T) {
	capture := &captureInserter{}
	obs, err := NewAnalyticsObserver(capture, logger.Nop())
	require.NoError(t, err)

	job := NewMatchRequestJob(uuid.New(), "criteria_changed")
	obs.Finished(context.Background(), finishedStatus(job, enums.JobStateSucceeded, &Result{
		Match: &matching.MatchResult{Count: 3, Created: 2, Updated: 1, TopScore: 0.91},
	}, nil))

	require.Len(t, capture.rows, 1)
	row := capture.rows[0]
	assert.Equal(t, job.ID.String(), row.JobID)
	assert.Equal(t, "match-request", row.Kind)
	assert.Equal(t, "succeeded", row.State)
	require.NotNil(t, row.RequestID)
	assert.Equal(t, job.RequestID.String(), *row.RequestID)
	assert.EqualValues(t, 1500, row.DurationMs)
	assert.EqualValues(t, 2, row.NewMatches)
	assert.EqualValues(t, 1, row.UpdatedMatches)
	require.NotNil(t, row.TopScore)
	assert.InDelta(t, 0.91, *row.TopScore, 1e-9)
	assert.Nil(t, row.ErrorCode)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(row.Payload.JSONVal), &payload))
	assert.Equal(t, "criteria_changed", payload["reason"])
}

func TestAnalyticsObserver_FailedBatchRow(t *testing.T) {
	capture := &captureInserter{err: errors.New("bigquery down")}
	obs, err := NewAnalyticsObserver(capture, logger.Nop())
	require.NoError(t, err)

	batch := &matching.BatchResult{
		Succeeded: 1,
		Failed:    1,
		Results: []matching.PerRequestResult{
			{Result: &matching.MatchResult{Count: 1, Created: 1, TopScore: 0.5}},
			{Err: errors.New("boom")},
		},
	}
	jobErr := pkgerrors.New(pkgerrors.CodeDependency, "list requests")
	obs.Finished(context.Background(), finishedStatus(NewMatchAllJob("cron"), enums.JobStateFailed, &Result{Batch: batch}, jobErr))

	require.Len(t, capture.rows, 1, "insert errors are logged, not raised")
	row := capture.rows[0]
	assert.Nil(t, row.RequestID)
	assert.EqualValues(t, 2, row.Processed)
	assert.EqualValues(t, 1, row.Failed)
	assert.EqualValues(t, 1, row.NewMatches)
	require.NotNil(t, row.ErrorCode)
	assert.Equal(t, "DEPENDENCY_ERROR", *row.ErrorCode)
}

func TestMetricsObserverCountsAttemptsAndTerminalStates(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewMetricsObserver(metrics.NewJobMetrics(reg))

	job := NewMatchRequestJob(uuid.New(), "")
	st := finishedStatus(job, enums.JobStateFailed, nil, nil)
	obs.AttemptFinished(context.Background(), st, pkgerrors.New(pkgerrors.CodeDependency, "x"), time.Second)
	obs.AttemptFinished(context.Background(), st, pkgerrors.New(pkgerrors.CodeNotFound, "x"), time.Second)
	obs.Finished(context.Background(), st)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestLoggingObserverAcceptsAllShapes(t *testing.T) {
	obs, err := NewLoggingObserver(logger.Nop())
	require.NoError(t, err)

	st := finishedStatus(NewMatchAllJob(""), enums.JobStateSucceeded, &Result{Batch: &matching.BatchResult{Succeeded: 1}}, nil)
	obs.AttemptStarted(context.Background(), st)
	obs.AttemptFinished(context.Background(), st, errors.New("x"), time.Millisecond)
	obs.AttemptFinished(context.Background(), st, nil, time.Millisecond)
	obs.Finished(context.Background(), st)
	st.Err = errors.New("final")
	obs.Finished(context.Background(), st)

	_, err = NewLoggingObserver(nil)
	require.Error(t, err)
}
