package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/emlakofis/emlak-backend/internal/analytics/types"
	"github.com/emlakofis/emlak-backend/internal/analytics/writer"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
	"github.com/emlakofis/emlak-backend/pkg/metrics"
)

// LoggingObserver writes one structured line per attempt boundary.
type LoggingObserver struct {
	logg *logger.Logger
}

func NewLoggingObserver(logg *logger.Logger) (*LoggingObserver, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &LoggingObserver{logg: logg}, nil
}

func (o *LoggingObserver) AttemptStarted(ctx context.Context, status Status) {
	o.logg.Info(ctx, "job attempt started")
}

func (o *LoggingObserver) AttemptFinished(ctx context.Context, status Status, err error, took time.Duration) {
	ctx = o.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		ctx = o.logg.WithField(ctx, "retryable", pkgerrors.IsRetryable(err))
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "job attempt failed")
		return
	}
	o.logg.Info(ctx, "job attempt succeeded")
}

func (o *LoggingObserver) Finished(ctx context.Context, status Status) {
	fields := map[string]any{
		"state":       string(status.State),
		"attempts":    status.Attempts,
		"duration_ms": status.Duration().Milliseconds(),
	}
	if status.Result != nil && status.Result.Batch != nil {
		fields["succeeded"] = status.Result.Batch.Succeeded
		fields["failed"] = status.Result.Batch.Failed
	}
	ctx = o.logg.WithFields(ctx, fields)
	if status.Err != nil {
		o.logg.Error(ctx, "job failed", status.Err)
		return
	}
	o.logg.Info(ctx, "job finished")
}

// MetricsObserver feeds the Prometheus job collectors.
type MetricsObserver struct {
	metrics *metrics.JobMetrics
}

func NewMetricsObserver(m *metrics.JobMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) AttemptStarted(context.Context, Status) {}

func (o *MetricsObserver) AttemptFinished(_ context.Context, status Status, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
		if pkgerrors.IsRetryable(err) {
			result = "retryable_error"
		}
	}
	o.metrics.ObserveAttempt(string(status.Job.Kind), result, took)
}

func (o *MetricsObserver) Finished(_ context.Context, status Status) {
	o.metrics.IncTerminal(string(status.Job.Kind), string(status.State))
}

type matchRunInserter interface {
	InsertMatchRun(ctx context.Context, row types.MatchRunRow) error
}

// AnalyticsObserver records one match_runs row per finished job.
type AnalyticsObserver struct {
	writer matchRunInserter
	logg   *logger.Logger
}

func NewAnalyticsObserver(w matchRunInserter, logg *logger.Logger) (*AnalyticsObserver, error) {
	if w == nil {
		return nil, errors.New("analytics writer required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &AnalyticsObserver{writer: w, logg: logg}, nil
}

func (o *AnalyticsObserver) AttemptStarted(context.Context, Status) {}

func (o *AnalyticsObserver) AttemptFinished(context.Context, Status, error, time.Duration) {}

func (o *AnalyticsObserver) Finished(ctx context.Context, status Status) {
	row, err := matchRunRow(status)
	if err != nil {
		o.logg.Error(ctx, "failed to build match run row", err)
		return
	}
	if err := o.writer.InsertMatchRun(context.WithoutCancel(ctx), row); err != nil {
		o.logg.Error(ctx, "failed to record match run", err)
	}
}

func matchRunRow(status Status) (types.MatchRunRow, error) {
	row := types.MatchRunRow{
		JobID:      status.Job.ID.String(),
		Kind:       string(status.Job.Kind),
		State:      string(status.State),
		Attempts:   int64(status.Attempts),
		EnqueuedAt: status.Job.EnqueuedAt,
		StartedAt:  status.StartedAt,
		DurationMs: status.Duration().Milliseconds(),
	}
	if status.FinishedAt != nil {
		row.FinishedAt = *status.FinishedAt
	}
	if status.Job.Kind == enums.JobKindMatchRequest {
		id := status.Job.RequestID.String()
		row.RequestID = &id
	}

	var top *float64
	if res := status.Result; res != nil {
		if m := res.Match; m != nil {
			row.NewMatches = int64(m.Created)
			row.UpdatedMatches = int64(m.Updated)
			row.Deactivated = int64(m.Deactivated)
			row.Processed = 1
			if m.Count > 0 {
				score := m.TopScore
				top = &score
			}
		}
		if b := res.Batch; b != nil {
			row.Processed = int64(b.Succeeded + b.Failed)
			row.Failed = int64(b.Failed)
			for _, r := range b.Results {
				if r.Result == nil {
					continue
				}
				row.NewMatches += int64(r.Result.Created)
				row.UpdatedMatches += int64(r.Result.Updated)
				row.Deactivated += int64(r.Result.Deactivated)
				if r.Result.Count > 0 && (top == nil || r.Result.TopScore > *top) {
					score := r.Result.TopScore
					top = &score
				}
			}
		}
	}
	row.TopScore = top

	if status.Err != nil {
		code := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(status.Err); typed != nil {
			code = string(typed.Code())
		}
		msg := status.Err.Error()
		row.ErrorCode = &code
		row.ErrorMessage = &msg
	}

	payload := map[string]any{}
	if status.Job.Reason != "" {
		payload["reason"] = status.Job.Reason
	}
	if status.Result != nil && status.Result.Match != nil && status.Result.Match.Skipped {
		payload["skipped"] = true
	}
	encoded, err := writer.EncodeJSON(payload)
	if err != nil {
		return types.MatchRunRow{}, err
	}
	row.Payload = encoded
	return row, nil
}
