package cron

import (
	"context"
	"fmt"

	"github.com/emlakofis/emlak-backend/internal/jobs"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const matchAllReason = "cron"

type jobExecutor interface {
	Execute(ctx context.Context, job jobs.Job) (jobs.Status, error)
}

type MatchAllJobParams struct {
	Logger     *logger.Logger
	Dispatcher jobExecutor
}

// NewMatchAllJob re-runs matching for every open request through the job
// dispatcher so retries, metrics and analytics apply like any other job.
func NewMatchAllJob(params MatchAllJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("job dispatcher required")
	}
	return &matchAllJob{logg: params.Logger, dispatcher: params.Dispatcher}, nil
}

type matchAllJob struct {
	logg       *logger.Logger
	dispatcher jobExecutor
}

func (j *matchAllJob) Name() string { return "match-all" }

func (j *matchAllJob) Run(ctx context.Context) error {
	status, err := j.dispatcher.Execute(ctx, jobs.NewMatchAllJob(matchAllReason))
	if err != nil {
		return fmt.Errorf("match all: %w", err)
	}
	fields := map[string]any{
		"job_id":   status.Job.ID.String(),
		"attempts": status.Attempts,
	}
	if status.Result != nil && status.Result.Batch != nil {
		fields["requests_succeeded"] = status.Result.Batch.Succeeded
		fields["requests_failed"] = status.Result.Batch.Failed
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "match all complete")
	return nil
}
