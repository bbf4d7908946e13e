package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/internal/matching"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

// Job is one unit of matching work.
type Job struct {
	ID   uuid.UUID
	Kind enums.JobKind
	// RequestID is set for match-request jobs only.
	RequestID  uuid.UUID
	Reason     string
	EnqueuedAt time.Time
}

func NewMatchRequestJob(requestID uuid.UUID, reason string) Job {
	return Job{ID: uuid.New(), Kind: enums.JobKindMatchRequest, RequestID: requestID, Reason: reason}
}

func NewMatchAllJob(reason string) Job {
	return Job{ID: uuid.New(), Kind: enums.JobKindMatchAll, Reason: reason}
}

func (j Job) validate() error {
	if !j.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown job kind").
			WithDetails(map[string]any{"kind": j.Kind})
	}
	if j.Kind == enums.JobKindMatchRequest && j.RequestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "match-request job needs a request id")
	}
	return nil
}

// Result holds what the engine returned for the job's last attempt.
type Result struct {
	Match *matching.MatchResult
	Batch *matching.BatchResult
}

// Status is a snapshot of a job's state machine.
type Status struct {
	Job        Job
	State      enums.JobState
	Attempts   int
	StartedAt  *time.Time
	FinishedAt *time.Time
	Result     *Result
	Err        error
}

// Duration is the wall time from first start to finish, zero while running.
func (s Status) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}
