package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// timelineMessage is the copy personnel see on the request timeline.
const timelineMessage = "eşleştirme hatası"

type activityAppender interface {
	Append(ctx context.Context, requestID uuid.UUID, eventType enums.ActivityEventType, payload map[string]any)
}

// ActivityFailureHandler puts terminal failures of single-request jobs on the
// request's timeline. Match-all failures are only logged; per-request
// failures inside a batch are already recorded by the engine.
type ActivityFailureHandler struct {
	activity activityAppender
	logg     *logger.Logger
}

func NewActivityFailureHandler(activity activityAppender, logg *logger.Logger) (*ActivityFailureHandler, error) {
	if activity == nil {
		return nil, errors.New("activity writer required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &ActivityFailureHandler{activity: activity, logg: logg}, nil
}

func (h *ActivityFailureHandler) Failed(ctx context.Context, status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logg.Error(ctx, "job failure handler panicked", fmt.Errorf("panic: %v", r))
		}
	}()

	if status.Job.Kind != enums.JobKindMatchRequest {
		h.logg.Warn(ctx, "match-all job failed; no request timeline to update")
		return
	}

	payload := map[string]any{
		"message":  timelineMessage,
		"attempts": status.Attempts,
		"job_id":   status.Job.ID.String(),
	}
	if err != nil {
		payload["error"] = err.Error()
		if typed := pkgerrors.As(err); typed != nil {
			payload["code"] = string(typed.Code())
		}
	}
	h.activity.Append(ctx, status.Job.RequestID, enums.ActivityMatchError, payload)
}
