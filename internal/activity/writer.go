package activity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// Writer appends entries to request timelines. Append never returns an
// error: a missing request is logged as a warning and store failures are
// logged as errors.
type Writer struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

type WriterParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

func NewWriter(params WriterParams) (*Writer, error) {
	if params.Repo == nil {
		return nil, errors.New("activity repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Writer{repo: params.Repo, logg: params.Logger, now: now}, nil
}

func (w *Writer) Append(ctx context.Context, requestID uuid.UUID, eventType enums.ActivityEventType, payload map[string]any) {
	ctx = w.logg.WithFields(ctx, map[string]any{
		"customer_request_id": requestID.String(),
		"activity_type":       string(eventType),
	})

	exists, err := w.repo.RequestExists(ctx, requestID)
	if err != nil {
		w.logg.Error(ctx, "activity request lookup failed", err)
		return
	}
	if !exists {
		w.logg.Warn(ctx, "activity skipped: customer request not found")
		return
	}

	if payload == nil {
		payload = map[string]any{}
	}
	entry := &models.ActivityEntry{
		ID:        uuid.New(),
		RequestID: requestID,
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: w.now().UTC(),
	}
	if err := w.repo.Create(ctx, entry); err != nil {
		w.logg.Error(ctx, "failed to append activity entry", err)
	}
}
