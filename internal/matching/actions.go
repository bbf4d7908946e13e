package matching

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// Actions applies personnel workflow steps to matches: present to the
// customer, then accept or reject.
type Actions struct {
	repo     Repository
	locker   Locker
	notifier Notifier
	activity ActivityAppender
	logg     *logger.Logger
	now      func() time.Time
}

type ActionsParams struct {
	Repo     Repository
	Locker   Locker
	Notifier Notifier
	Activity ActivityAppender
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewActions(params ActionsParams) (*Actions, error) {
	if params.Repo == nil {
		return nil, errors.New("matching repository required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity writer required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Actions{
		repo:     params.Repo,
		locker:   locker,
		notifier: params.Notifier,
		activity: params.Activity,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// ListForRequest returns the active matches of a request, best score first.
func (a *Actions) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]models.Match, error) {
	req, err := a.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer request")
	}
	if req == nil || req.IsDeleted() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer request not found")
	}
	matches, err := a.repo.ListActiveMatches(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active matches")
	}
	return matches, nil
}

// Present records that personnelID showed the property to the customer.
func (a *Actions) Present(ctx context.Context, matchID, personnelID uuid.UUID, note string) (*models.Match, error) {
	if personnelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "personnel id required")
	}
	return a.transition(ctx, matchID, enums.MatchStatusPresented, func(m *models.Match, now time.Time) {
		m.PresentedAt = &now
		m.PresentedBy = &personnelID
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			m.PersonnelNote = &trimmed
		}
	})
}

func (a *Actions) Accept(ctx context.Context, matchID uuid.UUID, feedback string) (*models.Match, error) {
	return a.transition(ctx, matchID, enums.MatchStatusAccepted, withFeedback(feedback))
}

func (a *Actions) Reject(ctx context.Context, matchID uuid.UUID, feedback string) (*models.Match, error) {
	return a.transition(ctx, matchID, enums.MatchStatusRejected, withFeedback(feedback))
}

func withFeedback(feedback string) func(*models.Match, time.Time) {
	return func(m *models.Match, _ time.Time) {
		if trimmed := strings.TrimSpace(feedback); trimmed != "" {
			m.CustomerFeedback = &trimmed
		}
	}
}

func (a *Actions) transition(ctx context.Context, matchID uuid.UUID, next enums.MatchStatus, mutate func(*models.Match, time.Time)) (*models.Match, error) {
	if matchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "match id required")
	}

	match, err := a.loadActive(ctx, matchID)
	if err != nil {
		return nil, err
	}

	// Same lock as the engine so a re-match cannot deactivate the row mid-update.
	release, err := a.locker.Lock(ctx, match.RequestID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	match, err = a.loadActive(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "match cannot move from "+string(match.Status)+" to "+string(next)).
			WithDetails(map[string]any{"status": match.Status, "requested": next})
	}

	now := a.now().UTC()
	match.Status = next
	match.UpdatedAt = now
	mutate(match, now)

	if err := a.repo.UpdateMatchWorkflow(ctx, match); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update match workflow")
	}

	ctx = a.logg.WithFields(ctx, map[string]any{
		"customer_request_id": match.RequestID.String(),
		"match_id":            match.ID.String(),
		"status":              string(next),
	})

	notifType, activityType := workflowEventTypes(next)
	payload := map[string]any{
		"match_id":    match.ID.String(),
		"property_id": match.PropertyID.String(),
		"score":       match.Score,
	}
	if match.PresentedBy != nil {
		payload["presented_by"] = match.PresentedBy.String()
	}
	if match.PersonnelNote != nil && next == enums.MatchStatusPresented {
		payload["note"] = *match.PersonnelNote
	}
	if match.CustomerFeedback != nil && next != enums.MatchStatusPresented {
		payload["feedback"] = *match.CustomerFeedback
	}
	a.activity.Append(ctx, match.RequestID, activityType, payload)

	id := match.ID
	if err := a.notifier.Notify(ctx, notifications.Event{
		Type:       notifType,
		RequestID:  match.RequestID,
		MatchID:    &id,
		OccurredAt: now,
	}); err != nil {
		a.logg.Error(ctx, "failed to queue notification", err)
	}

	a.logg.Info(ctx, "match status updated")
	return match, nil
}

func (a *Actions) loadActive(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	match, err := a.repo.FindActiveMatch(ctx, matchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load match")
	}
	if match == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "match not found")
	}
	return match, nil
}

func workflowEventTypes(status enums.MatchStatus) (enums.NotificationType, enums.ActivityEventType) {
	switch status {
	case enums.MatchStatusPresented:
		return enums.NotificationTypeMatchPresented, enums.ActivityMatchPresented
	case enums.MatchStatusAccepted:
		return enums.NotificationTypeMatchAccepted, enums.ActivityMatchAccepted
	default:
		return enums.NotificationTypeMatchRejected, enums.ActivityMatchRejected
	}
}
