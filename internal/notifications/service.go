package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/pagination"
)

// Service is the personnel inbox: the in-app channel read back over HTTP.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type ListParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult is one inbox page. UnreadCount covers the whole inbox, not only
// the page.
type ListResult struct {
	Items       []models.Notification `json:"items"`
	Cursor      string                `json:"cursor"`
	UnreadCount int64                 `json:"unread_count"`
}

type inbox struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inbox{repo: repo, now: time.Now}, nil
}

func (s *inbox) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireID(params.RecipientID, "recipient"); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, listNotificationsParams{
		RecipientID: params.RecipientID,
		Limit:       params.Limit,
		Cursor:      cursor,
		UnreadOnly:  params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.RecipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return &ListResult{Items: rows, Cursor: pagination.Token(next), UnreadCount: unread}, nil
}

// MarkRead is idempotent: marking an already read notification succeeds.
func (s *inbox) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if err := requireID(recipientID, "recipient"); err != nil {
		return err
	}
	if err := requireID(notificationID, "notification"); err != nil {
		return err
	}

	result, err := s.repo.MarkRead(ctx, recipientID, notificationID, s.now().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !result.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inbox) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if err := requireID(recipientID, "recipient"); err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func requireID(id uuid.UUID, name string) error {
	if id == uuid.Nil {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s id required", name)
	}
	return nil
}
