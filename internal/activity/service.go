package activity

import (
	"context"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/pagination"
)

// Service reads request timelines.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo Repository
}

// ListParams configures pagination for a request timeline.
type ListParams struct {
	RequestID uuid.UUID
	Limit     int
	Cursor    string
}

// ListResult wraps returned entries and the cursor for the next page.
type ListResult struct {
	Items  []models.ActivityEntry `json:"items"`
	Cursor string                 `json:"cursor"`
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "activity repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	exists, err := s.repo.RequestExists(ctx, params.RequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer request")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer request not found")
	}

	rows, next, err := s.repo.List(ctx, listParams{
		RequestID: params.RequestID,
		Limit:     params.Limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activity entries")
	}

	return &ListResult{Items: rows, Cursor: pagination.Token(next)}, nil
}
