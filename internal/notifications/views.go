package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
)

// ViewLoader assembles the read-models an event needs before rendering, so
// templates never reach into the database.
type ViewLoader interface {
	Load(ctx context.Context, event Event) (*Views, error)
}

type gormViewLoader struct {
	db *gorm.DB
}

func NewViewLoader(db *gorm.DB) ViewLoader {
	return &gormViewLoader{db: db}
}

// Load returns (nil, nil) when the request no longer exists. Views.Recipient
// is nil when no personnel member is assigned.
func (l *gormViewLoader) Load(ctx context.Context, event Event) (*Views, error) {
	conn := l.db.WithContext(ctx)

	var req models.CustomerRequest
	if err := conn.Where("id = ?", event.RequestID).Take(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	views := &Views{Request: RequestView{
		ID:       req.ID,
		Category: req.Category,
		Status:   req.Status,
		Priority: req.Priority,
	}}
	if req.SubCategory != nil {
		views.Request.SubCategory = *req.SubCategory
	}

	var customer models.Customer
	err := conn.Where("id = ?", req.CustomerID).Take(&customer).Error
	switch {
	case err == nil:
		views.Request.CustomerName = customer.FullName
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if req.PersonnelID != nil {
		recipient, err := l.recipient(ctx, *req.PersonnelID)
		if err != nil {
			return nil, err
		}
		views.Recipient = recipient
	}

	if event.MatchID != nil {
		match, err := l.match(ctx, *event.MatchID)
		if err != nil {
			return nil, err
		}
		views.Match = match
	}
	return views, nil
}

func (l *gormViewLoader) recipient(ctx context.Context, personnelID uuid.UUID) (*Recipient, error) {
	var p models.Personnel
	err := l.db.WithContext(ctx).Where("id = ? AND is_active = ?", personnelID, true).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Recipient{ID: p.ID, FullName: p.FullName, Email: p.Email}, nil
}

// match loads inactive rows too; a workflow event may race a re-match.
func (l *gormViewLoader) match(ctx context.Context, matchID uuid.UUID) (*MatchView, error) {
	var m models.Match
	err := l.db.WithContext(ctx).Where("id = ?", matchID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	view := &MatchView{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		Score:      m.Score,
		Status:     m.Status,
	}
	if m.PersonnelNote != nil {
		view.PersonnelNote = *m.PersonnelNote
	}
	if m.CustomerFeedback != nil {
		view.CustomerFeedback = *m.CustomerFeedback
	}

	var prop models.Property
	err = l.db.WithContext(ctx).Select("id", "title").Where("id = ?", m.PropertyID).Take(&prop).Error
	switch {
	case err == nil:
		view.PropertyTitle = prop.Title
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return view, nil
}
