package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/pagination"
)

// Repository persists timeline entries. Entries are append-only, so it has
// no update or delete.
type Repository interface {
	RequestExists(ctx context.Context, requestID uuid.UUID) (bool, error)
	Create(ctx context.Context, entry *models.ActivityEntry) error
	List(ctx context.Context, params listParams) ([]models.ActivityEntry, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listParams struct {
	RequestID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

// RequestExists ignores the soft-delete marker; deleted requests keep their timeline.
func (r *repositoryImpl) RequestExists(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CustomerRequest{}).
		Where("id = ?", requestID).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) Create(ctx context.Context, entry *models.ActivityEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.ActivityEntry, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ActivityEntry{}).
		Where("request_id = ?", params.RequestID)

	var rows []models.ActivityEntry
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(e models.ActivityEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}
