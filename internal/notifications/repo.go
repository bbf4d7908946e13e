package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	"github.com/emlakofis/emlak-backend/pkg/pagination"
)

// Repository persists notifications and per-channel preferences.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
	FindPreference(ctx context.Context, recipientID uuid.UUID, channel enums.NotificationChannel) (*models.NotificationPreference, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
	UnreadOnly  bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.inbox(ctx, params.RecipientID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *repositoryImpl) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.inbox(ctx, recipientID).Where("read_at IS NULL").Count(&count).Error
	return count, err
}

// MarkRead stamps read_at once. Found is false when the notification does not
// exist or belongs to someone else.
func (r *repositoryImpl) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	var row models.Notification
	err := r.inbox(ctx, recipientID).Select("id", "read_at").Where("id = ?", notificationID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notificationMarkResult{}, nil
	case err != nil:
		return notificationMarkResult{}, err
	case row.ReadAt != nil:
		return notificationMarkResult{Found: true}, nil
	}

	result := r.inbox(ctx, recipientID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}
	return notificationMarkResult{Found: true, Updated: result.RowsAffected > 0}, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	result := r.inbox(ctx, recipientID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) inbox(ctx context.Context, recipientID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
}

// DeleteReadBefore removes up to limit read notifications created before
// cutoff, oldest first. Unread ones are kept regardless of age. A limit of
// zero removes every match.
func (r *repositoryImpl) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	conn = conn.WithContext(ctx)
	expired := conn.Model(&models.Notification{}).Where("read_at IS NOT NULL AND created_at < ?", cutoff)
	if limit > 0 {
		batch := expired.Select("id").Order("created_at").Limit(limit)
		expired = conn.Where("id IN (?)", batch)
	}
	result := expired.Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// FindPreference returns (nil, nil) when the recipient never set the channel.
func (r *repositoryImpl) FindPreference(ctx context.Context, recipientID uuid.UUID, channel enums.NotificationChannel) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND channel = ?", recipientID, channel).
		Take(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}
