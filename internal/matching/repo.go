package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Repository exposes the persistence the matching engine needs. Soft-delete
// and active flags are filtered explicitly on every read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRequest(ctx context.Context, id uuid.UUID) (*models.CustomerRequest, error)
	ListMatchableRequestIDs(ctx context.Context) ([]uuid.UUID, error)
	ListCandidateProperties(ctx context.Context, category enums.PropertyCategory) ([]models.Property, error)
	ListActiveMatches(ctx context.Context, requestID uuid.UUID) ([]models.Match, error)
	FindActiveMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	CreateMatch(ctx context.Context, match *models.Match) error
	UpdateMatchScore(ctx context.Context, id uuid.UUID, score float64, breakdown models.ScoreBreakdown, now time.Time) error
	UpdateMatchWorkflow(ctx context.Context, match *models.Match) error
	DeactivateMatches(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a matching repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// FindRequest returns the request including soft-deleted rows; callers decide
// what a deleted request means for them. A missing row yields (nil, nil).
func (r *repositoryImpl) FindRequest(ctx context.Context, id uuid.UUID) (*models.CustomerRequest, error) {
	var req models.CustomerRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repositoryImpl) ListMatchableRequestIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.CustomerRequest{}).
		Where("status IN ? AND deleted_at IS NULL", enums.MatchableRequestStatuses).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repositoryImpl) ListCandidateProperties(ctx context.Context, category enums.PropertyCategory) ([]models.Property, error) {
	var props []models.Property
	err := r.db.WithContext(ctx).
		Preload("Attributes").
		Where("category = ? AND is_active = ? AND status = ? AND deleted_at IS NULL",
			category, true, enums.PropertyStatusActive).
		Order("sort_order ASC, id ASC").
		Find(&props).Error
	return props, err
}

func (r *repositoryImpl) ListActiveMatches(ctx context.Context, requestID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND is_active = ?", requestID, true).
		Order("score DESC, id ASC").
		Find(&matches).Error
	return matches, err
}

// FindActiveMatch returns (nil, nil) when no active match carries the id.
func (r *repositoryImpl) FindActiveMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		Take(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *repositoryImpl) CreateMatch(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// UpdateMatchScore refreshes only engine-owned columns; personnel fields stay untouched.
func (r *repositoryImpl) UpdateMatchScore(ctx context.Context, id uuid.UUID, score float64, breakdown models.ScoreBreakdown, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumns(map[string]any{
			"score":      score,
			"breakdown":  datatypes.NewJSONType(breakdown),
			"updated_at": now,
		}).Error
}

// UpdateMatchWorkflow persists personnel-owned columns.
func (r *repositoryImpl) UpdateMatchWorkflow(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND is_active = ?", match.ID, true).
		UpdateColumns(map[string]any{
			"status":            match.Status,
			"personnel_note":    match.PersonnelNote,
			"presented_at":      match.PresentedAt,
			"presented_by":      match.PresentedBy,
			"customer_feedback": match.CustomerFeedback,
			"updated_at":        match.UpdatedAt,
		}).Error
}

func (r *repositoryImpl) DeactivateMatches(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id IN ? AND is_active = ?", ids, true).
		UpdateColumns(map[string]any{
			"is_active":      false,
			"deactivated_at": now,
			"updated_at":     now,
		})
	return result.RowsAffected, result.Error
}
