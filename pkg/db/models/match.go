package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// ScoreBreakdown records, per evaluated criterion, whether it was satisfied.
type ScoreBreakdown map[string]bool

// Match (eşleştirme) links one request to one property with a score.
// At most one active row exists per (request, property).
type Match struct {
	ID               uuid.UUID                          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RequestID        uuid.UUID                          `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	PropertyID       uuid.UUID                          `gorm:"column:property_id;type:uuid;not null" json:"property_id"`
	Score            float64                            `gorm:"column:score;type:numeric(5,4);not null" json:"score"`
	Breakdown        datatypes.JSONType[ScoreBreakdown] `gorm:"column:breakdown;type:jsonb;not null" json:"breakdown"`
	Status           enums.MatchStatus                  `gorm:"column:status;type:match_status;not null" json:"status"`
	PersonnelNote    *string                            `gorm:"column:personnel_note;type:text" json:"personnel_note,omitempty"`
	PresentedAt      *time.Time                         `gorm:"column:presented_at" json:"presented_at,omitempty"`
	PresentedBy      *uuid.UUID                         `gorm:"column:presented_by;type:uuid" json:"presented_by,omitempty"`
	CustomerFeedback *string                            `gorm:"column:customer_feedback;type:text" json:"customer_feedback,omitempty"`
	IsActive         bool                               `gorm:"column:is_active;not null" json:"is_active"`
	DeactivatedAt    *time.Time                         `gorm:"column:deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt        time.Time                          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string { return "request_property_matches" }

// ActiveMatchPairIndex is the partial unique index keeping one active match
// per (request, property) pair.
const ActiveMatchPairIndex = "idx_request_property_matches_active_pair"
