package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to personnel.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null" json:"recipient_id"`
	Type        enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title       string                 `gorm:"column:title;type:text;not null" json:"title"`
	Body        string                 `gorm:"column:body;type:text;not null" json:"body"`
	RequestID   *uuid.UUID             `gorm:"column:request_id;type:uuid" json:"request_id,omitempty"`
	MatchID     *uuid.UUID             `gorm:"column:match_id;type:uuid" json:"match_id,omitempty"`
	Score       *float64               `gorm:"column:score;type:numeric(5,4)" json:"score,omitempty"`
	Extra       datatypes.JSONMap      `gorm:"column:extra;type:jsonb" json:"extra,omitempty"`
	ReadAt      *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationPreference is a per-recipient channel switch. A missing row
// means the channel is enabled.
type NotificationPreference struct {
	RecipientID uuid.UUID                 `gorm:"column:recipient_id;type:uuid;primaryKey"`
	Channel     enums.NotificationChannel `gorm:"column:channel;type:text;primaryKey"`
	Enabled     bool                      `gorm:"column:enabled;not null"`
	UpdatedAt   time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (NotificationPreference) TableName() string { return "notification_preferences" }
