package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// ActivityEntry is an append-only line on a request's timeline.
type ActivityEntry struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID               `gorm:"column:request_id;type:uuid;not null" json:"request_id"`
	EventType enums.ActivityEventType `gorm:"column:event_type;type:text;not null" json:"event_type"`
	Payload   datatypes.JSONMap       `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ActivityEntry) TableName() string { return "request_activities" }
