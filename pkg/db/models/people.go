package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is read-only here; it supplies names for notification copy.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName  string    `gorm:"column:full_name;type:text;not null"`
	Email     *string   `gorm:"column:email;type:text"`
	Phone     *string   `gorm:"column:phone;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Customer) TableName() string { return "customers" }

// Personnel is an office agent; requests are assigned to one and
// notifications are addressed to them.
type Personnel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName  string    `gorm:"column:full_name;type:text;not null"`
	Email     string    `gorm:"column:email;type:text;not null"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Personnel) TableName() string { return "personnel" }
