package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// LocationPreference narrows a request to a place. Deeper levels are optional;
// a preference matches a property when every level it sets is equal.
type LocationPreference struct {
	CityID         uuid.UUID  `json:"city_id" validate:"required"`
	DistrictID     *uuid.UUID `json:"district_id,omitempty"`
	SubdistrictID  *uuid.UUID `json:"subdistrict_id,omitempty"`
	NeighborhoodID *uuid.UUID `json:"neighborhood_id,omitempty"`
}

// SpecialRequirement is a typed constraint on a category-specific attribute,
// e.g. {"key":"room_count","op":"min","value":"3"}.
type SpecialRequirement struct {
	Key   string              `json:"key" validate:"required"`
	Op    enums.RequirementOp `json:"op" validate:"required,oneof=eq min max"`
	Value string              `json:"value" validate:"required"`
}

// CustomerRequest (talep) holds a customer's search criteria.
type CustomerRequest struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID  uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	PersonnelID *uuid.UUID             `gorm:"column:personnel_id;type:uuid"`
	Category    enums.PropertyCategory `gorm:"column:category;type:property_category;not null"`
	SubCategory *string                `gorm:"column:sub_category;type:text"`

	MinArea  *float64            `gorm:"column:min_area;type:numeric(12,2)"`
	MaxArea  *float64            `gorm:"column:max_area;type:numeric(12,2)"`
	MinPrice decimal.NullDecimal `gorm:"column:min_price;type:numeric(14,2)"`
	MaxPrice decimal.NullDecimal `gorm:"column:max_price;type:numeric(14,2)"`
	Currency enums.Currency      `gorm:"column:currency;type:text;not null"`

	LocationPreferences datatypes.JSONSlice[LocationPreference] `gorm:"column:location_preferences;type:jsonb"`
	SpecialRequirements datatypes.JSONSlice[SpecialRequirement] `gorm:"column:special_requirements;type:jsonb"`

	Status         enums.RequestStatus   `gorm:"column:status;type:request_status;not null"`
	Priority       enums.RequestPriority `gorm:"column:priority;type:request_priority;not null"`
	TargetDate     *time.Time            `gorm:"column:target_date"`
	LastFollowUpAt *time.Time            `gorm:"column:last_follow_up_at"`
	DeletedAt      *time.Time            `gorm:"column:deleted_at"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomerRequest) TableName() string { return "customer_requests" }

// IsDeleted reports whether the request carries a soft-delete marker.
func (r CustomerRequest) IsDeleted() bool {
	return r.DeletedAt != nil
}
