package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Property (mülk) is a listing in the portfolio. Category-specific fields live
// in Attributes as key/value rows.
type Property struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Category       enums.PropertyCategory `gorm:"column:category;type:property_category;not null"`
	SubCategory    *string                `gorm:"column:sub_category;type:text"`
	Title          string                 `gorm:"column:title;type:text;not null"`
	Price          decimal.NullDecimal    `gorm:"column:price;type:numeric(14,2)"`
	Currency       enums.Currency         `gorm:"column:currency;type:text;not null"`
	Area           *float64               `gorm:"column:area;type:numeric(12,2)"`
	Status         enums.PropertyStatus   `gorm:"column:status;type:property_status;not null"`
	CityID         *uuid.UUID             `gorm:"column:city_id;type:uuid"`
	DistrictID     *uuid.UUID             `gorm:"column:district_id;type:uuid"`
	SubdistrictID  *uuid.UUID             `gorm:"column:subdistrict_id;type:uuid"`
	NeighborhoodID *uuid.UUID             `gorm:"column:neighborhood_id;type:uuid"`
	PublishedAt    *time.Time             `gorm:"column:published_at"`
	IsActive       bool                   `gorm:"column:is_active;not null"`
	SortOrder      int                    `gorm:"column:sort_order;not null"`
	DeletedAt      *time.Time             `gorm:"column:deleted_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Attributes []PropertyAttribute `gorm:"foreignKey:PropertyID"`
}

func (Property) TableName() string { return "properties" }

// IsListed reports whether the property is available for matching.
func (p Property) IsListed() bool {
	return p.IsActive && p.Status == enums.PropertyStatusActive && p.DeletedAt == nil
}

// AttributeMap flattens the attribute rows into a lookup table.
func (p Property) AttributeMap() map[string]string {
	out := make(map[string]string, len(p.Attributes))
	for _, attr := range p.Attributes {
		out[attr.Key] = attr.Value
	}
	return out
}

// PropertyAttribute stores one category-specific value of a property.
type PropertyAttribute struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID uuid.UUID `gorm:"column:property_id;type:uuid;not null"`
	Key        string    `gorm:"column:key;type:text;not null"`
	Value      string    `gorm:"column:value;type:text;not null"`
}

func (PropertyAttribute) TableName() string { return "property_attributes" }
