package enums

// PropertyCategory is the top-level listing taxonomy (property_category in Postgres).
type PropertyCategory string

const (
	PropertyCategoryLand        PropertyCategory = "land"
	PropertyCategoryCommercial  PropertyCategory = "commercial"
	PropertyCategoryResidential PropertyCategory = "residential"
	PropertyCategoryIndustrial  PropertyCategory = "industrial"
	PropertyCategoryTouristic   PropertyCategory = "touristic"
)

var propertyCategories = newSet("property category",
	PropertyCategoryLand,
	PropertyCategoryCommercial,
	PropertyCategoryResidential,
	PropertyCategoryIndustrial,
	PropertyCategoryTouristic,
)

func (c PropertyCategory) String() string { return string(c) }

func (c PropertyCategory) IsValid() bool { return propertyCategories.has(c) }

func ParsePropertyCategory(value string) (PropertyCategory, error) {
	return propertyCategories.parse(value)
}

// PropertyStatus tracks listing availability. Only active listings match.
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusInactive PropertyStatus = "inactive"
	PropertyStatusSold     PropertyStatus = "sold"
	PropertyStatusRented   PropertyStatus = "rented"
)

var propertyStatuses = newSet("property status",
	PropertyStatusActive,
	PropertyStatusInactive,
	PropertyStatusSold,
	PropertyStatusRented,
)

func (s PropertyStatus) IsValid() bool { return propertyStatuses.has(s) }

func ParsePropertyStatus(value string) (PropertyStatus, error) {
	return propertyStatuses.parse(value)
}
