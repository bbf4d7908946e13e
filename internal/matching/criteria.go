package matching

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

// AttributeSpec describes one category-specific attribute a request may
// constrain.
type AttributeSpec struct {
	Type enums.AttributeType
}

// CategorySchema lists the sub-categories and attributes known for a category.
type CategorySchema struct {
	SubCategories []string
	Attributes    map[string]AttributeSpec
}

var (
	attrNumber = AttributeSpec{Type: enums.AttributeTypeNumber}
	attrBool   = AttributeSpec{Type: enums.AttributeTypeBool}
	attrText   = AttributeSpec{Type: enums.AttributeTypeString}
)

// Schemas is the lookup table replacing per-type listing classes.
var Schemas = map[enums.PropertyCategory]CategorySchema{
	enums.PropertyCategoryResidential: {
		SubCategories: []string{"daire", "villa", "mustakil-ev", "rezidans", "yazlik"},
		Attributes: map[string]AttributeSpec{
			"room_count":     attrNumber,
			"bathroom_count": attrNumber,
			"floor":          attrNumber,
			"building_age":   attrNumber,
			"has_elevator":   attrBool,
			"has_parking":    attrBool,
			"is_furnished":   attrBool,
			"in_complex":     attrBool,
			"heating":        attrText,
		},
	},
	enums.PropertyCategoryCommercial: {
		SubCategories: []string{"dukkan", "ofis", "depo", "plaza"},
		Attributes: map[string]AttributeSpec{
			"floor":       attrNumber,
			"frontage":    attrNumber,
			"room_count":  attrNumber,
			"has_parking": attrBool,
			"usage":       attrText,
		},
	},
	enums.PropertyCategoryLand: {
		SubCategories: []string{"arsa", "tarla", "bag-bahce", "zeytinlik"},
		Attributes: map[string]AttributeSpec{
			"zoning_status": attrText,
			"title_deed":    attrText,
			"frontage":      attrNumber,
			"floor_ratio":   attrNumber,
			"has_road":      attrBool,
		},
	},
	enums.PropertyCategoryIndustrial: {
		SubCategories: []string{"fabrika", "atolye", "imalathane"},
		Attributes: map[string]AttributeSpec{
			"ceiling_height": attrNumber,
			"power_kw":       attrNumber,
			"loading_docks":  attrNumber,
			"has_crane":      attrBool,
			"zone":           attrText,
		},
	},
	enums.PropertyCategoryTouristic: {
		SubCategories: []string{"otel", "apart-otel", "pansiyon", "tatil-koyu"},
		Attributes: map[string]AttributeSpec{
			"room_count":    attrNumber,
			"bed_count":     attrNumber,
			"star_rating":   attrNumber,
			"sea_distance":  attrNumber,
			"has_pool":      attrBool,
			"license_class": attrText,
		},
	},
}

// criteriaInput is the validator/v10 view of a request's criteria.
type criteriaInput struct {
	Category            enums.PropertyCategory      `json:"category" validate:"required,oneof=land commercial residential industrial touristic"`
	Currency            enums.Currency              `json:"currency" validate:"required,oneof=TRY USD EUR GBP"`
	MinArea             *float64                    `json:"min_area" validate:"omitempty,gte=0"`
	MaxArea             *float64                    `json:"max_area" validate:"omitempty,gte=0"`
	LocationPreferences []models.LocationPreference `json:"location_preferences" validate:"dive"`
	SpecialRequirements []models.SpecialRequirement `json:"special_requirements" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateCriteria rejects requests whose criteria cannot be evaluated
// meaningfully: inverted ranges, unknown categories, or special requirements
// that do not fit the category's attribute schema.
func ValidateCriteria(req *models.CustomerRequest) error {
	if req == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request is required")
	}

	details := map[string]string{}
	input := criteriaInput{
		Category:            req.Category,
		Currency:            req.Currency,
		MinArea:             req.MinArea,
		MaxArea:             req.MaxArea,
		LocationPreferences: req.LocationPreferences,
		SpecialRequirements: req.SpecialRequirements,
	}
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Namespace()] = fmt.Sprintf("failed %s", fe.Tag())
			}
		} else {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid criteria")
		}
	}

	if req.MinArea != nil && req.MaxArea != nil && *req.MinArea > *req.MaxArea {
		details["area"] = "min must not exceed max"
	}
	if req.MinPrice.Valid && req.MaxPrice.Valid && req.MinPrice.Decimal.GreaterThan(req.MaxPrice.Decimal) {
		details["price"] = "min must not exceed max"
	}
	if req.MinPrice.Valid && req.MinPrice.Decimal.IsNegative() {
		details["min_price"] = "must not be negative"
	}

	schema, known := Schemas[req.Category]
	if known && req.SubCategory != nil && *req.SubCategory != "" && !containsFold(schema.SubCategories, *req.SubCategory) {
		details["sub_category"] = fmt.Sprintf("unknown sub-category for %s", req.Category)
	}
	if known {
		for i, rqm := range req.SpecialRequirements {
			if msg := checkRequirement(schema, rqm); msg != "" {
				details[fmt.Sprintf("special_requirements[%d]", i)] = msg
			}
		}
	}

	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid criteria").WithDetails(details)
	}
	return nil
}

func checkRequirement(schema CategorySchema, rqm models.SpecialRequirement) string {
	spec, ok := schema.Attributes[rqm.Key]
	if !ok {
		return fmt.Sprintf("unknown attribute %q", rqm.Key)
	}
	switch spec.Type {
	case enums.AttributeTypeNumber:
		if _, err := decimal.NewFromString(strings.TrimSpace(rqm.Value)); err != nil {
			return "value must be numeric"
		}
	case enums.AttributeTypeBool:
		if rqm.Op != enums.RequirementOpEq {
			return "boolean attributes only support eq"
		}
		if _, err := strconv.ParseBool(strings.TrimSpace(rqm.Value)); err != nil {
			return "value must be true or false"
		}
	case enums.AttributeTypeString:
		if rqm.Op != enums.RequirementOpEq {
			return "text attributes only support eq"
		}
	}
	return ""
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if equalTR(v, target) {
			return true
		}
	}
	return false
}
