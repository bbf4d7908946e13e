package matching

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Criterion names used as breakdown keys.
const (
	CriterionCategory = "category"
	CriterionArea     = "area"
	CriterionPrice    = "price"
	CriterionLocation = "location"
	CriterionSpecial  = "special_requirements"
)

// Weights assigns each criterion its share of the score. Only criteria the
// request actually sets take part in the denominator.
type Weights struct {
	Category float64
	Area     float64
	Price    float64
	Location float64
	Special  float64
}

// DefaultWeights sum to 1.0.
var DefaultWeights = Weights{
	Category: 0.20,
	Area:     0.20,
	Price:    0.25,
	Location: 0.20,
	Special:  0.15,
}

// Evaluation is the outcome of scoring one request against one property.
type Evaluation struct {
	Score     float64
	Breakdown models.ScoreBreakdown
}

// Evaluator scores properties against request criteria. It is pure: no I/O,
// and identical inputs always produce identical output.
type Evaluator struct {
	weights Weights
	schemas map[enums.PropertyCategory]CategorySchema
}

func NewEvaluator(weights Weights) Evaluator {
	return Evaluator{weights: weights, schemas: Schemas}
}

// Evaluate scores prop against req with DefaultWeights.
func Evaluate(req *models.CustomerRequest, prop *models.Property) Evaluation {
	return NewEvaluator(DefaultWeights).Evaluate(req, prop)
}

func (e Evaluator) Evaluate(req *models.CustomerRequest, prop *models.Property) Evaluation {
	if req == nil || prop == nil || !categoryMatches(req, prop) {
		return Evaluation{Score: 0, Breakdown: models.ScoreBreakdown{CriterionCategory: false}}
	}

	breakdown := models.ScoreBreakdown{CriterionCategory: true}
	total := e.weights.Category
	earned := e.weights.Category

	apply := func(name string, weight float64, ok bool) {
		breakdown[name] = ok
		total += weight
		if ok {
			earned += weight
		}
	}

	if req.MinArea != nil || req.MaxArea != nil {
		apply(CriterionArea, e.weights.Area, areaMatches(req, prop))
	}
	if req.MinPrice.Valid || req.MaxPrice.Valid {
		apply(CriterionPrice, e.weights.Price, priceMatches(req, prop))
	}
	if len(req.LocationPreferences) > 0 {
		apply(CriterionLocation, e.weights.Location, locationMatches(req.LocationPreferences, prop))
	}
	if len(req.SpecialRequirements) > 0 {
		apply(CriterionSpecial, e.weights.Special, e.requirementsMatch(req.Category, req.SpecialRequirements, prop.AttributeMap()))
	}

	if total <= 0 {
		return Evaluation{Score: 0, Breakdown: breakdown}
	}
	return Evaluation{Score: roundScore(earned / total), Breakdown: breakdown}
}

// PassesPrefilter is the cheap check run before evaluation: the property must
// be listed and share the request's top-level category.
func PassesPrefilter(req *models.CustomerRequest, prop *models.Property) bool {
	if req == nil || prop == nil {
		return false
	}
	return prop.IsListed() && prop.Category == req.Category
}

func categoryMatches(req *models.CustomerRequest, prop *models.Property) bool {
	if prop.Category != req.Category {
		return false
	}
	if req.SubCategory == nil || strings.TrimSpace(*req.SubCategory) == "" {
		return true
	}
	if prop.SubCategory == nil {
		return false
	}
	return equalTR(*prop.SubCategory, *req.SubCategory)
}

func areaMatches(req *models.CustomerRequest, prop *models.Property) bool {
	if prop.Area == nil {
		return false
	}
	area := *prop.Area
	if req.MinArea != nil && area < *req.MinArea {
		return false
	}
	if req.MaxArea != nil && area > *req.MaxArea {
		return false
	}
	return true
}

func priceMatches(req *models.CustomerRequest, prop *models.Property) bool {
	if !prop.Price.Valid || prop.Currency != req.Currency {
		return false
	}
	price := prop.Price.Decimal
	if req.MinPrice.Valid && price.LessThan(req.MinPrice.Decimal) {
		return false
	}
	if req.MaxPrice.Valid && price.GreaterThan(req.MaxPrice.Decimal) {
		return false
	}
	return true
}

func locationMatches(prefs []models.LocationPreference, prop *models.Property) bool {
	for _, pref := range prefs {
		if !sameID(&pref.CityID, prop.CityID) {
			continue
		}
		if pref.DistrictID != nil && !sameID(pref.DistrictID, prop.DistrictID) {
			continue
		}
		if pref.SubdistrictID != nil && !sameID(pref.SubdistrictID, prop.SubdistrictID) {
			continue
		}
		if pref.NeighborhoodID != nil && !sameID(pref.NeighborhoodID, prop.NeighborhoodID) {
			continue
		}
		return true
	}
	return false
}

func sameID(want, have *uuid.UUID) bool {
	return want != nil && have != nil && *want == *have
}

func (e Evaluator) requirementsMatch(category enums.PropertyCategory, reqs []models.SpecialRequirement, attrs map[string]string) bool {
	schema, ok := e.schemas[category]
	if !ok {
		return false
	}
	for _, rqm := range reqs {
		spec, known := schema.Attributes[rqm.Key]
		if !known {
			return false
		}
		raw, present := attrs[rqm.Key]
		if !present {
			return false
		}
		if !requirementHolds(spec.Type, rqm, raw) {
			return false
		}
	}
	return true
}

func requirementHolds(kind enums.AttributeType, rqm models.SpecialRequirement, raw string) bool {
	switch kind {
	case enums.AttributeTypeNumber:
		have, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		want, err := decimal.NewFromString(strings.TrimSpace(rqm.Value))
		if err != nil {
			return false
		}
		switch rqm.Op {
		case enums.RequirementOpEq:
			return have.Equal(want)
		case enums.RequirementOpMin:
			return have.GreaterThanOrEqual(want)
		case enums.RequirementOpMax:
			return have.LessThanOrEqual(want)
		}
	case enums.AttributeTypeBool:
		have, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		want, err := strconv.ParseBool(strings.TrimSpace(rqm.Value))
		if err != nil {
			return false
		}
		return rqm.Op == enums.RequirementOpEq && have == want
	case enums.AttributeTypeString:
		return rqm.Op == enums.RequirementOpEq && equalTR(raw, rqm.Value)
	}
	return false
}

func roundScore(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*10000) / 10000
}
