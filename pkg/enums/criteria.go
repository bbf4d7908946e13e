package enums

// RequirementOp is the comparison a special requirement applies to an attribute.
type RequirementOp string

const (
	RequirementOpEq  RequirementOp = "eq"
	RequirementOpMin RequirementOp = "min"
	RequirementOpMax RequirementOp = "max"
)

var requirementOps = newSet("requirement op", RequirementOpEq, RequirementOpMin, RequirementOpMax)

func (o RequirementOp) IsValid() bool { return requirementOps.has(o) }

func ParseRequirementOp(value string) (RequirementOp, error) { return requirementOps.parse(value) }

// AttributeType is the value kind of a category-specific property attribute.
type AttributeType string

const (
	AttributeTypeNumber AttributeType = "number"
	AttributeTypeBool   AttributeType = "bool"
	AttributeTypeString AttributeType = "string"
)
