package query

import "canvas-backend/internal/metadata"

// Operator is a rule comparison operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// GroupOperator combines the children of a group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Valid reports whether g is AND or OR.
func (g GroupOperator) Valid() bool {
	return g == GroupAnd || g == GroupOr
}

// The operator catalog. This table is the single source of truth for
// operator-to-type compatibility; validator, handlers and executor all go
// through it. The first operator of each set is the default assigned to a
// newly added rule.
var (
	textOperators = []Operator{
		OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
		OpIsEmpty, OpIsNotEmpty,
	}
	orderedOperators = []Operator{
		OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpGreaterOrEqual, OpLessOrEqual, OpIsEmpty, OpIsNotEmpty,
	}
	booleanOperators = []Operator{OpEquals, OpNotEquals}
)

// OperatorsFor returns the legal operators for a property type, in catalog
// order. Entity-reference properties have no legal operators: they cannot be
// used in rules. The returned slice must not be modified.
func OperatorsFor(t metadata.PropertyType) []Operator {
	switch t {
	case metadata.TypeText:
		return textOperators
	case metadata.TypeNumber, metadata.TypeDate, metadata.TypeDateTime, metadata.TypeTime:
		return orderedOperators
	case metadata.TypeBoolean:
		return booleanOperators
	default:
		// entity references and unknown types
		return nil
	}
}

// DefaultOperator returns the operator assigned to a freshly added rule.
func DefaultOperator(t metadata.PropertyType) (Operator, bool) {
	ops := OperatorsFor(t)
	if len(ops) == 0 {
		return "", false
	}
	return ops[0], true
}

// AllowedOperator reports whether op is legal for the property type.
func AllowedOperator(t metadata.PropertyType, op Operator) bool {
	for _, o := range OperatorsFor(t) {
		if o == op {
			return true
		}
	}
	return false
}

// NeedsValue reports whether the operator requires a comparison value.
// is_empty and is_not_empty are the only unary operators.
func NeedsValue(op Operator) bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}
