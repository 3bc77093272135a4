package query

import (
	"fmt"

	"canvas-backend/internal/metadata"
)

// Validate checks every node of the tree against the operator catalog, the
// query's target entity and referential constraints. It returns the errors
// in walk order; a tree with any error must be rejected outright, never
// applied partially. The same function runs on every server-side mutation
// regardless of any client-side pre-check.
func Validate(root *Group, entityID string, reg *metadata.Registry) []NodeError {
	var errs []NodeError
	validateGroup(root, entityID, reg, &errs)
	return errs
}

func validateGroup(g *Group, entityID string, reg *metadata.Registry, errs *[]NodeError) {
	if g == nil {
		return
	}
	if !g.Operator.Valid() {
		*errs = append(*errs, NodeError{
			NodeID:  g.ID,
			Message: fmt.Sprintf("invalid group operator '%s'", g.Operator),
		})
	}
	for _, r := range g.Rules {
		if ne := CheckRule(r, entityID, reg); ne != nil {
			*errs = append(*errs, *ne)
		}
	}
	for _, child := range g.Groups {
		validateGroup(child, entityID, reg, errs)
	}
}

// CheckRule applies the rule-level checks (property ownership, no
// entity-reference properties, operator-type compatibility, value presence
// and parseability) to a single rule. Returns nil when the rule is valid.
func CheckRule(r *Rule, entityID string, reg *metadata.Registry) *NodeError {
	prop := reg.GetProperty(r.PropertyID)
	if prop == nil || prop.IsDeleted || prop.EntityID != entityID {
		return &NodeError{NodeID: r.ID, Message: "property does not belong to query entity"}
	}
	if prop.Type == metadata.TypeEntity {
		return &NodeError{NodeID: r.ID, Message: "entity properties cannot be used in queries"}
	}
	if !AllowedOperator(prop.Type, r.Operator) {
		return &NodeError{
			NodeID:  r.ID,
			Message: fmt.Sprintf("invalid operator '%s' for property type '%s'", r.Operator, prop.Type),
		}
	}
	if !NeedsValue(r.Operator) {
		return nil
	}
	if r.Value == nil {
		return &NodeError{
			NodeID:  r.ID,
			Message: fmt.Sprintf("a value is required for operator '%s'", r.Operator),
		}
	}
	if _, err := ParseValue(prop.Type, *r.Value); err != nil {
		return &NodeError{
			NodeID:  r.ID,
			Message: fmt.Sprintf("value %q is not valid for property type '%s'", *r.Value, prop.Type),
		}
	}
	return nil
}
