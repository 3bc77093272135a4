package query

import (
	"fmt"
	"log"
	"strings"
	"time"

	"canvas-backend/internal/metadata"
)

// Instance is a stored record of an entity, the unit the executor filters.
type Instance struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Limits bounds execution: the pagination window and the accepted tree depth.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxDepth        int
}

// Result is the execution envelope: the page window of matching instances in
// creation order, plus the total match count.
type Result struct {
	Rows       []Instance `json:"rows"`
	TotalCount int        `json:"totalCount"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
}

// Execute evaluates a validated tree against the candidate instances and
// returns the requested page of matches. Page and pageSize are clamped to
// the configured bounds. Rules whose stored value no longer parses against
// the property's current type never match; they are logged, never fatal.
func Execute(root *Group, reg *metadata.Registry, instances []Instance, page, pageSize int, limits Limits) (*Result, error) {
	if limits.MaxDepth > 0 && Depth(root) > limits.MaxDepth {
		return nil, fmt.Errorf("query tree exceeds maximum depth %d", limits.MaxDepth)
	}
	page, pageSize = clampWindow(page, pageSize, limits)

	compiled := compileGroup(root, reg)

	var matched []Instance
	for _, inst := range instances {
		if compiled.eval(inst.Data) {
			matched = append(matched, inst)
		}
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	var rows []Instance
	if start < len(matched) {
		if end > len(matched) {
			end = len(matched)
		}
		rows = matched[start:end]
	}
	if rows == nil {
		rows = []Instance{}
	}

	return &Result{
		Rows:       rows,
		TotalCount: len(matched),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func clampWindow(page, pageSize int, limits Limits) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = limits.DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if limits.MaxPageSize > 0 && pageSize > limits.MaxPageSize {
		pageSize = limits.MaxPageSize
	}
	return page, pageSize
}

// compiledGroup is a tree node with rule values already parsed, so the
// per-instance walk does no string parsing.
type compiledGroup struct {
	and    bool
	rules  []compiledRule
	groups []compiledGroup
}

type compiledRule struct {
	property *metadata.Property
	operator Operator
	value    any
	dead     bool // property or value unresolvable: the rule never matches
}

func compileGroup(g *Group, reg *metadata.Registry) compiledGroup {
	cg := compiledGroup{and: g.Operator != GroupOr}
	for _, r := range g.Rules {
		cg.rules = append(cg.rules, compileRule(r, reg))
	}
	for _, child := range g.Groups {
		cg.groups = append(cg.groups, compileGroup(child, reg))
	}
	return cg
}

func compileRule(r *Rule, reg *metadata.Registry) compiledRule {
	cr := compiledRule{operator: r.Operator}
	prop := reg.GetProperty(r.PropertyID)
	if prop == nil || prop.IsDeleted {
		log.Printf("WARN: rule %s references missing property %s, rule will never match", r.ID, r.PropertyID)
		cr.dead = true
		return cr
	}
	cr.property = prop
	if !NeedsValue(r.Operator) {
		return cr
	}
	if r.Value == nil {
		log.Printf("WARN: rule %s has no value for operator %s, rule will never match", r.ID, r.Operator)
		cr.dead = true
		return cr
	}
	v, err := ParseValue(prop.Type, *r.Value)
	if err != nil {
		log.Printf("WARN: rule %s value %q does not parse as %s, rule will never match: %v",
			r.ID, *r.Value, prop.Type, err)
		cr.dead = true
		return cr
	}
	cr.value = v
	return cr
}

// eval folds the group's direct rule and subgroup results with AND/OR.
// Empty groups evaluate to the neutral element: AND -> true, OR -> false.
func (g compiledGroup) eval(data map[string]any) bool {
	for _, r := range g.rules {
		match := r.eval(data)
		if g.and && !match {
			return false
		}
		if !g.and && match {
			return true
		}
	}
	for _, child := range g.groups {
		match := child.eval(data)
		if g.and && !match {
			return false
		}
		if !g.and && match {
			return true
		}
	}
	return g.and
}

func (r compiledRule) eval(data map[string]any) bool {
	if r.dead {
		return false
	}
	raw := data[r.property.Name]

	switch r.operator {
	case OpIsEmpty:
		return IsEmptyValue(raw)
	case OpIsNotEmpty:
		return !IsEmptyValue(raw)
	}

	if raw == nil {
		return false
	}
	v, err := CoerceInstanceValue(r.property.Type, raw)
	if err != nil {
		log.Printf("WARN: stored value %v does not coerce to %s for property %s, treating rule as non-matching",
			raw, r.property.Type, r.property.Name)
		return false
	}

	switch r.operator {
	case OpEquals:
		return valuesEqual(v, r.value)
	case OpNotEquals:
		return !valuesEqual(v, r.value)
	case OpContains:
		return strings.Contains(asString(v), asString(r.value))
	case OpStartsWith:
		return strings.HasPrefix(asString(v), asString(r.value))
	case OpEndsWith:
		return strings.HasSuffix(asString(v), asString(r.value))
	case OpGreaterThan:
		c, ok := compareOrdered(v, r.value)
		return ok && c > 0
	case OpLessThan:
		c, ok := compareOrdered(v, r.value)
		return ok && c < 0
	case OpGreaterOrEqual:
		c, ok := compareOrdered(v, r.value)
		return ok && c >= 0
	case OpLessOrEqual:
		c, ok := compareOrdered(v, r.value)
		return ok && c <= 0
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return a == b
}

// compareOrdered compares two coerced values of the same property type.
// Returns ok=false when the pair is not orderable.
func compareOrdered(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
