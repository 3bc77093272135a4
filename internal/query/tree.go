package query

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"canvas-backend/internal/metadata"
)

// Rule is a leaf node comparing one property's value to a literal.
type Rule struct {
	ID         string   `json:"id"`
	GroupID    string   `json:"query_group_id"`
	PropertyID string   `json:"property_id"`
	Operator   Operator `json:"operator"`
	Value      *string  `json:"value"`
	SortOrder  int      `json:"sort_order"`
}

// Group is an AND/OR combinator node. A query owns exactly one root group
// (ParentGroupID == nil); nesting is arbitrary. Rules and child groups each
// carry their own dense zero-based sort sequence among siblings.
type Group struct {
	ID            string        `json:"id"`
	QueryID       string        `json:"query_id"`
	ParentGroupID *string       `json:"parent_group_id"`
	Operator      GroupOperator `json:"operator"`
	SortOrder     int           `json:"sort_order"`
	Rules         []*Rule       `json:"rules"`
	Groups        []*Group      `json:"groups"`
}

// Tree is the in-memory editing model for a query's group/rule tree.
// Mutations keep sibling sort orders dense and never produce orphaned rules
// or cyclic groups: nodes are indexed by id, duplicate ids are rejected at
// build time, and groups are only ever appended under an existing parent.
type Tree struct {
	Root   *Group
	groups map[string]*Group
	rules  map[string]*Rule
	owner  map[string]*Group // rule id -> owning group
}

// NewTree creates a tree holding a fresh root group for the query.
func NewTree(queryID string, op GroupOperator) (*Tree, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("invalid group operator %q", op)
	}
	root := &Group{
		ID:       uuid.New().String(),
		QueryID:  queryID,
		Operator: op,
	}
	return &Tree{
		Root:   root,
		groups: map[string]*Group{root.ID: root},
		rules:  map[string]*Rule{},
		owner:  map[string]*Group{},
	}, nil
}

// FromRoot indexes an existing nested tree for editing. It rejects duplicate
// node ids, missing ids and groups whose query id differs from the root's.
func FromRoot(root *Group) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("nil root group")
	}
	if root.ParentGroupID != nil {
		return nil, fmt.Errorf("root group %s has a parent", root.ID)
	}
	t := &Tree{
		Root:   root,
		groups: map[string]*Group{},
		rules:  map[string]*Rule{},
		owner:  map[string]*Group{},
	}
	if err := t.index(root); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) index(g *Group) error {
	if g.ID == "" {
		// client payloads may carry fresh nodes without ids
		g.ID = uuid.New().String()
	}
	if _, dup := t.groups[g.ID]; dup {
		return fmt.Errorf("duplicate group id %s", g.ID)
	}
	if g.QueryID == "" {
		g.QueryID = t.Root.QueryID
	} else if g.QueryID != t.Root.QueryID {
		return fmt.Errorf("group %s belongs to query %s, not %s", g.ID, g.QueryID, t.Root.QueryID)
	}
	t.groups[g.ID] = g
	for _, r := range g.Rules {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if _, dup := t.rules[r.ID]; dup {
			return fmt.Errorf("duplicate rule id %s", r.ID)
		}
		r.GroupID = g.ID
		t.rules[r.ID] = r
		t.owner[r.ID] = g
	}
	for _, child := range g.Groups {
		pid := g.ID
		child.ParentGroupID = &pid
		if err := t.index(child); err != nil {
			return err
		}
	}
	return nil
}

// AddRule appends a rule for the property to the group, with the property
// type's default operator, an empty value and the next dense sort order.
func (t *Tree) AddRule(groupID string, prop *metadata.Property) (*Rule, error) {
	g, ok := t.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s not in tree", groupID)
	}
	op, ok := DefaultOperator(prop.Type)
	if !ok {
		return nil, fmt.Errorf("property type %q has no legal operators", prop.Type)
	}
	empty := ""
	r := &Rule{
		ID:         uuid.New().String(),
		GroupID:    g.ID,
		PropertyID: prop.ID,
		Operator:   op,
		Value:      &empty,
		SortOrder:  len(g.Rules),
	}
	g.Rules = append(g.Rules, r)
	t.rules[r.ID] = r
	t.owner[r.ID] = g
	return r, nil
}

// AddGroup appends a child group under the parent with the next dense sort
// order among sibling groups.
func (t *Tree) AddGroup(parentID string, op GroupOperator) (*Group, error) {
	parent, ok := t.groups[parentID]
	if !ok {
		return nil, fmt.Errorf("group %s not in tree", parentID)
	}
	if !op.Valid() {
		return nil, fmt.Errorf("invalid group operator %q", op)
	}
	pid := parent.ID
	g := &Group{
		ID:            uuid.New().String(),
		QueryID:       t.Root.QueryID,
		ParentGroupID: &pid,
		Operator:      op,
		SortOrder:     len(parent.Groups),
	}
	parent.Groups = append(parent.Groups, g)
	t.groups[g.ID] = g
	return g, nil
}

// RemoveNode removes a rule or a group (with all descendants) and re-compacts
// the sibling sort sequence. The root group cannot be removed.
func (t *Tree) RemoveNode(nodeID string) error {
	if r, ok := t.rules[nodeID]; ok {
		g := t.owner[nodeID]
		g.Rules = removeRule(g.Rules, r.ID)
		compactRules(g.Rules)
		delete(t.rules, nodeID)
		delete(t.owner, nodeID)
		return nil
	}
	g, ok := t.groups[nodeID]
	if !ok {
		return fmt.Errorf("node %s not in tree", nodeID)
	}
	if g == t.Root {
		return fmt.Errorf("cannot remove the root group")
	}
	parent := t.groups[*g.ParentGroupID]
	parent.Groups = removeGroup(parent.Groups, g.ID)
	compactGroups(parent.Groups)
	t.unindex(g)
	return nil
}

func (t *Tree) unindex(g *Group) {
	delete(t.groups, g.ID)
	for _, r := range g.Rules {
		delete(t.rules, r.ID)
		delete(t.owner, r.ID)
	}
	for _, child := range g.Groups {
		t.unindex(child)
	}
}

// Reorder reassigns dense sort orders to the children of a group following
// the given id order. The id set must exactly match the group's current
// children (rules and subgroups combined); each kind keeps its own 0..n-1
// sequence, ordered by position in orderedIDs.
func (t *Tree) Reorder(parentID string, orderedIDs []string) error {
	parent, ok := t.groups[parentID]
	if !ok {
		return fmt.Errorf("group %s not in tree", parentID)
	}
	if len(orderedIDs) != len(parent.Rules)+len(parent.Groups) {
		return fmt.Errorf("reorder of group %s: id set does not match children", parentID)
	}

	seen := make(map[string]bool, len(orderedIDs))
	var rules []*Rule
	var groups []*Group
	for _, id := range orderedIDs {
		if seen[id] {
			return fmt.Errorf("reorder of group %s: duplicate id %s", parentID, id)
		}
		seen[id] = true
		if r := findRule(parent.Rules, id); r != nil {
			rules = append(rules, r)
			continue
		}
		if g := findGroup(parent.Groups, id); g != nil {
			groups = append(groups, g)
			continue
		}
		return fmt.Errorf("reorder of group %s: %s is not a child", parentID, id)
	}

	parent.Rules = rules
	parent.Groups = groups
	compactRules(parent.Rules)
	compactGroups(parent.Groups)
	return nil
}

// Group returns an indexed group by id, or nil.
func (t *Tree) Group(id string) *Group {
	return t.groups[id]
}

// Rule returns an indexed rule by id, or nil.
func (t *Tree) Rule(id string) *Rule {
	return t.rules[id]
}

// BuildTree assembles a nested tree from flat group and rule rows in a
// single pass keyed by id. Exactly one root (nil parent) is required; every
// other group must point at a loaded parent of the same query. Children are
// ordered by sort_order.
func BuildTree(groups []*Group, rules []*Rule) (*Group, error) {
	byID := make(map[string]*Group, len(groups))
	for _, g := range groups {
		g.Rules = nil
		g.Groups = nil
		byID[g.ID] = g
	}

	for _, r := range rules {
		g, ok := byID[r.GroupID]
		if !ok {
			return nil, fmt.Errorf("rule %s references missing group %s", r.ID, r.GroupID)
		}
		g.Rules = append(g.Rules, r)
	}

	var root *Group
	for _, g := range groups {
		if g.ParentGroupID == nil {
			if root != nil {
				return nil, fmt.Errorf("multiple root groups: %s and %s", root.ID, g.ID)
			}
			root = g
			continue
		}
		parent, ok := byID[*g.ParentGroupID]
		if !ok {
			return nil, fmt.Errorf("group %s references missing parent %s", g.ID, *g.ParentGroupID)
		}
		if parent.QueryID != g.QueryID {
			return nil, fmt.Errorf("group %s nests across queries", g.ID)
		}
		parent.Groups = append(parent.Groups, g)
	}
	if root == nil && len(groups) > 0 {
		return nil, fmt.Errorf("no root group")
	}

	for _, g := range groups {
		sort.SliceStable(g.Rules, func(i, j int) bool { return g.Rules[i].SortOrder < g.Rules[j].SortOrder })
		sort.SliceStable(g.Groups, func(i, j int) bool { return g.Groups[i].SortOrder < g.Groups[j].SortOrder })
	}
	return root, nil
}

// Depth returns the nesting depth of the tree (a lone root is depth 1).
func Depth(g *Group) int {
	if g == nil {
		return 0
	}
	max := 0
	for _, child := range g.Groups {
		if d := Depth(child); d > max {
			max = d
		}
	}
	return max + 1
}

func removeRule(rules []*Rule, id string) []*Rule {
	out := rules[:0]
	for _, r := range rules {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func removeGroup(groups []*Group, id string) []*Group {
	out := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}

func findRule(rules []*Rule, id string) *Rule {
	for _, r := range rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func findGroup(groups []*Group, id string) *Group {
	for _, g := range groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func compactRules(rules []*Rule) {
	for i, r := range rules {
		r.SortOrder = i
	}
}

func compactGroups(groups []*Group) {
	for i, g := range groups {
		g.SortOrder = i
	}
}
