package query

import (
	"testing"

	"canvas-backend/internal/metadata"
)

var amountProp = &metadata.Property{
	ID: "prop-amount", EntityID: "ent-invoice", Name: "amount", Type: metadata.TypeNumber,
}

func TestAddRule_DenseSortOrder(t *testing.T) {
	tree, err := NewTree("q1", GroupAnd)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		r, err := tree.AddRule(tree.Root.ID, amountProp)
		if err != nil {
			t.Fatal(err)
		}
		if r.SortOrder != i {
			t.Fatalf("expected sort_order %d, got %d", i, r.SortOrder)
		}
		if r.Operator != OpEquals {
			t.Fatalf("expected default operator equals, got %s", r.Operator)
		}
		if r.Value == nil || *r.Value != "" {
			t.Fatalf("expected empty value on a fresh rule, got %v", r.Value)
		}
	}
}

func TestAddGroup_DenseSortOrder(t *testing.T) {
	tree, err := NewTree("q1", GroupAnd)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		g, err := tree.AddGroup(tree.Root.ID, GroupOr)
		if err != nil {
			t.Fatal(err)
		}
		if g.SortOrder != i {
			t.Fatalf("expected sort_order %d, got %d", i, g.SortOrder)
		}
		if g.ParentGroupID == nil || *g.ParentGroupID != tree.Root.ID {
			t.Fatal("expected parent_group_id to point at the root")
		}
	}
}

func TestRemoveNode_CompactsSiblings(t *testing.T) {
	tree, _ := NewTree("q1", GroupAnd)
	r0, _ := tree.AddRule(tree.Root.ID, amountProp)
	r1, _ := tree.AddRule(tree.Root.ID, amountProp)
	r2, _ := tree.AddRule(tree.Root.ID, amountProp)

	if err := tree.RemoveNode(r1.ID); err != nil {
		t.Fatal(err)
	}
	if len(tree.Root.Rules) != 2 {
		t.Fatalf("expected 2 rules left, got %d", len(tree.Root.Rules))
	}
	if r0.SortOrder != 0 || r2.SortOrder != 1 {
		t.Fatalf("expected compacted orders 0,1 got %d,%d", r0.SortOrder, r2.SortOrder)
	}

	// Adding after a removal picks the next dense slot
	r3, _ := tree.AddRule(tree.Root.ID, amountProp)
	if r3.SortOrder != 2 {
		t.Fatalf("expected sort_order 2 after removal, got %d", r3.SortOrder)
	}
}

func TestRemoveNode_GroupTakesDescendants(t *testing.T) {
	tree, _ := NewTree("q1", GroupAnd)
	child, _ := tree.AddGroup(tree.Root.ID, GroupOr)
	grand, _ := tree.AddGroup(child.ID, GroupAnd)
	r, _ := tree.AddRule(grand.ID, amountProp)

	if err := tree.RemoveNode(child.ID); err != nil {
		t.Fatal(err)
	}
	if tree.Group(grand.ID) != nil {
		t.Fatal("expected descendant group unindexed")
	}
	if tree.Rule(r.ID) != nil {
		t.Fatal("expected descendant rule unindexed")
	}
}

func TestRemoveNode_RootForbidden(t *testing.T) {
	tree, _ := NewTree("q1", GroupAnd)
	if err := tree.RemoveNode(tree.Root.ID); err == nil {
		t.Fatal("expected error removing the root group")
	}
}

func TestReorder(t *testing.T) {
	tree, _ := NewTree("q1", GroupAnd)
	r0, _ := tree.AddRule(tree.Root.ID, amountProp)
	r1, _ := tree.AddRule(tree.Root.ID, amountProp)
	g0, _ := tree.AddGroup(tree.Root.ID, GroupOr)

	if err := tree.Reorder(tree.Root.ID, []string{r1.ID, g0.ID, r0.ID}); err != nil {
		t.Fatal(err)
	}
	if r1.SortOrder != 0 || r0.SortOrder != 1 {
		t.Fatalf("expected rule orders 0,1 got %d,%d", r1.SortOrder, r0.SortOrder)
	}
	if g0.SortOrder != 0 {
		t.Fatalf("expected group order 0, got %d", g0.SortOrder)
	}

	// Mismatched id set is rejected and leaves the order untouched
	if err := tree.Reorder(tree.Root.ID, []string{r1.ID, r0.ID}); err == nil {
		t.Fatal("expected error for incomplete id set")
	}
	if err := tree.Reorder(tree.Root.ID, []string{r1.ID, r0.ID, "nope"}); err == nil {
		t.Fatal("expected error for foreign id")
	}
	if r1.SortOrder != 0 || r0.SortOrder != 1 {
		t.Fatal("failed reorder must not change sort orders")
	}

	// Appending after a reorder stays dense
	r2, _ := tree.AddRule(tree.Root.ID, amountProp)
	if r2.SortOrder != 2 {
		t.Fatalf("expected sort_order 2 after reorder, got %d", r2.SortOrder)
	}
}

func TestFromRoot_AssignsMissingIDs(t *testing.T) {
	val := "100"
	root := &Group{
		Operator: GroupAnd,
		QueryID:  "q1",
		Rules:    []*Rule{{PropertyID: "prop-amount", Operator: OpGreaterThan, Value: &val}},
		Groups:   []*Group{{Operator: GroupOr}},
	}
	tree, err := FromRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	if root.ID == "" || root.Rules[0].ID == "" || root.Groups[0].ID == "" {
		t.Fatal("expected fresh ids assigned to id-less nodes")
	}
	if root.Groups[0].QueryID != "q1" {
		t.Fatal("expected child to inherit the root's query id")
	}
	if tree.Rule(root.Rules[0].ID) == nil {
		t.Fatal("expected rule indexed")
	}
}

func TestFromRoot_RejectsDuplicatesAndForeignQuery(t *testing.T) {
	root := &Group{
		ID: "g1", QueryID: "q1", Operator: GroupAnd,
		Groups: []*Group{{ID: "g1", QueryID: "q1", Operator: GroupOr}},
	}
	if _, err := FromRoot(root); err == nil {
		t.Fatal("expected duplicate group id rejected")
	}

	root = &Group{
		ID: "g1", QueryID: "q1", Operator: GroupAnd,
		Groups: []*Group{{ID: "g2", QueryID: "q2", Operator: GroupOr}},
	}
	if _, err := FromRoot(root); err == nil {
		t.Fatal("expected cross-query nesting rejected")
	}
}

func TestBuildTree(t *testing.T) {
	rootID := "g-root"
	groups := []*Group{
		{ID: "g-b", QueryID: "q1", ParentGroupID: &rootID, Operator: GroupOr, SortOrder: 1},
		{ID: rootID, QueryID: "q1", Operator: GroupAnd},
		{ID: "g-a", QueryID: "q1", ParentGroupID: &rootID, Operator: GroupOr, SortOrder: 0},
	}
	rules := []*Rule{
		{ID: "r-1", GroupID: "g-a", PropertyID: "p", Operator: OpEquals, SortOrder: 1},
		{ID: "r-0", GroupID: "g-a", PropertyID: "p", Operator: OpEquals, SortOrder: 0},
	}

	root, err := BuildTree(groups, rules)
	if err != nil {
		t.Fatal(err)
	}
	if root.ID != rootID {
		t.Fatalf("expected root %s, got %s", rootID, root.ID)
	}
	if root.Groups[0].ID != "g-a" || root.Groups[1].ID != "g-b" {
		t.Fatal("expected subgroups ordered by sort_order")
	}
	if root.Groups[0].Rules[0].ID != "r-0" || root.Groups[0].Rules[1].ID != "r-1" {
		t.Fatal("expected rules ordered by sort_order")
	}
}

func TestBuildTree_Errors(t *testing.T) {
	// Two roots
	_, err := BuildTree([]*Group{
		{ID: "a", QueryID: "q1", Operator: GroupAnd},
		{ID: "b", QueryID: "q1", Operator: GroupAnd},
	}, nil)
	if err == nil {
		t.Fatal("expected error for multiple roots")
	}

	// Orphan rule
	_, err = BuildTree(
		[]*Group{{ID: "a", QueryID: "q1", Operator: GroupAnd}},
		[]*Rule{{ID: "r", GroupID: "missing", PropertyID: "p", Operator: OpEquals}},
	)
	if err == nil {
		t.Fatal("expected error for rule referencing a missing group")
	}

	// Orphan group
	missing := "missing"
	_, err = BuildTree([]*Group{
		{ID: "a", QueryID: "q1", Operator: GroupAnd},
		{ID: "b", QueryID: "q1", ParentGroupID: &missing, Operator: GroupOr},
	}, nil)
	if err == nil {
		t.Fatal("expected error for group referencing a missing parent")
	}
}

func TestDepth(t *testing.T) {
	tree, _ := NewTree("q1", GroupAnd)
	if Depth(tree.Root) != 1 {
		t.Fatalf("expected depth 1 for a lone root, got %d", Depth(tree.Root))
	}
	child, _ := tree.AddGroup(tree.Root.ID, GroupOr)
	if _, err := tree.AddGroup(child.ID, GroupAnd); err != nil {
		t.Fatal(err)
	}
	if Depth(tree.Root) != 3 {
		t.Fatalf("expected depth 3, got %d", Depth(tree.Root))
	}
}
