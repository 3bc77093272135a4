package query

import (
	"context"
	"fmt"
	"sort"
)

// SyncError reports a tree replacement that failed after the delete phase
// succeeded. Against a transactional TreeStore the enclosing transaction
// rolls back; against anything else the stored tree is empty or partial.
type SyncError struct {
	QueryID string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("rebuild tree for query %s: %v", e.QueryID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Replace makes the stored group/rule rows for the query match root exactly.
// No diff is computed: all existing groups are deleted (cascades remove
// rules and nested groups), then the tree is recreated depth-first in
// pre-order: each group first, then its rules in ascending sort order, then
// its child groups in ascending sort order. Fresh ids are assigned
// throughout and echoed onto the in-memory tree.
//
// Callers should run Replace inside Store.InTx so the two phases commit
// atomically; outside a transaction a mid-walk failure leaves the store
// partially rebuilt, which is surfaced as a SyncError.
func Replace(ctx context.Context, ts TreeStore, queryID string, root *Group) error {
	if root == nil {
		return fmt.Errorf("replace tree for query %s: nil root", queryID)
	}
	if err := ts.DeleteGroupsForQuery(ctx, queryID); err != nil {
		return err
	}
	if err := createSubtree(ctx, ts, queryID, root, nil); err != nil {
		return &SyncError{QueryID: queryID, Err: err}
	}
	return nil
}

func createSubtree(ctx context.Context, ts TreeStore, queryID string, g *Group, parentID *string) error {
	g.ID = "" // force a fresh id from the store
	g.QueryID = queryID
	g.ParentGroupID = parentID
	if err := ts.CreateGroup(ctx, g); err != nil {
		return err
	}

	rules := make([]*Rule, len(g.Rules))
	copy(rules, g.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].SortOrder < rules[j].SortOrder })
	for i, r := range rules {
		r.ID = ""
		r.GroupID = g.ID
		r.SortOrder = i
		if err := ts.CreateRule(ctx, r); err != nil {
			return err
		}
	}

	children := make([]*Group, len(g.Groups))
	copy(children, g.Groups)
	sort.SliceStable(children, func(i, j int) bool { return children[i].SortOrder < children[j].SortOrder })
	for i, child := range children {
		child.SortOrder = i
		if err := createSubtree(ctx, ts, queryID, child, &g.ID); err != nil {
			return err
		}
	}
	return nil
}
