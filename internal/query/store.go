package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"canvas-backend/internal/store"
)

// Query is a named, saved boolean filter over instances of one entity.
// Queries are soft-deleted; their group/rule children are hard-deleted by
// cascade.
type Query struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	EntityID  string `json:"entity_id"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"is_deleted"`
}

// TreeStore is the group/rule storage collaborator the synchronizer works
// against.
type TreeStore interface {
	ListTree(ctx context.Context, queryID string) ([]*Group, []*Rule, error)
	GetGroup(ctx context.Context, queryID, groupID string) (*Group, error)
	CreateGroup(ctx context.Context, g *Group) error
	CreateRule(ctx context.Context, r *Rule) error
	DeleteGroup(ctx context.Context, queryID, groupID string) (bool, error)
	DeleteGroupsForQuery(ctx context.Context, queryID string) error
}

// Store adds query lifecycle operations on top of tree storage. InTx runs
// the callback against a transactional view where the store supports one; a
// non-transactional implementation may simply invoke the callback, accepting
// the partial-rebuild window documented on Replace.
type Store interface {
	TreeStore
	GetQuery(ctx context.Context, id string) (*Query, error)
	CreateQuery(ctx context.Context, q *Query) error
	SoftDeleteQuery(ctx context.Context, id string) (bool, error)
	InTx(ctx context.Context, fn func(Store) error) error
}

// PGStore is the Postgres-backed Store. The zero value is not usable; create
// one with NewPGStore.
type PGStore struct {
	db *store.Store
	q  store.Querier
}

func NewPGStore(db *store.Store) *PGStore {
	return &PGStore{db: db, q: db.Pool}
}

// InTx runs fn against a store view bound to a single transaction, so a
// whole-tree replacement commits or rolls back atomically.
func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&PGStore{db: s.db, q: tx})
	})
}

func (s *PGStore) GetQuery(ctx context.Context, id string) (*Query, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id::text, COALESCE(project_id::text, ''), entity_id::text, name, is_deleted
		 FROM queries WHERE id = $1 AND is_deleted = false`, id)
	var q Query
	if err := row.Scan(&q.ID, &q.ProjectID, &q.EntityID, &q.Name, &q.IsDeleted); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}
	return &q, nil
}

func (s *PGStore) CreateQuery(ctx context.Context, q *Query) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO queries (id, project_id, entity_id, name) VALUES ($1, NULLIF($2, '')::uuid, $3, $4)`,
		q.ID, q.ProjectID, q.EntityID, q.Name)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

func (s *PGStore) SoftDeleteQuery(ctx context.Context, id string) (bool, error) {
	n, err := store.Exec(ctx, s.q,
		`UPDATE queries SET is_deleted = true, updated_at = NOW() WHERE id = $1 AND is_deleted = false`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete query %s: %w", id, err)
	}
	return n > 0, nil
}

// ListTree returns the query's flat group and rule rows, each kind ordered
// by sort_order.
func (s *PGStore) ListTree(ctx context.Context, queryID string) ([]*Group, []*Rule, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id::text, query_id::text, parent_group_id::text, operator, sort_order
		 FROM query_groups WHERE query_id = $1 ORDER BY sort_order, created_at`, queryID)
	if err != nil {
		return nil, nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.QueryID, &g.ParentGroupID, &g.Operator, &g.SortOrder); err != nil {
			return nil, nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("group rows: %w", err)
	}

	ruleRows, err := s.q.Query(ctx,
		`SELECT r.id::text, r.query_group_id::text, r.property_id::text, r.operator, r.value, r.sort_order
		 FROM query_rules r
		 JOIN query_groups g ON g.id = r.query_group_id
		 WHERE g.query_id = $1 ORDER BY r.sort_order, r.created_at`, queryID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rules: %w", err)
	}
	defer ruleRows.Close()

	var rules []*Rule
	for ruleRows.Next() {
		var r Rule
		if err := ruleRows.Scan(&r.ID, &r.GroupID, &r.PropertyID, &r.Operator, &r.Value, &r.SortOrder); err != nil {
			return nil, nil, fmt.Errorf("scan rule row: %w", err)
		}
		rules = append(rules, &r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rule rows: %w", err)
	}
	return groups, rules, nil
}

func (s *PGStore) GetGroup(ctx context.Context, queryID, groupID string) (*Group, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id::text, query_id::text, parent_group_id::text, operator, sort_order
		 FROM query_groups WHERE id = $1 AND query_id = $2`, groupID, queryID)
	var g Group
	if err := row.Scan(&g.ID, &g.QueryID, &g.ParentGroupID, &g.Operator, &g.SortOrder); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	return &g, nil
}

// CreateGroup inserts a group row, assigning a generated id when none is
// set. The id is echoed back on g for descendants to reference.
func (s *PGStore) CreateGroup(ctx context.Context, g *Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO query_groups (id, query_id, parent_group_id, operator, sort_order)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5)`,
		g.ID, g.QueryID, deref(g.ParentGroupID), string(g.Operator), g.SortOrder)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *PGStore) CreateRule(ctx context.Context, r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO query_rules (id, query_group_id, property_id, operator, value, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.GroupID, r.PropertyID, string(r.Operator), r.Value, r.SortOrder)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// DeleteGroup removes a group owned by the query; storage-level cascades
// remove its rules and descendant groups. Returns false when the group does
// not exist under the query.
func (s *PGStore) DeleteGroup(ctx context.Context, queryID, groupID string) (bool, error) {
	n, err := store.Exec(ctx, s.q,
		`DELETE FROM query_groups WHERE id = $1 AND query_id = $2`, groupID, queryID)
	if err != nil {
		return false, fmt.Errorf("delete group %s: %w", groupID, err)
	}
	return n > 0, nil
}

func (s *PGStore) DeleteGroupsForQuery(ctx context.Context, queryID string) error {
	// Deleting roots is enough: parent_group_id cascades take the rest.
	if _, err := store.Exec(ctx, s.q,
		`DELETE FROM query_groups WHERE query_id = $1`, queryID); err != nil {
		return fmt.Errorf("delete groups for query %s: %w", queryID, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
