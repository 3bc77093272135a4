package records

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"canvas-backend/internal/query"
	"canvas-backend/internal/store"
)

// Store persists entity instances as jsonb rows, keyed by property name.
// It is the instance-storage collaborator the query executor reads from.
type Store struct {
	db *store.Store
}

func NewStore(db *store.Store) *Store {
	return &Store{db: db}
}

// ListInstances returns all instances of an entity in creation order, the
// executor's default ordering.
func (s *Store) ListInstances(ctx context.Context, entityID string) ([]query.Instance, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id::text, entity_id::text, data, created_at
		 FROM records WHERE entity_id = $1 ORDER BY created_at, id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var instances []query.Instance
	for rows.Next() {
		var inst query.Instance
		if err := rows.Scan(&inst.ID, &inst.EntityID, &inst.Data, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func (s *Store) Get(ctx context.Context, entityID, id string) (*query.Instance, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT id::text, entity_id::text, data, created_at
		 FROM records WHERE id = $1 AND entity_id = $2`, id, entityID)
	var inst query.Instance
	if err := row.Scan(&inst.ID, &inst.EntityID, &inst.Data, &inst.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &inst, nil
}

func (s *Store) Create(ctx context.Context, inst *query.Instance) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	row := s.db.Pool.QueryRow(ctx,
		`INSERT INTO records (id, entity_id, data) VALUES ($1, $2, $3) RETURNING created_at`,
		inst.ID, inst.EntityID, inst.Data)
	if err := row.Scan(&inst.CreatedAt); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entityID, id string) (bool, error) {
	n, err := store.Exec(ctx, s.db.Pool,
		`DELETE FROM records WHERE id = $1 AND entity_id = $2`, id, entityID)
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", id, err)
	}
	return n > 0, nil
}
