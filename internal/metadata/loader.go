package metadata

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadAll reads all entities and properties from the database and populates
// the registry. Soft-deleted rows are loaded too; consumers check IsDeleted.
func LoadAll(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	entities, err := loadEntities(ctx, pool)
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	properties, err := loadProperties(ctx, pool)
	if err != nil {
		return fmt.Errorf("load properties: %w", err)
	}

	reg.Load(entities, properties)

	log.Printf("Loaded %d entities, %d properties into registry", len(entities), len(properties))
	return nil
}

// Reload is an alias for LoadAll, called after metadata mutations.
func Reload(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	return LoadAll(ctx, pool, reg)
}

func loadEntities(ctx context.Context, pool *pgxpool.Pool) ([]*Entity, error) {
	rows, err := pool.Query(ctx,
		"SELECT id::text, COALESCE(project_id::text, ''), name, is_deleted FROM entities ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &e.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

func loadProperties(ctx context.Context, pool *pgxpool.Pool) ([]*Property, error) {
	rows, err := pool.Query(ctx,
		"SELECT id::text, entity_id::text, name, property_type, is_deleted FROM properties ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.EntityID, &p.Name, &p.Type, &p.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan property row: %w", err)
		}
		if !p.Type.Valid() {
			log.Printf("WARN: property %s has unknown type %q, keeping as-is", p.ID, p.Type)
		}
		properties = append(properties, &p)
	}
	return properties, rows.Err()
}
