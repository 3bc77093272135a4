package records

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/metadata"
	"canvas-backend/internal/query"
	"canvas-backend/internal/store"
)

type Handler struct {
	db       *store.Store
	records  *Store
	registry *metadata.Registry
	rules    *RuleEngine
}

func NewHandler(db *store.Store, recs *Store, reg *metadata.Registry) *Handler {
	return &Handler{db: db, records: recs, registry: reg, rules: NewRuleEngine()}
}

// Create handles POST /api/entities/:entityId/records. The payload is
// checked against the entity's properties and the entity's validation rules
// before anything is written.
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := c.BodyParser(&body); err != nil {
		return query.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.Data == nil {
		body.Data = map[string]any{}
	}

	if details := h.checkProperties(entity.ID, body.Data); len(details) > 0 {
		return query.ValidationFailedError(details)
	}

	rules, err := LoadRules(c.Context(), h.db.Pool, entity.ID)
	if err != nil {
		return fmt.Errorf("load rules for entity %s: %w", entity.ID, err)
	}
	if details := h.rules.Evaluate(rules, body.Data); len(details) > 0 {
		return query.ValidationFailedError(details)
	}

	inst := &query.Instance{EntityID: entity.ID, Data: body.Data}
	if err := h.records.Create(c.Context(), inst); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": inst})
}

// List handles GET /api/entities/:entityId/records, in creation order.
func (h *Handler) List(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	instances, err := h.records.ListInstances(c.Context(), entity.ID)
	if err != nil {
		return fmt.Errorf("list records for entity %s: %w", entity.ID, err)
	}
	if instances == nil {
		instances = []query.Instance{}
	}
	return c.JSON(fiber.Map{"data": instances})
}

// GetByID handles GET /api/entities/:entityId/records/:id.
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	inst, err := h.records.Get(c.Context(), entity.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return query.NotFoundError("record", id)
		}
		return fmt.Errorf("get record %s: %w", id, err)
	}
	return c.JSON(fiber.Map{"data": inst})
}

// Delete handles DELETE /api/entities/:entityId/records/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	ok, err := h.records.Delete(c.Context(), entity.ID, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if !ok {
		return query.NotFoundError("record", id)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// checkProperties rejects unknown keys and values that do not coerce to the
// property's type. Entity-reference values are stored opaquely.
func (h *Handler) checkProperties(entityID string, data map[string]any) []query.NodeError {
	props := make(map[string]*metadata.Property)
	for _, p := range h.registry.PropertiesFor(entityID) {
		if !p.IsDeleted {
			props[p.Name] = p
		}
	}

	var details []query.NodeError
	for key, val := range data {
		p, ok := props[key]
		if !ok {
			details = append(details, query.NodeError{
				Field:   key,
				Message: fmt.Sprintf("unknown property %q", key),
			})
			continue
		}
		if p.Type == metadata.TypeEntity || val == nil {
			continue
		}
		if _, err := query.CoerceInstanceValue(p.Type, val); err != nil {
			details = append(details, query.NodeError{
				Field:   key,
				Message: fmt.Sprintf("value for %q is not a valid %s", key, p.Type),
			})
		}
	}
	return details
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	id := c.Params("entityId")
	entity := h.registry.GetEntity(id)
	if entity == nil || entity.IsDeleted {
		return nil, query.NotFoundError("entity", id)
	}
	return entity, nil
}
