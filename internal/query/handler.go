package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/instrument"
	"canvas-backend/internal/metadata"
	"canvas-backend/internal/store"
)

// InstanceSource provides the entity instances the executor filters.
type InstanceSource interface {
	ListInstances(ctx context.Context, entityID string) ([]Instance, error)
}

type Handler struct {
	store     Store
	registry  *metadata.Registry
	instances InstanceSource
	limits    Limits
	events    *instrument.Recorder
}

func NewHandler(s Store, reg *metadata.Registry, src InstanceSource, limits Limits, events *instrument.Recorder) *Handler {
	return &Handler{store: s, registry: reg, instances: src, limits: limits, events: events}
}

type createQueryRequest struct {
	ProjectID string `json:"project_id"`
	EntityID  string `json:"entity_id"`
	Name      string `json:"name"`
}

type createGroupRequest struct {
	ParentGroupID *string `json:"parent_group_id"`
	Operator      string  `json:"operator"`
	SortOrder     int     `json:"sort_order"`
}

type createRuleRequest struct {
	GroupID    string  `json:"query_group_id"`
	PropertyID string  `json:"property_id"`
	Operator   string  `json:"operator"`
	Value      *string `json:"value"`
	SortOrder  int     `json:"sort_order"`
}

type saveTreeRequest struct {
	Groups []*Group `json:"groups"`
}

type executeRequest struct {
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Groups   []*Group `json:"groups"`
}

// CreateQuery handles POST /api/queries. The query is created together with
// its root group: a query owns exactly one root.
func (h *Handler) CreateQuery(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}

	var body createQueryRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.Name == "" || body.EntityID == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "name and entity_id are required")
	}
	entity := h.registry.GetEntity(body.EntityID)
	if entity == nil || entity.IsDeleted {
		return NotFoundError("entity", body.EntityID)
	}

	q := &Query{ProjectID: body.ProjectID, EntityID: body.EntityID, Name: body.Name}
	err := h.store.InTx(c.Context(), func(s Store) error {
		if err := s.CreateQuery(c.Context(), q); err != nil {
			return err
		}
		root := &Group{QueryID: q.ID, Operator: GroupAnd}
		return s.CreateGroup(c.Context(), root)
	})
	if err != nil {
		return fmt.Errorf("create query: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": q})
}

// GetQuery handles GET /api/queries/:queryId.
func (h *Handler) GetQuery(c *fiber.Ctx) error {
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": q})
}

// DeleteQuery handles DELETE /api/queries/:queryId. Queries are soft-deleted;
// their group/rule tree stays in place behind the flag.
func (h *Handler) DeleteQuery(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}
	id := c.Params("queryId")
	ok, err := h.store.SoftDeleteQuery(c.Context(), id)
	if err != nil {
		return fmt.Errorf("delete query %s: %w", id, err)
	}
	if !ok {
		return NotFoundError("query", id)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// ListGroups handles GET /api/queries/:queryId/groups: the nested tree with
// rules and subgroups ordered by sort_order.
func (h *Handler) ListGroups(c *fiber.Ctx) error {
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}
	root, err := h.loadTree(c.Context(), q.ID)
	if err != nil {
		return err
	}
	data := []*Group{}
	if root != nil {
		data = append(data, root)
	}
	return c.JSON(fiber.Map{"data": data})
}

// CreateGroup handles POST /api/queries/:queryId/groups.
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}

	var body createGroupRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	op := GroupOperator(body.Operator)
	if !op.Valid() {
		return ValidationFailedError([]NodeError{{Message: fmt.Sprintf("invalid group operator '%s'", body.Operator)}})
	}

	if body.ParentGroupID != nil && *body.ParentGroupID != "" {
		if _, err := h.store.GetGroup(c.Context(), q.ID, *body.ParentGroupID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFoundError("group", *body.ParentGroupID)
			}
			return err
		}
	} else {
		body.ParentGroupID = nil
		groups, _, err := h.store.ListTree(c.Context(), q.ID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g.ParentGroupID == nil {
				return ValidationFailedError([]NodeError{{Message: "query already has a root group"}})
			}
		}
	}

	g := &Group{
		QueryID:       q.ID,
		ParentGroupID: body.ParentGroupID,
		Operator:      op,
		SortOrder:     body.SortOrder,
	}
	if err := h.store.CreateGroup(c.Context(), g); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": g})
}

// DeleteGroup handles DELETE /api/queries/:queryId/groups/:groupId. Deletion
// cascades to all rules and descendant groups.
func (h *Handler) DeleteGroup(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}
	groupID := c.Params("groupId")
	ok, err := h.store.DeleteGroup(c.Context(), q.ID, groupID)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", groupID, err)
	}
	if !ok {
		return NotFoundError("group", groupID)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": groupID}})
}

// CreateRule handles POST /api/queries/:queryId/rules. Operator-type
// compatibility and entity ownership are re-validated here regardless of any
// client-side check.
func (h *Handler) CreateRule(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}

	var body createRuleRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	if _, err := h.store.GetGroup(c.Context(), q.ID, body.GroupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("group", body.GroupID)
		}
		return err
	}
	if h.registry.GetProperty(body.PropertyID) == nil {
		return NotFoundError("property", body.PropertyID)
	}

	r := &Rule{
		GroupID:    body.GroupID,
		PropertyID: body.PropertyID,
		Operator:   Operator(body.Operator),
		Value:      body.Value,
		SortOrder:  body.SortOrder,
	}
	if ne := CheckRule(r, q.EntityID, h.registry); ne != nil {
		return ValidationFailedError([]NodeError{*ne})
	}

	if err := h.store.CreateRule(c.Context(), r); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": r})
}

// SaveTree handles PUT /api/queries/:queryId/groups: whole-tree replacement.
// The proposed tree is validated in full first; a tree with any error is
// rejected outright, and the replacement runs in one transaction.
func (h *Handler) SaveTree(c *fiber.Ctx) error {
	if err := requireContentEditor(c); err != nil {
		return err
	}
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}

	var body saveTreeRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	root, appErr := h.assembleTree(q, body.Groups)
	if appErr != nil {
		return appErr
	}
	if errs := Validate(root, q.EntityID, h.registry); len(errs) > 0 {
		return ValidationFailedError(errs)
	}

	err = h.store.InTx(c.Context(), func(s Store) error {
		return Replace(c.Context(), s, q.ID, root)
	})
	if err != nil {
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			return PersistenceInconsistencyError(q.ID)
		}
		return fmt.Errorf("save tree for query %s: %w", q.ID, err)
	}
	return c.JSON(fiber.Map{"data": root})
}

// Execute handles POST /api/queries/:queryId/execute. A proposed tree may be
// passed under "groups" to preview results before saving; otherwise the
// persisted tree runs.
func (h *Handler) Execute(c *fiber.Ctx) error {
	q, err := h.resolveQuery(c)
	if err != nil {
		return err
	}

	var body executeRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	var root *Group
	if len(body.Groups) > 0 {
		// previews are client payloads: validate before running
		root, err = func() (*Group, error) {
			r, appErr := h.assembleTree(q, body.Groups)
			if appErr != nil {
				return nil, appErr
			}
			if errs := Validate(r, q.EntityID, h.registry); len(errs) > 0 {
				return nil, ValidationFailedError(errs)
			}
			return r, nil
		}()
		if err != nil {
			return err
		}
	} else {
		root, err = h.loadTree(c.Context(), q.ID)
		if err != nil {
			return err
		}
		if root == nil {
			// no stored tree filters nothing out
			root = &Group{QueryID: q.ID, Operator: GroupAnd}
		}
	}

	instances, err := h.instances.ListInstances(c.Context(), q.EntityID)
	if err != nil {
		return fmt.Errorf("list instances for entity %s: %w", q.EntityID, err)
	}

	started := time.Now()
	result, err := Execute(root, h.registry, instances, body.Page, body.PageSize, h.limits)
	if err != nil {
		return ValidationFailedError([]NodeError{{NodeID: root.ID, Message: err.Error()}})
	}

	h.events.Record(instrument.Event{
		EventType:  "query.execute",
		QueryID:    q.ID,
		EntityID:   q.EntityID,
		UserID:     userID(c),
		DurationMs: time.Since(started).Milliseconds(),
		Matched:    int64(result.TotalCount),
		Status:     "ok",
	})

	return c.JSON(result)
}

func (h *Handler) resolveQuery(c *fiber.Ctx) (*Query, error) {
	id := c.Params("queryId")
	q, err := h.store.GetQuery(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError("query", id)
		}
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}
	return q, nil
}

func (h *Handler) loadTree(ctx context.Context, queryID string) (*Group, error) {
	groups, rules, err := h.store.ListTree(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load tree for query %s: %w", queryID, err)
	}
	root, err := BuildTree(groups, rules)
	if err != nil {
		return nil, fmt.Errorf("assemble tree for query %s: %w", queryID, err)
	}
	return root, nil
}

// assembleTree turns a client-supplied groups payload into an indexed tree.
// Exactly one root group is expected.
func (h *Handler) assembleTree(q *Query, groups []*Group) (*Group, *AppError) {
	if len(groups) != 1 {
		return nil, ValidationFailedError([]NodeError{{Message: "exactly one root group is required"}})
	}
	root := groups[0]
	root.QueryID = q.ID
	root.ParentGroupID = nil
	if _, err := FromRoot(root); err != nil {
		return nil, ValidationFailedError([]NodeError{{Message: err.Error()}})
	}
	if h.limits.MaxDepth > 0 && Depth(root) > h.limits.MaxDepth {
		return nil, ValidationFailedError([]NodeError{{
			NodeID:  root.ID,
			Message: fmt.Sprintf("query tree exceeds maximum depth %d", h.limits.MaxDepth),
		}})
	}
	return root, nil
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

func userID(c *fiber.Ctx) string {
	if u := getUser(c); u != nil {
		return u.ID
	}
	return ""
}

func requireContentEditor(c *fiber.Ctx) error {
	user := getUser(c)
	if user == nil {
		return UnauthorizedError("Authentication required")
	}
	if !user.CanEditContent() {
		return ForbiddenError("Content manager access required")
	}
	return nil
}
