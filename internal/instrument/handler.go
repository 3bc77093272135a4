package instrument

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/store"
)

// Handler exposes the telemetry read API (admin only).
type Handler struct {
	db *store.Store
}

func NewHandler(db *store.Store) *Handler {
	return &Handler{db: db}
}

// List handles GET /api/_events: recent events, newest first, with optional
// event_type and query_id filters.
func (h *Handler) List(c *fiber.Ctx) error {
	var conditions []string
	var args []any

	if v := c.Query("event_type"); v != "" {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if v := c.Query("query_id"); v != "" {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf("query_id = $%d", len(args)))
	}

	limit := c.QueryInt("limit", 100)
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	args = append(args, limit)

	sql := "SELECT id::text, event_type, query_id, entity_id, user_id, duration_ms, matched, status, metadata, created_at FROM _events"
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := store.QueryRows(c.Context(), h.db.Pool, sql, args...)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

// RegisterInstrumentRoutes mounts the telemetry read API. Callers pass the
// auth and admin middleware.
func RegisterInstrumentRoutes(app *fiber.App, h *Handler, mw ...fiber.Handler) {
	api := app.Group("/api", mw...)
	api.Get("/_events", h.List)
}
