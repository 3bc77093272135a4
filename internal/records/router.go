package records

import "github.com/gofiber/fiber/v2"

// RegisterRecordRoutes mounts instance storage endpoints under /api.
func RegisterRecordRoutes(app *fiber.App, h *Handler, mw ...fiber.Handler) {
	api := app.Group("/api", mw...)

	api.Get("/entities/:entityId/records", h.List)
	api.Post("/entities/:entityId/records", h.Create)
	api.Get("/entities/:entityId/records/:id", h.GetByID)
	api.Delete("/entities/:entityId/records/:id", h.Delete)
}
