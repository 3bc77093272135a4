package query

import "github.com/gofiber/fiber/v2"

// RegisterQueryRoutes mounts the query engine endpoints under /api. The
// given middleware (typically auth) runs before every handler; role checks
// happen per handler.
func RegisterQueryRoutes(app *fiber.App, h *Handler, mw ...fiber.Handler) {
	api := app.Group("/api", mw...)

	api.Post("/queries", h.CreateQuery)
	api.Get("/queries/:queryId", h.GetQuery)
	api.Delete("/queries/:queryId", h.DeleteQuery)

	api.Get("/queries/:queryId/groups", h.ListGroups)
	api.Post("/queries/:queryId/groups", h.CreateGroup)
	api.Put("/queries/:queryId/groups", h.SaveTree)
	api.Delete("/queries/:queryId/groups/:groupId", h.DeleteGroup)

	api.Post("/queries/:queryId/rules", h.CreateRule)
	api.Post("/queries/:queryId/execute", h.Execute)
}
