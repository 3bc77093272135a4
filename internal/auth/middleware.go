package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/metadata"
	"canvas-backend/internal/query"
)

// Required returns middleware that validates the Bearer token and stores
// the authenticated user in c.Locals("user").
func Required(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return query.UnauthorizedError("missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return query.UnauthorizedError("invalid authorization header")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return query.UnauthorizedError("invalid or expired token")
		}

		roles := claims.Roles
		if len(roles) == 0 {
			roles = []string{metadata.RoleDefault}
		}

		c.Locals("user", &metadata.UserContext{
			ID:    claims.Subject,
			Roles: roles,
		})
		return c.Next()
	}
}

// RequireAdmin returns middleware that rejects non-admin users. It must
// run after Required.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(*metadata.UserContext)
		if !ok || user == nil {
			return query.UnauthorizedError("authentication required")
		}
		if !user.IsAdmin() {
			return query.ForbiddenError("admin role required")
		}
		return c.Next()
	}
}
