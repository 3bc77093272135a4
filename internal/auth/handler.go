package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/metadata"
	"canvas-backend/internal/query"
	"canvas-backend/internal/store"
)

// Handler serves login, refresh and logout.
type Handler struct {
	db     *store.Store
	secret string
}

func NewHandler(db *store.Store, secret string) *Handler {
	return &Handler{db: db, secret: secret}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return query.NewAppError("INVALID_PAYLOAD", fiber.StatusBadRequest, "Invalid JSON body")
	}
	if req.Email == "" || req.Password == "" {
		return query.NewAppError("INVALID_PAYLOAD", fiber.StatusBadRequest, "email and password are required")
	}

	row, err := store.QueryRow(c.Context(), h.db.Pool,
		`SELECT id, password_hash, roles FROM _users WHERE email = $1 AND active = true`,
		req.Email,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return query.UnauthorizedError("invalid credentials")
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, _ := row["password_hash"].(string)
	if !CheckPassword(req.Password, hash) {
		return query.UnauthorizedError("invalid credentials")
	}

	userID, _ := row["id"].(string)
	pair, err := h.issueTokenPair(c.Context(), userID, extractRoles(row["roles"]))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return query.NewAppError("INVALID_PAYLOAD", fiber.StatusBadRequest, "refresh_token is required")
	}

	row, err := store.QueryRow(c.Context(), h.db.Pool,
		`SELECT rt.user_id::text AS user_id, u.roles
		   FROM _refresh_tokens rt
		   JOIN _users u ON u.id = rt.user_id
		  WHERE rt.token = $1::uuid AND rt.expires_at > NOW() AND u.active = true`,
		req.RefreshToken,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return query.UnauthorizedError("invalid or expired refresh token")
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	// Rotate: the presented token is single use.
	if _, err := store.Exec(c.Context(), h.db.Pool,
		`DELETE FROM _refresh_tokens WHERE token = $1::uuid`, req.RefreshToken); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	userID, _ := row["user_id"].(string)
	pair, err := h.issueTokenPair(c.Context(), userID, extractRoles(row["roles"]))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		_, _ = store.Exec(c.Context(), h.db.Pool,
			`DELETE FROM _refresh_tokens WHERE token = $1::uuid`, req.RefreshToken)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// Me returns the authenticated user's id and roles.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(*metadata.UserContext)
	if !ok || user == nil {
		return query.UnauthorizedError("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":    user.ID,
		"roles": user.Roles,
	}})
}

func (h *Handler) issueTokenPair(ctx context.Context, userID string, roles []string) (*TokenPair, error) {
	access, err := MintAccessToken(userID, roles, h.secret)
	if err != nil {
		return nil, err
	}

	refresh := NewRefreshToken()
	if _, err := store.Exec(ctx,
		h.db.Pool,
		`INSERT INTO _refresh_tokens (user_id, token, expires_at) VALUES ($1::uuid, $2::uuid, $3)`,
		userID, refresh, time.Now().Add(RefreshTokenTTL),
	); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// extractRoles converts the roles column, which pgx may surface as []any
// or []string, into a plain string slice.
func extractRoles(v any) []string {
	switch roles := v.(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{metadata.RoleDefault}
	}
}

// RegisterAuthRoutes mounts the auth endpoints on the app.
func RegisterAuthRoutes(app *fiber.App, h *Handler, secret string) {
	app.Post("/api/auth/login", h.Login)
	app.Post("/api/auth/refresh", h.Refresh)
	app.Post("/api/auth/logout", h.Logout)
	app.Get("/api/auth/me", Required(secret), h.Me)
}
