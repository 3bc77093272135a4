package auth

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/metadata"
	"canvas-backend/internal/query"
)

func protectedApp(t *testing.T, secret string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var appErr *query.AppError
			if e, ok := err.(*query.AppError); ok {
				appErr = e
			} else {
				appErr = &query.AppError{Code: "INTERNAL_ERROR", Status: 500, Message: err.Error()}
			}
			return c.Status(appErr.Status).JSON(query.ErrorResponse{Error: appErr})
		},
	})
	app.Get("/secure", Required(secret), func(c *fiber.Ctx) error {
		user := c.Locals("user").(*metadata.UserContext)
		return c.JSON(fiber.Map{"id": user.ID, "roles": user.Roles})
	})
	return app
}

func TestRequired_MissingHeader(t *testing.T) {
	app := protectedApp(t, "s")
	req, _ := http.NewRequest("GET", "/secure", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequired_BadToken(t *testing.T) {
	app := protectedApp(t, "s")
	req, _ := http.NewRequest("GET", "/secure", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequired_ValidToken(t *testing.T) {
	secret := "s"
	token, err := MintAccessToken("user-1", []string{metadata.RoleAdmin}, secret)
	if err != nil {
		t.Fatal(err)
	}

	app := protectedApp(t, secret)
	req, _ := http.NewRequest("GET", "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequired_TokenWithoutRolesGetsDefault(t *testing.T) {
	secret := "s"
	token, err := MintAccessToken("user-1", nil, secret)
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	app.Get("/secure", Required(secret), func(c *fiber.Ctx) error {
		user := c.Locals("user").(*metadata.UserContext)
		if len(user.Roles) != 1 || user.Roles[0] != metadata.RoleDefault {
			t.Fatalf("expected default role fallback, got %v", user.Roles)
		}
		return c.SendStatus(204)
	})

	req, _ := http.NewRequest("GET", "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := app.Test(req, -1); err != nil {
		t.Fatal(err)
	}
}
