package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/config"
	"canvas-backend/internal/instrument"
	"canvas-backend/internal/metadata"
	"canvas-backend/internal/query"
	"canvas-backend/internal/records"
	"canvas-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Create registry and load entity/property metadata
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.Pool, reg); err != nil {
		log.Printf("WARN: Failed to load metadata: %v", err)
	}

	// 5. Execution telemetry
	var events *instrument.Recorder
	if cfg.Instrumentation.Enabled {
		events = instrument.NewRecorder(db.Pool, cfg.Instrumentation.BufferSize, cfg.Instrumentation.FlushIntervalMs)
		defer events.Stop()
	}

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (no auth required except /me)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler, cfg.JWTSecret)

	// 9. Auth middleware for all protected routes
	authMW := auth.Required(cfg.JWTSecret)

	// 10. Record routes (auth required)
	recordStore := records.NewStore(db)
	recordHandler := records.NewHandler(db, recordStore, reg)
	records.RegisterRecordRoutes(app, recordHandler, authMW)

	// 11. Query routes (auth required)
	queryHandler := query.NewHandler(
		query.NewPGStore(db),
		reg,
		recordStore,
		query.Limits{
			DefaultPageSize: cfg.Query.DefaultPageSize,
			MaxPageSize:     cfg.Query.MaxPageSize,
			MaxDepth:        cfg.Query.MaxDepth,
		},
		events,
	)
	query.RegisterQueryRoutes(app, queryHandler, authMW)

	// 12. Telemetry read API (admin only)
	instrument.RegisterInstrumentRoutes(app, instrument.NewHandler(db), authMW, auth.RequireAdmin())

	// 13. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *query.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(query.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(query.ErrorResponse{
		Error: &query.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
