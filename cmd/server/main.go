package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-product-lens/internal/adapter/ai"
	"github.com/arturoeanton/go-product-lens/internal/adapter/media"
	"github.com/arturoeanton/go-product-lens/internal/adapter/messenger"
	"github.com/arturoeanton/go-product-lens/internal/adapter/store"
	"github.com/arturoeanton/go-product-lens/internal/handler"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/mcp"
	"github.com/arturoeanton/go-product-lens/internal/middleware"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/service"
	"github.com/arturoeanton/go-product-lens/pkg/config"

	_ "github.com/lib/pq"
)

// auditStore persists and lists audit records.
type auditStore interface {
	middleware.AuditWriter
	handler.AuditReader
}

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting ProductLens",
		"port", cfg.Port,
		"catalog", cfg.CatalogDriver,
		"detector", cfg.DetectorURL,
		"coarse", cfg.CoarseURL,
		"fine", cfg.FineURL,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Models ───────────────────────────────────────────────────────────
	coarsePre := imaging.Preprocess{Model: cfg.CoarseModel, Mode: imaging.ModeSquash, Size: cfg.CoarseInputSize}
	finePre := imaging.Preprocess{Model: cfg.FineModel, Mode: imaging.ModeCenter, Resize: cfg.FineResize, Crop: cfg.FineCrop}
	for _, p := range []imaging.Preprocess{coarsePre, finePre} {
		if err := p.Validate(); err != nil {
			slog.Error("invalid preprocessing", "error", err)
			os.Exit(1)
		}
	}

	pool := service.NewInferencePool(cfg.InferenceWorkers, cfg.InferenceSerialize)
	models := &service.Models{
		Localizer: service.NewLocalizer(
			ai.NewDetectorClient(ai.EndpointConfig{BaseURL: cfg.DetectorURL, Model: cfg.DetectorModel, Token: cfg.InferenceToken}),
			pool,
			service.LocalizerConfig{Labels: cfg.DetectorLabels, MinConfidence: cfg.DetectorMinConfidence, Margin: cfg.CropMargin},
		),
		Coarse: service.NewCoarseEmbedder(
			ai.NewEncoderClient(ai.EndpointConfig{BaseURL: cfg.CoarseURL, Model: cfg.CoarseModel, Token: cfg.InferenceToken}),
			pool,
			service.EmbedderConfig{Preprocess: coarsePre, Dimension: cfg.CoarseDimension},
		),
		Fine: service.NewFineEmbedder(
			ai.NewEncoderClient(ai.EndpointConfig{BaseURL: cfg.FineURL, Model: cfg.FineModel, Token: cfg.InferenceToken}),
			pool,
			service.EmbedderConfig{Preprocess: finePre, Dimension: cfg.FineDimension},
		),
	}

	readyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	err = models.WaitReady(readyCtx)
	cancel()
	if err != nil {
		slog.Error("models not ready", "error", err)
		os.Exit(1)
	}

	// ── Catalog ──────────────────────────────────────────────────────────
	catalog, audit, closeStore, err := openCatalog(cfg)
	if err != nil {
		slog.Error("failed to open catalog", "driver", cfg.CatalogDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	schemaCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = catalog.EnsureSchema(schemaCtx, models.Schemas())
	cancel()
	if err != nil {
		slog.Error("catalog schema check failed", "error", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	mediaStore, err := media.NewLocalStore(cfg.MediaDir, cfg.PublicBaseURL)
	if err != nil {
		slog.Error("failed to prepare media store", "error", err)
		os.Exit(1)
	}
	fetcher := media.NewHTTPFetcher(int64(cfg.MaxUploadBytes()))
	attachmentFetcher := media.NewHTTPFetcher(int64(cfg.MaxUploadBytes()), cfg.FetchAllowedHosts...)
	fb := messenger.NewFacebookClient(cfg.FBGraphURL, cfg.FBPageAccessToken, cfg.FBRatePerSecond)
	if cfg.FBPageAccessToken == "" {
		slog.Warn("FB_PAGE_ACCESS_TOKEN is not set, chat replies will fail")
	}
	if cfg.FBAppSecret == "" {
		slog.Warn("FB_APP_SECRET is not set, webhook deliveries will be refused")
	}

	// ── Services ─────────────────────────────────────────────────────────
	matchService := service.NewMatchService(models, catalog, service.MatchConfig{
		MatchCount:      cfg.MatchCount,
		LooseThreshold:  cfg.LooseThreshold,
		StrictThreshold: cfg.StrictThreshold,
	})
	catalogService := service.NewCatalogService(models, catalog, mediaStore, cfg.APISecret)
	jobTracker := service.NewJobTracker(cfg.JobRetention)
	relayService := service.NewRelayService(matchService, attachmentFetcher, fb, jobTracker)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		BodyLimit:    cfg.MaxUploadBytes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.APIKeyHeader},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	app.Use(middleware.AuditMiddleware(audit))

	app.Get("/media*", static.New(mediaStore.Dir()))

	searchLimit := limiter.New(limiter.Config{
		Max:        cfg.SearchRatePerMinute,
		Expiration: time.Minute,
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})

	// ── Public Routes ────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	handler.NewHealthHandler(cfg.AppName).Register(app, api)

	searchHandler := handler.NewSearchHandler(matchService)
	searchHandler.Register(app, searchLimit)
	searchHandler.Register(api, searchLimit)

	handler.NewWebhookHandler(relayService, cfg.FBVerifyToken, cfg.FBAppSecret).Register(app)
	handler.NewCatalogHandler(catalogService, cfg.APISecret).Register(api)

	// ── Admin Routes ─────────────────────────────────────────────────────
	requireKey := middleware.RequireAPIKey(cfg.APISecret)
	api.Use("/jobs", requireKey)
	api.Use("/audit", requireKey)
	handler.NewJobsHandler(jobTracker).Register(api)
	handler.NewAuditHandler(audit).Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(matchService, catalogService, fetcher, audit, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	if n, err := catalog.Count(context.Background()); err == nil {
		slog.Info("📚 Catalog loaded", "products", n)
	}
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// openCatalog connects the configured catalog backend and its audit log.
func openCatalog(cfg *config.Config) (port.CatalogStore, auditStore, func(), error) {
	switch cfg.CatalogDriver {
	case "postgres":
		pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pgStore.Migrate(context.Background()); err != nil {
			pgStore.Close()
			return nil, nil, nil, err
		}
		return store.NewVectorStore(pgStore), pgStore, func() { pgStore.Close() }, nil
	case "sqlite":
		sqlite, err := store.NewSQLiteCatalog(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlite, sqlite, func() { sqlite.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown catalog driver %q", cfg.CatalogDriver)
}
