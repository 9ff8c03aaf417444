package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-product-lens/internal/middleware"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/service"
)

// CatalogHandler handles admin catalog endpoints.
type CatalogHandler struct {
	catalog  *service.CatalogService
	adminKey string
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog *service.CatalogService, adminKey string) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, adminKey: adminKey}
}

// Register sets up catalog routes.
func (h *CatalogHandler) Register(router fiber.Router) {
	products := router.Group("/products")
	products.Post("/", h.Create)
	products.Get("/", middleware.RequireAPIKey(h.adminKey), h.List)
}

// Create registers a reference product from a multipart form (name, price, file).
func (h *CatalogHandler) Create(c fiber.Ctx) error {
	// The credential is checked before the body is touched.
	credential := c.Get(middleware.APIKeyHeader)
	if !h.catalog.Authorized(credential) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	data, fh, err := readUpload(c, "file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	entry, err := h.catalog.Register(c.Context(), service.RegisterRequest{
		Credential:  credential,
		Name:        c.FormValue("name"),
		Price:       c.FormValue("price"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Image:       data,
	})
	switch {
	case err == nil:
	case errors.Is(err, port.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, port.ErrInvalidImage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image"})
	case errors.Is(err, port.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrModelUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "model unavailable"})
	default:
		slog.Error("product registration failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "ok",
		"product": entry.Name,
		"id":      entry.ID,
		"image":   entry.ImageURL,
	})
}

// List returns catalog metadata and the total count.
func (h *CatalogHandler) List(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	entries, err := h.catalog.List(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	total, err := h.catalog.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"products": entries,
		"count":    len(entries),
		"total":    total,
	})
}
