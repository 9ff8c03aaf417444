package handler

import (
	"github.com/gofiber/fiber/v3"
)

// HealthHandler reports liveness. It is only mounted once the models are ready.
type HealthHandler struct {
	appName string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(appName string) *HealthHandler {
	return &HealthHandler{appName: appName}
}

// Register sets up health routes on the app root and the API group.
func (h *HealthHandler) Register(app fiber.Router, api fiber.Router) {
	app.Get("/", h.Status)
	api.Get("/health", h.Status)
}

// Status returns the service status.
func (h *HealthHandler) Status(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "online",
		"app":     h.appName,
		"version": "1.0.0",
	})
}
