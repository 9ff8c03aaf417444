package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(action, resource, resourceID, details, ip, userAgent string) error
}

// AuditMiddleware records every request.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses context objects, so capture everything before the handler runs.
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		actor := "anonymous"
		if IsAdmin(c) {
			actor = "admin"
		}

		details := map[string]interface{}{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"actor":       actor,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)
		action := auditAction(method, path)

		go func() {
			if writeErr := writer.WriteAudit(action, "api", path, string(detailsJSON), ip, userAgent); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}

func auditAction(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/search") && method == fiber.MethodPost:
		return domain.AuditActionProductSearch
	case path == "/api/v1/products" && method == fiber.MethodPost:
		return domain.AuditActionProductRegister
	case path == "/webhook" && method == fiber.MethodPost:
		return domain.AuditActionWebhookEvent
	}
	return domain.AuditActionHTTPRequest
}
