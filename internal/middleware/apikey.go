package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"
)

// APIKeyHeader carries the admin key.
const APIKeyHeader = "X-API-Key"

const adminLocal = "admin"

// RequireAPIKey only lets requests through whose X-API-Key matches key.
// An empty key locks the route.
func RequireAPIKey(key string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !ValidAPIKey(key, c.Get(APIKeyHeader)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		c.Locals(adminLocal, true)
		return c.Next()
	}
}

// ValidAPIKey compares a presented key against the configured one in constant time.
func ValidAPIKey(key, presented string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1
}

// IsAdmin reports whether the request passed RequireAPIKey.
func IsAdmin(c fiber.Ctx) bool {
	ok, _ := c.Locals(adminLocal).(bool)
	return ok
}
