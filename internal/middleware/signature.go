package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// HubSignatureHeader carries the HMAC-SHA256 of a Messenger webhook body.
const HubSignatureHeader = "X-Hub-Signature-256"

const hubSignaturePrefix = "sha256="

// RequireHubSignature only lets webhook deliveries through whose body is signed
// with the app secret. An empty secret locks the route.
func RequireHubSignature(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if secret == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "webhook signing secret not configured"})
		}
		if !ValidHubSignature(secret, c.Body(), c.Get(HubSignatureHeader)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
		}
		return c.Next()
	}
}

// SignHubPayload returns the header value Messenger sends for body.
func SignHubPayload(secret string, body []byte) string {
	return hubSignaturePrefix + hex.EncodeToString(hubMAC(secret, body))
}

// ValidHubSignature checks a "sha256=<hex>" header against body in constant time.
func ValidHubSignature(secret string, body []byte, header string) bool {
	if secret == "" || !strings.HasPrefix(header, hubSignaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, hubSignaturePrefix))
	if err != nil {
		return false
	}
	return hmac.Equal(got, hubMAC(secret, body))
}

func hubMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
