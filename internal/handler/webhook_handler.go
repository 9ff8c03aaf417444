package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-product-lens/internal/middleware"
	"github.com/arturoeanton/go-product-lens/internal/service"
)

// WebhookHandler receives Messenger page events.
type WebhookHandler struct {
	relay       *service.RelayService
	verifyToken string
	appSecret   string
}

// NewWebhookHandler creates a new webhook handler. Deliveries must be signed
// with appSecret.
func NewWebhookHandler(relay *service.RelayService, verifyToken, appSecret string) *WebhookHandler {
	return &WebhookHandler{relay: relay, verifyToken: verifyToken, appSecret: appSecret}
}

// Register sets up webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Get("/webhook", h.Verify)
	router.Post("/webhook", middleware.RequireHubSignature(h.appSecret), h.Receive)
}

// Verify answers the subscription handshake with the challenge as plain text.
func (h *WebhookHandler) Verify(c fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(challenge)
	}
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "verification failed"})
}

type webhookEvent struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender *struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message *struct {
				Text        string `json:"text"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// Receive dispatches page events: image attachments start a background relay
// job, greetings get a text reply. It answers immediately.
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	var evt webhookEvent
	if err := c.Bind().JSON(&evt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if evt.Object != "page" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	var jobs []string
	for _, entry := range evt.Entry {
		for _, m := range entry.Messaging {
			if m.Sender == nil || m.Message == nil {
				continue
			}
			sender := m.Sender.ID

			if len(m.Message.Attachments) > 0 {
				for _, att := range m.Message.Attachments {
					if att.Type == "image" && att.Payload.URL != "" {
						jobs = append(jobs, h.relay.Enqueue(sender, att.Payload.URL))
					}
				}
				continue
			}

			if service.IsGreeting(m.Message.Text) {
				if err := h.relay.Greet(c.Context(), sender); err != nil {
					slog.Warn("greeting failed", "recipient", sender, "error", err)
				}
			}
		}
	}

	return c.JSON(fiber.Map{"status": "ok", "jobs": jobs})
}
