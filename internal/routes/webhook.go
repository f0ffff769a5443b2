package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cowriepay/cowrie/internal/webhook"
)

// RegisterWebhookRoutes wires the inbound provider event endpoints.
func RegisterWebhookRoutes(r fiber.Router, h *webhook.Handler) {
	r.Post("/webhooks/ngn", h.NGN)
	r.Post("/webhooks/multicurrency", h.Multicurrency)
}
