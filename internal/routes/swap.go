package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cowriepay/cowrie/internal/swap"
)

// RegisterSwapRoutes wires currency conversion endpoints. Quote creation is
// cheap and repeatable; execution is the one-shot step.
func RegisterSwapRoutes(r, idempotent fiber.Router, h *swap.Handler) {
	r.Post("/swaps/quote", h.Quote)
	idempotent.Post("/swaps/execute", h.Execute)
}
