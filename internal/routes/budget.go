package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cowriepay/cowrie/internal/budget"
)

// RegisterBudgetRoutes wires budget endpoints.
func RegisterBudgetRoutes(r, idempotent fiber.Router, h *budget.Handler) {
	idempotent.Post("/budgets", h.Create)
	idempotent.Post("/budgets/:id/topup", h.TopUp)
	idempotent.Post("/budgets/:id/spend", h.Spend)
	r.Get("/budgets", h.List)
	r.Get("/budgets/:id", h.Get)
}
