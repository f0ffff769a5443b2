package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cowriepay/cowrie/internal/wallet"
)

// RegisterWalletRoutes wires money-movement endpoints. Initiations go through
// the idempotent group; reads do not need an Idempotency-Key.
func RegisterWalletRoutes(r, idempotent fiber.Router, h *wallet.Handler) {
	idempotent.Post("/wallet/transfer", h.Transfer)
	idempotent.Post("/wallet/withdraw", h.Withdraw)
	r.Get("/wallet/balance/:currency", h.Balance)
	r.Get("/wallet/statement", h.Statement)
	r.Post("/wallet/transactions/:reference/abandon", h.Abandon)
}
