package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/credits"
)

// RegisterCreditRoutes wires authenticated credit ledger endpoints. The
// balance endpoint lives under /account/credits and the provider webhook on
// the public surface; both are registered in Setup.
func RegisterCreditRoutes(r fiber.Router, h *credits.Handler) {
	group := r.Group("/credits")
	group.Get("/transactions", h.Transactions)
	group.Post("/buy", h.Buy)
}
