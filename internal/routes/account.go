package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/account"
)

// RegisterAccountRoutes wires public account endpoints. The profile and
// password endpoints live on the protected group in Setup.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Post("/account/register", h.Register)
	r.Get("/verify-account/:token", h.Verify)
}
