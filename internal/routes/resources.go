package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/resources"
)

// RegisterResourceRoutes wires resource endpoints. Browsing is public, with
// the caller resolved opportunistically so content gating can recognize
// owners; purchase history and buying carry the auth guard per route. The
// purchases route is registered before the parameterized one so it is not
// swallowed by :id.
func RegisterResourceRoutes(r fiber.Router, h *resources.Handler, optionalAuth, requireAuth fiber.Handler) {
	r.Get("/resources", optionalAuth, h.List)
	r.Get("/resources/purchases", requireAuth, h.Purchases)
	r.Get("/resources/:id", optionalAuth, h.Get)
	r.Post("/resources/:id/buy", requireAuth, h.Buy)
}
