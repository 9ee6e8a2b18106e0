package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/catalog"
)

// RegisterCatalogRoutes wires package and resource management endpoints.
func RegisterCatalogRoutes(r fiber.Router, h *catalog.Handler) {
	r.Get("/packages", h.ListPackages)
	r.Post("/packages", h.CreatePackage)
	r.Post("/resources", h.CreateResource)
}
