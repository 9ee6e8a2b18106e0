package resources

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
)

// Handler exposes resource browsing and purchase endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a resources HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type resourceResponse struct {
	ID          string    `json:"id"`
	Cost        int64     `json:"cost"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// List returns public metadata for all resources.
func (h *Handler) List(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "resources unavailable")
	}
	res := make([]resourceResponse, 0, len(items))
	for _, item := range items {
		res = append(res, toMetadata(item))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"resources": res})
}

// Get returns one resource; the content payload is included only when the
// caller has access. Unauthenticated callers see public metadata only.
func (h *Handler) Get(c *fiber.Ctx) error {
	res, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusServiceUnavailable, "resource unavailable")
	}

	uid, _ := c.Locals("user_id").(string)
	out := toMetadata(res)
	if h.service.CanAccess(c.UserContext(), uid, res) {
		out.Title = res.Title
		out.Content = res.Content
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"resource": out})
}

type purchaseResponse struct {
	ResourceID   string    `json:"resource_id"`
	CreditsSpent int64     `json:"credits_spent"`
	CreatedAt    time.Time `json:"created_at"`
}

// Buy purchases access to a resource for the authenticated user.
func (h *Handler) Buy(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	p, err := h.service.Purchase(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrResourceNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusPaymentRequired, err.Error())
		default:
			return fiber.NewError(http.StatusServiceUnavailable, "purchase unavailable")
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"purchase": purchaseResponse{
		ResourceID:   p.ResourceID,
		CreditsSpent: p.CreditsSpent,
		CreatedAt:    p.CreatedAt,
	}})
}

// Purchases lists the authenticated user's resource purchases.
func (h *Handler) Purchases(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := h.service.Purchases(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "purchases unavailable")
	}
	res := make([]purchaseResponse, 0, len(items))
	for _, p := range items {
		res = append(res, purchaseResponse{
			ResourceID:   p.ResourceID,
			CreditsSpent: p.CreditsSpent,
			CreatedAt:    p.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"purchases": res})
}

func toMetadata(res catalog.Resource) resourceResponse {
	return resourceResponse{
		ID:          res.ID,
		Cost:        res.Cost,
		Name:        res.Name,
		Description: res.Description,
		CreatedAt:   res.CreatedAt,
	}
}
