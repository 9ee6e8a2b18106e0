package catalog

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler exposes catalog management endpoints. Authorization for these
// privileged operations is left to the integrating deployment, e.g. a
// gateway-level policy.
type Handler struct {
	packages  PackageRepository
	resources ResourceRepository
}

// NewHandler builds a catalog HTTP handler.
func NewHandler(packages PackageRepository, resources ResourceRepository) *Handler {
	return &Handler{packages: packages, resources: resources}
}

type createPackageRequest struct {
	ID         string `json:"id"`
	Credits    int64  `json:"credits"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type packageResponse struct {
	ID         string    `json:"id"`
	Credits    int64     `json:"credits"`
	UnitAmount int64     `json:"unit_amount"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPackageResponse(pkg CreditPackage) packageResponse {
	return packageResponse{
		ID:         pkg.ID,
		Credits:    pkg.Credits,
		UnitAmount: pkg.UnitAmount,
		Currency:   pkg.Currency,
		CreatedAt:  pkg.CreatedAt,
	}
}

// CreatePackage registers a purchasable credit package.
func (h *Handler) CreatePackage(c *fiber.Ctx) error {
	var req createPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Credits <= 0 {
		return fiber.NewError(http.StatusBadRequest, "credits must be positive")
	}
	if req.UnitAmount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "unit_amount must be positive")
	}
	if !SupportedCurrency(req.Currency) {
		return fiber.NewError(http.StatusBadRequest, ErrUnsupportedCurrency.Error())
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	pkg := CreditPackage{
		ID:         req.ID,
		Credits:    req.Credits,
		UnitAmount: req.UnitAmount,
		Currency:   strings.ToLower(req.Currency),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.packages.Create(c.UserContext(), pkg); err != nil {
		if errors.Is(err, ErrPackageExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"package": toPackageResponse(pkg)})
}

// ListPackages returns all purchasable credit packages.
func (h *Handler) ListPackages(c *fiber.Ctx) error {
	packages, err := h.packages.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "packages unavailable")
	}
	res := make([]packageResponse, 0, len(packages))
	for _, pkg := range packages {
		res = append(res, toPackageResponse(pkg))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"packages": res})
}

type createResourceRequest struct {
	ID          string `json:"id"`
	Cost        int64  `json:"cost"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

// CreateResource registers a priced content item.
func (h *Handler) CreateResource(c *fiber.Ctx) error {
	var req createResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Cost < 0 {
		return fiber.NewError(http.StatusBadRequest, "cost must not be negative")
	}
	if req.Name == "" || req.Title == "" || req.Content == "" {
		return fiber.NewError(http.StatusBadRequest, "name, title and content are required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	res := Resource{
		ID:          req.ID,
		Cost:        req.Cost,
		Name:        req.Name,
		Description: req.Description,
		Title:       req.Title,
		Content:     req.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.resources.Create(c.UserContext(), res); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"resource": fiber.Map{
		"id":         res.ID,
		"cost":       res.Cost,
		"name":       res.Name,
		"created_at": res.CreatedAt,
	}})
}
