package credits

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/payment"
)

// Handler exposes credit purchase and balance endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a credits HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type buyRequest struct {
	PackageID string `json:"package_id"`
}

// Buy initiates a credit top-up and returns the checkout redirect URL.
func (h *Handler) Buy(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.PackageID == "" {
		return fiber.NewError(http.StatusBadRequest, "package_id is required")
	}

	checkout, err := h.service.Initiate(c.UserContext(), uid, req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrPackageNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInitFailed):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"checkout_ref": checkout.Transaction.CheckoutRef,
		"url":          checkout.URL,
	})
}

// Balance returns the authenticated user's credit balance, defaulting to
// zero when no balance row exists yet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "balance unavailable")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"credits":    balance.Credits,
		"updated_at": balance.UpdatedAt,
	})
}

type transactionResponse struct {
	CheckoutRef string    `json:"checkout_ref"`
	Credits     int64     `json:"credits"`
	UnitAmount  int64     `json:"unit_amount"`
	Currency    string    `json:"currency"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transactions lists the authenticated user's top-up transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	txs, err := h.service.Transactions(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, "transactions unavailable")
	}
	res := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		res = append(res, transactionResponse{
			CheckoutRef: tx.CheckoutRef,
			Credits:     tx.Credits,
			UnitAmount:  tx.UnitAmount,
			Currency:    tx.Currency,
			Quantity:    tx.Quantity,
			Status:      tx.Status,
			CreatedAt:   tx.CreatedAt,
			UpdatedAt:   tx.UpdatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": res})
}

// Webhook consumes an already signature-verified provider event. Only
// transient storage faults map to a retryable status; idempotent replays
// report success so the provider stops redelivering.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var ev payment.Event
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if ev.CheckoutRef == "" {
		return fiber.NewError(http.StatusBadRequest, "checkout_ref is required")
	}

	err := h.service.ApplyNotification(c.UserContext(), ev)
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(fiber.Map{"received": true})
	case errors.Is(err, ErrUnknownTransaction):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrphanedPayment):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		// Lost a race against a conflicting transition; provider may retry.
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		// Transient storage fault: a retryable status makes the provider redeliver.
		return fiber.NewError(http.StatusServiceUnavailable, "temporarily unable to process event")
	}
}
