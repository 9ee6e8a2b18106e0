package credits

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/logging"
	"github.com/creditstore/creditstore/internal/payment"
)

func setupWebhookApp(t *testing.T) (*fiber.App, ledger.Store) {
	t.Helper()
	ctx := context.Background()

	store := ledger.NewInMemory()
	accounts := account.NewMemoryRepository()
	packages := catalog.NewMemoryPackageRepository()

	if err := accounts.Create(ctx, account.User{ID: "u1", Email: "u1@example.com", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	svc := NewService(store, packages, accounts, payment.StaticProvider{}, nil, logging.Discard(), "", "")
	handler := NewHandler(svc)

	app := fiber.New()
	app.Post("/webhook", handler.Webhook)
	return app, store
}

func postEvent(t *testing.T, app *fiber.App, checkoutRef, eventType string) int {
	t.Helper()
	body := fmt.Sprintf(`{"checkout_ref":%q,"type":%q}`, checkoutRef, eventType)
	req := httptest.NewRequest(fiber.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestWebhook_SettlesAndReplays(t *testing.T) {
	app, store := setupWebhookApp(t)
	ctx := context.Background()

	seed := ledger.CreditTransaction{CheckoutRef: "cs_1", UserID: "u1", Credits: 100, CreatedAt: time.Now().UTC()}
	if err := store.CreateTransaction(ctx, seed); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	for i := 0; i < 3; i++ {
		if status := postEvent(t, app, "cs_1", payment.EventCheckoutCompleted); status != fiber.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, status)
		}
	}

	b, _ := store.Balance(ctx, "u1")
	if b.Credits != 100 {
		t.Fatalf("expected balance 100 after redeliveries, got %d", b.Credits)
	}
}

func TestWebhook_UnknownTransaction(t *testing.T) {
	app, _ := setupWebhookApp(t)

	if status := postEvent(t, app, "cs_missing", payment.EventCheckoutCompleted); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestWebhook_OrphanedPayment(t *testing.T) {
	app, store := setupWebhookApp(t)
	ctx := context.Background()

	seed := ledger.CreditTransaction{CheckoutRef: "cs_ghost", UserID: "ghost", Credits: 100, CreatedAt: time.Now().UTC()}
	if err := store.CreateTransaction(ctx, seed); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	if status := postEvent(t, app, "cs_ghost", payment.EventCheckoutCompleted); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
}

func TestWebhook_MissingCheckoutRef(t *testing.T) {
	app, _ := setupWebhookApp(t)

	if status := postEvent(t, app, "", payment.EventCheckoutCompleted); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
