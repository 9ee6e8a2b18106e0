package resources

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/logging"
)

// fakeAuth injects a user id the way the JWT middleware does.
func fakeAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

func setupResourceApp(t *testing.T, userID string) (*fiber.App, ledger.Store) {
	t.Helper()
	ctx := context.Background()

	store := ledger.NewInMemory()
	repo := catalog.NewMemoryResourceRepository()
	now := time.Now().UTC()
	res := catalog.Resource{
		ID: "r1", Cost: 40, Name: "premium-guide",
		Title: "Premium Guide", Content: "the good stuff",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Create(ctx, res); err != nil {
		t.Fatalf("seed resource: %v", err)
	}

	handler := NewHandler(NewService(store, repo, nil, logging.Discard()))
	app := fiber.New()
	group := app.Group("", fakeAuth(userID))
	group.Get("/resources/:id", handler.Get)
	group.Post("/resources/:id/buy", handler.Buy)
	return app, store
}

func getResource(t *testing.T, app *fiber.App, id string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/resources/"+id, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Resource map[string]any `json:"resource"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && resp.StatusCode == fiber.StatusOK {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, payload.Resource
}

func TestHandler_GetHidesContentFromNonOwners(t *testing.T) {
	app, _ := setupResourceApp(t, "stranger")

	status, res := getResource(t, app, "r1")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res["name"] != "premium-guide" {
		t.Fatalf("metadata must stay visible, got %v", res["name"])
	}
	if _, ok := res["content"]; ok {
		t.Fatal("content must be hidden from non-owners")
	}
}

func TestHandler_BuyThenGetRevealsContent(t *testing.T) {
	app, store := setupResourceApp(t, "u1")
	ledger.SeedBalance(store, "u1", 40)

	req := httptest.NewRequest(fiber.MethodPost, "/resources/r1/buy", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	status, res := getResource(t, app, "r1")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res["content"] != "the good stuff" {
		t.Fatalf("owner must see content, got %v", res["content"])
	}
}

func TestHandler_BuyInsufficientBalance(t *testing.T) {
	app, store := setupResourceApp(t, "u2")
	ledger.SeedBalance(store, "u2", 10)

	req := httptest.NewRequest(fiber.MethodPost, "/resources/r1/buy", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
}

func TestHandler_GetUnknownResource(t *testing.T) {
	app, _ := setupResourceApp(t, "u1")

	status, _ := getResource(t, app, "nope")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
