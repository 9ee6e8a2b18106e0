package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_CreateCheckoutSession(t *testing.T) {
	var gotAuth, gotPath string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_live_1","url":"https://checkout.example.com/c/cs_live_1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key")
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutInput{
		PackageID:     "pkg100",
		Credits:       100,
		UnitAmount:    999,
		Currency:      "usd",
		Quantity:      1,
		SuccessURL:    "https://app.example.com/success",
		CancelURL:     "https://app.example.com/cancel",
		CustomerEmail: "jane@example.com",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if session.ID != "cs_live_1" {
		t.Fatalf("expected session id cs_live_1, got %s", session.ID)
	}
	if !strings.Contains(session.URL, "cs_live_1") {
		t.Fatalf("unexpected session url %s", session.URL)
	}
	if gotAuth != "Bearer sk_test_key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotPath != "/v1/checkout/sessions" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if got := gotForm["line_items[0][price_data][unit_amount]"]; len(got) != 1 || got[0] != "999" {
		t.Fatalf("unexpected unit_amount %v", got)
	}
	if got := gotForm["customer_email"]; len(got) != 1 || got[0] != "jane@example.com" {
		t.Fatalf("unexpected customer_email %v", got)
	}
}

func TestClient_CreateCheckoutSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key")
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutInput{Currency: "usd"})
	if err == nil {
		t.Fatal("expected api error")
	}
	if !strings.Contains(err.Error(), "Your card was declined.") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestClient_ExpireCheckoutSession(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"cs_live_1","url":""}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key")
	if err := client.ExpireCheckoutSession(context.Background(), "cs_live_1"); err != nil {
		t.Fatalf("expire session: %v", err)
	}
	if gotPath != "/v1/checkout/sessions/cs_live_1/expire" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}
