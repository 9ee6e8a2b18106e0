package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Send(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "re_test_key", "noreply@example.com")
	err := client.Send(context.Background(), Message{
		To:      "jane@example.com",
		Subject: "Verify your account",
		HTML:    "<a href='x'>verify</a>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAuth != "Bearer re_test_key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody["from"] != "noreply@example.com" {
		t.Fatalf("unexpected from %v", gotBody["from"])
	}
	to, _ := gotBody["to"].([]any)
	if len(to) != 1 || to[0] != "jane@example.com" {
		t.Fatalf("unexpected to %v", gotBody["to"])
	}
	headers, _ := gotBody["headers"].(map[string]any)
	if ref, _ := headers["X-Entity-Ref-ID"].(string); ref == "" {
		t.Fatal("expected X-Entity-Ref-ID header")
	}
}

func TestClient_SendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "re_test_key", "noreply@example.com")
	if err := client.Send(context.Background(), Message{To: "jane@example.com"}); err == nil {
		t.Fatal("expected api error")
	}
}
