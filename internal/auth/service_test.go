package auth

import (
	"context"
	"testing"
	"time"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func TestSignAndVerifyHS256(t *testing.T) {
	claims := map[string]any{
		"sub": "u1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	token, err := SignHS256(claims, []byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := ParseAndVerifyHS256(token, []byte("secret"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub, _ := parsed["sub"].(string); sub != "u1" {
		t.Fatalf("expected sub u1, got %v", parsed["sub"])
	}

	if _, err := ParseAndVerifyHS256(token, []byte("wrong")); err == nil {
		t.Fatal("expected signature mismatch")
	}
	if _, err := ParseAndVerifyHS256("not.a.jwt", []byte("secret")); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	claims := map[string]any{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	token, err := SignHS256(claims, []byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, []byte("secret")); err == nil {
		t.Fatal("expected expiry rejection")
	}
}

func TestService_LoginAndRefresh(t *testing.T) {
	cfg := testConfig()
	repo := account.NewMemoryRepository()
	svc := NewService(cfg, repo)
	ctx := context.Background()

	user := account.User{ID: "u1", Email: "u1@example.com", CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := ParseAndVerifyHS256(pair.AccessToken, []byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if sub, _ := claims["sub"].(string); sub != "u1" {
		t.Fatalf("expected sub u1, got %v", claims["sub"])
	}

	access, expiresIn, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access == "" || expiresIn <= 0 {
		t.Fatal("expected fresh access token")
	}

	// Access tokens are signed with a different secret and must not refresh.
	if _, _, err := svc.Refresh(ctx, pair.AccessToken); err == nil {
		t.Fatal("access token must not be accepted as refresh token")
	}
}

func TestService_RefreshRejectsDeletedUser(t *testing.T) {
	cfg := testConfig()
	repo := account.NewMemoryRepository()
	svc := NewService(cfg, repo)

	// User never persisted.
	ghost := account.User{ID: "ghost", Email: "ghost@example.com"}
	pair, err := svc.Login(ghost)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); err == nil {
		t.Fatal("expected refresh rejection for missing user")
	}
}
