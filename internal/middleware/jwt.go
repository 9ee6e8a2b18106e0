package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/auth"
	"github.com/creditstore/creditstore/internal/config"
)

// JWTAuth returns a middleware that validates JWT access tokens and resolves
// the subject to a live account.
func JWTAuth(cfg config.Config, repo account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		sub, _ := claims["sub"].(string)

		user, err := repo.FindByID(c.UserContext(), sub)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("user_id", user.ID)
		c.Locals("email", user.Email)
		return c.Next()
	}
}

// OptionalJWTAuth resolves the caller's account when a valid bearer token is
// supplied and passes the request through anonymously otherwise. Used on
// public browsing endpoints whose responses are richer for owners.
func OptionalJWTAuth(cfg config.Config, repo account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return c.Next()
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return c.Next()
		}
		sub, _ := claims["sub"].(string)

		user, err := repo.FindByID(c.UserContext(), sub)
		if err != nil {
			return c.Next()
		}

		c.Locals("user_id", user.ID)
		c.Locals("email", user.Email)
		return c.Next()
	}
}
