package auth

import (
	"context"
	"errors"
	"time"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/config"
)

// Service issues and refreshes JWT token pairs for authenticated accounts.
type Service struct {
	cfg      config.Config
	accounts account.Repository
}

// NewService creates an auth service.
func NewService(cfg config.Config, accounts account.Repository) *Service {
	return &Service{cfg: cfg, accounts: accounts}
}

// TokenPair carries a freshly issued access/refresh token set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an already authenticated user.
func (s *Service) Login(user account.User) (TokenPair, error) {
	access, accessExp, err := s.sign(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.sign(user, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Refresh verifies the refresh token and returns a new access token if the
// account still exists.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := ParseAndVerifyHS256(refreshToken, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", 0, errors.New("invalid refresh token")
	}
	sub, _ := claims["sub"].(string)

	user, err := s.accounts.FindByID(ctx, sub)
	if err != nil {
		return "", 0, errors.New("user not found")
	}

	access, _, err := s.sign(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

func (s *Service) sign(user account.User, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := map[string]any{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := SignHS256(claims, []byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
