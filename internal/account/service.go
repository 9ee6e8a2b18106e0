package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/creditstore/creditstore/internal/email"
)

const minPasswordLength = 8

// Service manages the account lifecycle: registration, authentication and
// email verification.
type Service struct {
	repo       Repository
	tokens     TokenStore
	mailer     email.Sender
	publicHost string
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewService creates an account service.
func NewService(repo Repository, tokens TokenStore, mailer email.Sender, publicHost string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, mailer: mailer, publicHost: publicHost, tokenTTL: tokenTTL, logger: logger}
}

// Register creates an unverified account and dispatches a verification email.
// Email delivery is best effort: a send failure is logged and registration
// still succeeds.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return User{}, fmt.Errorf("invalid email address")
	}
	if len(reg.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if reg.FirstName == "" || reg.LastName == "" {
		return User{}, fmt.Errorf("first and last name are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error("issue verification token", "user_id", user.ID, "error", err)
		return user, nil
	}
	// Delivery happens off the request path; a slow provider must not block
	// registration.
	go s.sendVerificationEmail(user, token)

	return user, nil
}

// Authenticate verifies the email/password pair.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Verify consumes a verification token and marks the owner's account verified.
func (s *Service) Verify(ctx context.Context, token string) error {
	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	return s.repo.SetVerified(ctx, userID)
}

// ChangePassword replaces the password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}

// Get fetches an account by identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

const emailSendTimeout = 15 * time.Second

// sendVerificationEmail runs in its own goroutine, detached from the request
// context so an early client disconnect cannot cancel delivery.
func (s *Service) sendVerificationEmail(user User, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/verify-account/%s", s.publicHost, token)
	msg := email.Message{
		To:      user.Email,
		Subject: "Verify your account",
		HTML: fmt.Sprintf("Go to <a href='%s'>%s</a> to verify your account. This link will expire in %s.",
			url, url, s.tokenTTL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("send verification email", "user_id", user.ID, "error", err)
	}
}
