package account

import (
	"errors"
	"time"
)

var (
	// ErrEmailTaken indicates an account already exists for the email address.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound indicates no account exists for the identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAlreadyVerified indicates the account was verified before.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrTokenNotFound indicates the verification token is unknown or expired.
	ErrTokenNotFound = errors.New("verification token not found")
)

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	Verified     bool
	CreatedAt    time.Time
}

// Registration is the data required to open an account.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}
