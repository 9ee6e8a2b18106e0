// Package ledger is the durable record of credit balances, top-up
// transactions and resource purchases. All concurrency control for the
// credit economy lives behind the Store interface: every balance mutation
// is a guarded update, never a read-modify-write in application code.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransactionNotFound indicates no credit transaction exists for the checkout reference.
	ErrTransactionNotFound = errors.New("credit transaction not found")

	// ErrDuplicateCheckout indicates a credit transaction already exists for the checkout reference.
	ErrDuplicateCheckout = errors.New("duplicate checkout reference")

	// ErrInsufficientBalance indicates a debit would take the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPurchaseNotFound indicates no purchase record exists for the (resource, user) pair.
	ErrPurchaseNotFound = errors.New("resource purchase not found")

	// ErrConcurrencyConflict indicates a guarded update lost a race against a
	// conflicting state transition. Callers should retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrent state transition conflict")
)

// Transaction status lifecycle: pending -> succeeded | expired.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusExpired   = "expired"
)

// Balance is a user's spendable credit total. UpdatedAt is nil until the
// first credit or debit creates the row.
type Balance struct {
	UserID    string
	Credits   int64
	UpdatedAt *time.Time
}

// CreditTransaction records one checkout attempt against the payment provider.
type CreditTransaction struct {
	CheckoutRef string
	UserID      string
	Credits     int64
	UnitAmount  int64
	Currency    string
	Quantity    int
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ResourcePurchase records a granted resource access. At most one exists
// per (resource, user) pair.
type ResourcePurchase struct {
	ResourceID   string
	UserID       string
	CreditsSpent int64
	CreatedAt    time.Time
}

// Store is the contract implemented by ledger backends.
//
// SettleTransaction and PurchaseResource are the two serialization points of
// the whole system: both must be atomic with respect to concurrent callers,
// either through a real database transaction or an equivalent lock.
type Store interface {
	// Balance returns the user's balance, defaulting to zero credits with a
	// nil UpdatedAt when no row exists.
	Balance(ctx context.Context, userID string) (Balance, error)

	// CreateTransaction records a new pending checkout attempt. A reused
	// checkout reference yields ErrDuplicateCheckout.
	CreateTransaction(ctx context.Context, tx CreditTransaction) error

	// TransactionByCheckout fetches the transaction for a provider-issued
	// checkout reference.
	TransactionByCheckout(ctx context.Context, checkoutRef string) (CreditTransaction, error)

	// TransactionsByUser lists a user's checkout attempts, newest first.
	TransactionsByUser(ctx context.Context, userID string) ([]CreditTransaction, error)

	// SettleTransaction flips pending -> succeeded and credits the owner's
	// balance in one atomic step. It reports credited=false without error
	// when the transaction already succeeded (idempotent replay), and
	// ErrConcurrencyConflict when the transaction is in a state that can
	// no longer succeed.
	SettleTransaction(ctx context.Context, checkoutRef string) (credited bool, err error)

	// ExpireTransaction flips pending -> expired with no balance effect.
	// Expiring an already succeeded transaction is a conflict.
	ExpireTransaction(ctx context.Context, checkoutRef string) error

	// PurchaseResource grants access to a resource by inserting the purchase
	// record and debiting the balance as one atomic unit. The unique
	// (resource, user) constraint is the exclusivity gate: when the record
	// already exists the existing purchase is returned with alreadyOwned=true
	// and no debit. A debit that would cross zero rolls the insert back and
	// yields ErrInsufficientBalance.
	PurchaseResource(ctx context.Context, userID, resourceID string, cost int64) (p ResourcePurchase, alreadyOwned bool, err error)

	// Purchase fetches the purchase record for a (resource, user) pair.
	Purchase(ctx context.Context, userID, resourceID string) (ResourcePurchase, error)

	// PurchasesByUser lists a user's purchases, newest first.
	PurchasesByUser(ctx context.Context, userID string) ([]ResourcePurchase, error)
}
