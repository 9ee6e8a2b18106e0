// Package payment connects to the external checkout provider. The engine
// only ever sees an opaque session reference and a redirect URL; webhook
// signature verification happens upstream of this process.
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Webhook event types delivered by the provider.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Payment states carried on completed-session events. An empty status is
// treated as paid; some provider API versions omit the field.
const (
	StatusPaid              = "paid"
	StatusUnpaid            = "unpaid"
	StatusNoPaymentRequired = "no_payment_required"
)

// Event is an already signature-verified, parsed provider notification.
type Event struct {
	CheckoutRef string `json:"checkout_ref"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

// CheckoutSession identifies one payment attempt at the provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutInput carries the line item and redirect targets for a session.
type CheckoutInput struct {
	PackageID     string
	Credits       int64
	UnitAmount    int64
	Currency      string
	Quantity      int
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// Provider is the contract for checkout-session lifecycle at the payment
// processor.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, input CheckoutInput) (CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// StaticProvider simulates a provider that approves every session. Used in
// development mode and tests.
type StaticProvider struct{}

// CreateCheckoutSession issues a synthetic session reference and URL.
func (StaticProvider) CreateCheckoutSession(_ context.Context, _ CheckoutInput) (CheckoutSession, error) {
	id := "cs_" + uuid.NewString()
	return CheckoutSession{ID: id, URL: fmt.Sprintf("https://checkout.example.com/pay/%s", id)}, nil
}

// ExpireCheckoutSession is a no-op for the simulated provider.
func (StaticProvider) ExpireCheckoutSession(_ context.Context, _ string) error {
	return nil
}
