// Package credits applies payment-provider events to the ledger exactly once
// per checkout reference.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creditstore/creditstore/internal/account"
	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/notification"
	"github.com/creditstore/creditstore/internal/payment"
)

var (
	// ErrUnknownTransaction indicates a provider event referencing a payment
	// this system never initiated. Money changed hands with no attributable
	// user, so this is flagged for operators rather than silently accepted.
	ErrUnknownTransaction = errors.New("notification references unknown transaction")

	// ErrOrphanedPayment indicates a payment whose owning account no longer
	// exists. Requires manual reconciliation; never auto-resolved.
	ErrOrphanedPayment = errors.New("payment owned by missing user")

	// ErrInitFailed indicates checkout bookkeeping failed after the provider
	// session was created. The session is expired to close the payment path.
	ErrInitFailed = errors.New("transaction initiation failed")
)

// Service coordinates credit top-ups between the payment provider and the ledger.
type Service struct {
	store    ledger.Store
	packages catalog.PackageRepository
	accounts account.Repository
	provider payment.Provider
	notifier notification.Notifier
	logger   *slog.Logger

	successURL string
	cancelURL  string
}

// NewService constructs a credit transaction service.
func NewService(store ledger.Store, packages catalog.PackageRepository, accounts account.Repository,
	provider payment.Provider, notifier notification.Notifier, logger *slog.Logger, successURL, cancelURL string) *Service {
	return &Service{
		store:      store,
		packages:   packages,
		accounts:   accounts,
		provider:   provider,
		notifier:   notifier,
		logger:     logger,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Checkout is the outcome of an initiated top-up: a pending transaction and
// the provider URL the user completes payment at.
type Checkout struct {
	Transaction ledger.CreditTransaction
	URL         string
}

// Initiate opens a checkout session for a credit package and records the
// pending transaction under the provider's session reference. If the local
// record cannot be persisted the session is expired with the provider so no
// payable session survives without a matching transaction.
func (s *Service) Initiate(ctx context.Context, userID, packageID string) (Checkout, error) {
	pkg, err := s.packages.Get(ctx, packageID)
	if err != nil {
		return Checkout{}, err
	}
	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return Checkout{}, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutInput{
		PackageID:     pkg.ID,
		Credits:       pkg.Credits,
		UnitAmount:    pkg.UnitAmount,
		Currency:      pkg.Currency,
		Quantity:      1,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		CustomerEmail: user.Email,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}

	tx := ledger.CreditTransaction{
		CheckoutRef: session.ID,
		UserID:      user.ID,
		Credits:     pkg.Credits,
		UnitAmount:  pkg.UnitAmount,
		Currency:    pkg.Currency,
		Quantity:    1,
		Status:      ledger.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		// Close the payable session so no money can arrive for a payment
		// the ledger does not know about.
		if expireErr := s.provider.ExpireCheckoutSession(ctx, session.ID); expireErr != nil {
			s.logger.Error("expire orphaned checkout session",
				"checkout_ref", session.ID, "error", expireErr)
		}
		return Checkout{}, fmt.Errorf("%w: %s", ErrInitFailed, err)
	}

	return Checkout{Transaction: tx, URL: session.URL}, nil
}

// ApplyNotification applies a provider event idempotently. Redeliveries of a
// settled event succeed with no effect; at most one balance increment ever
// happens per checkout reference.
func (s *Service) ApplyNotification(ctx context.Context, ev payment.Event) error {
	tx, err := s.store.TransactionByCheckout(ctx, ev.CheckoutRef)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			s.logger.Error("webhook references unknown payment",
				"checkout_ref", ev.CheckoutRef, "event_type", ev.Type)
			return fmt.Errorf("%w: %s", ErrUnknownTransaction, ev.CheckoutRef)
		}
		return err
	}

	if _, err := s.accounts.FindByID(ctx, tx.UserID); err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			s.logger.Error("payment received for missing user",
				"checkout_ref", ev.CheckoutRef, "user_id", tx.UserID)
			return fmt.Errorf("%w: user %s, checkout %s", ErrOrphanedPayment, tx.UserID, ev.CheckoutRef)
		}
		return err
	}

	// Replay of an already applied event reports success with no effect.
	if tx.Status == ledger.StatusSucceeded {
		return nil
	}

	switch ev.Type {
	case payment.EventCheckoutCompleted:
		// A session can complete before its payment clears. Acknowledge the
		// event without settling; the provider sends another one once paid.
		if ev.Status != "" && ev.Status != payment.StatusPaid && ev.Status != payment.StatusNoPaymentRequired {
			s.logger.Warn("completed session not yet paid",
				"checkout_ref", ev.CheckoutRef, "payment_status", ev.Status)
			return nil
		}
		credited, err := s.store.SettleTransaction(ctx, ev.CheckoutRef)
		if err != nil {
			return err
		}
		if credited {
			s.logger.Info("credit transaction settled",
				"checkout_ref", ev.CheckoutRef, "user_id", tx.UserID, "credits", tx.Credits)
			s.notify(ctx, tx)
		}
		return nil
	case payment.EventCheckoutExpired:
		return s.store.ExpireTransaction(ctx, ev.CheckoutRef)
	default:
		s.logger.Warn("ignoring unhandled webhook event type",
			"checkout_ref", ev.CheckoutRef, "event_type", ev.Type)
		return nil
	}
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (ledger.Balance, error) {
	return s.store.Balance(ctx, userID)
}

// Transactions lists the user's top-up transactions, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]ledger.CreditTransaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

func (s *Service) notify(ctx context.Context, tx ledger.CreditTransaction) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindCreditTopUp,
		Destination: tx.UserID,
		Body:        fmt.Sprintf("%d credits added to your balance", tx.Credits),
	})
	if err != nil {
		s.logger.Warn("top-up notification failed", "checkout_ref", tx.CheckoutRef, "error", err)
	}
}
