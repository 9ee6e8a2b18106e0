// Package resources debits credits to grant resource access, exactly once
// per (user, resource) pair, and answers access queries.
package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/notification"
)

// Service coordinates resource purchases against the ledger.
type Service struct {
	store     ledger.Store
	resources catalog.ResourceRepository
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService constructs a resource purchase service.
func NewService(store ledger.Store, resources catalog.ResourceRepository, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, resources: resources, notifier: notifier, logger: logger}
}

// Purchase grants the user access to the resource, debiting its cost. Buying
// an already owned resource returns the original purchase record unchanged:
// "already owned" is success, not an error.
func (s *Service) Purchase(ctx context.Context, userID, resourceID string) (ledger.ResourcePurchase, error) {
	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return ledger.ResourcePurchase{}, err
	}

	p, alreadyOwned, err := s.store.PurchaseResource(ctx, userID, res.ID, res.Cost)
	if err != nil {
		return ledger.ResourcePurchase{}, err
	}
	if !alreadyOwned {
		s.logger.Info("resource purchased",
			"resource_id", res.ID, "user_id", userID, "credits_spent", p.CreditsSpent)
		s.notify(ctx, p, res)
	}
	return p, nil
}

// CanAccess reports whether the user may read the resource content. Free
// resources are readable by anyone; unauthenticated callers own nothing.
// Storage faults degrade to "no access" rather than an error.
func (s *Service) CanAccess(ctx context.Context, userID string, res catalog.Resource) bool {
	if res.Cost == 0 {
		return true
	}
	if userID == "" {
		return false
	}
	_, err := s.store.Purchase(ctx, userID, res.ID)
	if err != nil {
		if !errors.Is(err, ledger.ErrPurchaseNotFound) {
			s.logger.Warn("access check degraded to no access",
				"resource_id", res.ID, "user_id", userID, "error", err)
		}
		return false
	}
	return true
}

// Get fetches a resource by identifier.
func (s *Service) Get(ctx context.Context, resourceID string) (catalog.Resource, error) {
	return s.resources.Get(ctx, resourceID)
}

// List returns all resources.
func (s *Service) List(ctx context.Context) ([]catalog.Resource, error) {
	return s.resources.List(ctx)
}

// Purchases lists the user's resource purchases, newest first.
func (s *Service) Purchases(ctx context.Context, userID string) ([]ledger.ResourcePurchase, error) {
	return s.store.PurchasesByUser(ctx, userID)
}

func (s *Service) notify(ctx context.Context, p ledger.ResourcePurchase, res catalog.Resource) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindResourcePurchase,
		Destination: p.UserID,
		Body:        fmt.Sprintf("You now have access to %s", res.Name),
	})
	if err != nil {
		s.logger.Warn("purchase notification failed", "resource_id", p.ResourceID, "error", err)
	}
}
