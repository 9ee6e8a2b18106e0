package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	balances     map[string]Balance
	transactions map[string]CreditTransaction
	purchases    map[string]ResourcePurchase
}

// NewInMemory creates a concurrency-safe in-memory ledger store. Used in unit
// tests and when running without a database in development.
func NewInMemory() Store {
	return &inMemoryStore{
		balances:     make(map[string]Balance),
		transactions: make(map[string]CreditTransaction),
		purchases:    make(map[string]ResourcePurchase),
	}
}

func purchaseKey(resourceID, userID string) string {
	return resourceID + "/" + userID
}

func (s *inMemoryStore) Balance(_ context.Context, userID string) (Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[userID]; ok {
		return b, nil
	}
	return Balance{UserID: userID, Credits: 0}, nil
}

func (s *inMemoryStore) CreateTransaction(_ context.Context, tx CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.CheckoutRef]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCheckout, tx.CheckoutRef)
	}
	tx.Status = StatusPending
	tx.UpdatedAt = tx.CreatedAt
	s.transactions[tx.CheckoutRef] = tx
	return nil
}

func (s *inMemoryStore) TransactionByCheckout(_ context.Context, checkoutRef string) (CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[checkoutRef]
	if !ok {
		return CreditTransaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *inMemoryStore) TransactionsByUser(_ context.Context, userID string) ([]CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []CreditTransaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			res = append(res, tx)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *inMemoryStore) SettleTransaction(_ context.Context, checkoutRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[checkoutRef]
	if !ok {
		return false, ErrTransactionNotFound
	}
	switch tx.Status {
	case StatusSucceeded:
		return false, nil
	case StatusPending:
	default:
		return false, fmt.Errorf("%w: cannot settle %s transaction %s", ErrConcurrencyConflict, tx.Status, checkoutRef)
	}

	now := time.Now().UTC()
	tx.Status = StatusSucceeded
	tx.UpdatedAt = now
	s.transactions[checkoutRef] = tx
	s.credit(tx.UserID, tx.Credits, now)
	return true, nil
}

func (s *inMemoryStore) ExpireTransaction(_ context.Context, checkoutRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[checkoutRef]
	if !ok {
		return ErrTransactionNotFound
	}
	switch tx.Status {
	case StatusExpired:
		return nil
	case StatusPending:
	default:
		return fmt.Errorf("%w: cannot expire %s transaction %s", ErrConcurrencyConflict, tx.Status, checkoutRef)
	}

	tx.Status = StatusExpired
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[checkoutRef] = tx
	return nil
}

func (s *inMemoryStore) PurchaseResource(_ context.Context, userID, resourceID string, cost int64) (ResourcePurchase, bool, error) {
	if cost < 0 {
		return ResourcePurchase{}, false, fmt.Errorf("cost must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := purchaseKey(resourceID, userID)
	if existing, ok := s.purchases[key]; ok {
		return existing, true, nil
	}

	now := time.Now().UTC()
	if cost > 0 {
		b := s.balances[userID]
		if b.Credits < cost {
			return ResourcePurchase{}, false, ErrInsufficientBalance
		}
		b.UserID = userID
		b.Credits -= cost
		b.UpdatedAt = &now
		s.balances[userID] = b
	}

	p := ResourcePurchase{
		ResourceID:   resourceID,
		UserID:       userID,
		CreditsSpent: cost,
		CreatedAt:    now,
	}
	s.purchases[key] = p
	return p, false, nil
}

func (s *inMemoryStore) Purchase(_ context.Context, userID, resourceID string) (ResourcePurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[purchaseKey(resourceID, userID)]
	if !ok {
		return ResourcePurchase{}, ErrPurchaseNotFound
	}
	return p, nil
}

func (s *inMemoryStore) PurchasesByUser(_ context.Context, userID string) ([]ResourcePurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []ResourcePurchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *inMemoryStore) credit(userID string, credits int64, now time.Time) {
	b := s.balances[userID]
	b.UserID = userID
	b.Credits += credits
	b.UpdatedAt = &now
	s.balances[userID] = b
}
