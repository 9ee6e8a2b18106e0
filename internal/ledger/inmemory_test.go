package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func pendingTransaction(ref, userID string, credits int64) CreditTransaction {
	return CreditTransaction{
		CheckoutRef: ref,
		UserID:      userID,
		Credits:     credits,
		UnitAmount:  999,
		Currency:    "usd",
		Quantity:    1,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestInMemoryStore_SettleCreditsOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.CreateTransaction(ctx, pendingTransaction("cs_1", "u1", 100)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	credited, err := s.SettleTransaction(ctx, "cs_1")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !credited {
		t.Fatal("expected first settle to credit")
	}

	// Replays are acknowledged without crediting again.
	for i := 0; i < 5; i++ {
		credited, err = s.SettleTransaction(ctx, "cs_1")
		if err != nil {
			t.Fatalf("replay settle: %v", err)
		}
		if credited {
			t.Fatal("replay must not credit again")
		}
	}

	b, err := s.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Credits != 100 {
		t.Fatalf("expected balance 100, got %d", b.Credits)
	}

	tx, err := s.TransactionByCheckout(ctx, "cs_1")
	if err != nil {
		t.Fatalf("fetch transaction: %v", err)
	}
	if tx.Status != StatusSucceeded {
		t.Fatalf("expected status %s, got %s", StatusSucceeded, tx.Status)
	}
}

func TestInMemoryStore_SettleConcurrentReplays(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.CreateTransaction(ctx, pendingTransaction("cs_race", "u1", 250)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	creditedCount := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			credited, err := s.SettleTransaction(ctx, "cs_race")
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			creditedCount <- credited
		}()
	}
	wg.Wait()
	close(creditedCount)

	total := 0
	for credited := range creditedCount {
		if credited {
			total++
		}
	}
	if total != 1 {
		t.Fatalf("expected exactly one crediting settle, got %d", total)
	}

	b, _ := s.Balance(ctx, "u1")
	if b.Credits != 250 {
		t.Fatalf("expected balance 250, got %d", b.Credits)
	}
}

func TestInMemoryStore_DuplicateCheckoutRef(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.CreateTransaction(ctx, pendingTransaction("cs_dup", "u1", 10)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	err := s.CreateTransaction(ctx, pendingTransaction("cs_dup", "u2", 20))
	if !errors.Is(err, ErrDuplicateCheckout) {
		t.Fatalf("expected ErrDuplicateCheckout, got %v", err)
	}
}

func TestInMemoryStore_ExpireConflictsWithSettle(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.CreateTransaction(ctx, pendingTransaction("cs_exp", "u1", 50)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if _, err := s.SettleTransaction(ctx, "cs_exp"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	err := s.ExpireTransaction(ctx, "cs_exp")
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	// And the reverse: expired transactions can no longer settle.
	if err := s.CreateTransaction(ctx, pendingTransaction("cs_exp2", "u1", 50)); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := s.ExpireTransaction(ctx, "cs_exp2"); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := s.ExpireTransaction(ctx, "cs_exp2"); err != nil {
		t.Fatalf("expire replay should be a no-op, got %v", err)
	}
	if _, err := s.SettleTransaction(ctx, "cs_exp2"); !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	b, _ := s.Balance(ctx, "u1")
	if b.Credits != 50 {
		t.Fatalf("expected balance 50, got %d", b.Credits)
	}
}

func TestInMemoryStore_PurchaseDebitsOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "u1", 60)

	p, alreadyOwned, err := s.PurchaseResource(ctx, "u1", "r1", 40)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if alreadyOwned {
		t.Fatal("first purchase must not report alreadyOwned")
	}
	if p.CreditsSpent != 40 {
		t.Fatalf("expected 40 credits spent, got %d", p.CreditsSpent)
	}

	// Second buy of the same resource is a no-op grant.
	p2, alreadyOwned, err := s.PurchaseResource(ctx, "u1", "r1", 40)
	if err != nil {
		t.Fatalf("repeat purchase: %v", err)
	}
	if !alreadyOwned {
		t.Fatal("repeat purchase must report alreadyOwned")
	}
	if !p2.CreatedAt.Equal(p.CreatedAt) {
		t.Fatal("repeat purchase must return the original record")
	}

	b, _ := s.Balance(ctx, "u1")
	if b.Credits != 20 {
		t.Fatalf("expected balance 20 after single debit, got %d", b.Credits)
	}
}

func TestInMemoryStore_PurchaseInsufficientBalance(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "u2", 10)

	_, _, err := s.PurchaseResource(ctx, "u2", "r1", 40)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Failed purchase leaves no record and an untouched balance.
	if _, err := s.Purchase(ctx, "u2", "r1"); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
	b, _ := s.Balance(ctx, "u2")
	if b.Credits != 10 {
		t.Fatalf("expected balance 10, got %d", b.Credits)
	}
}

func TestInMemoryStore_ConcurrentPurchasesNeverOverspend(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "u1", 100)

	// 10 distinct resources at 40 credits each: at most 2 can succeed.
	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := s.PurchaseResource(ctx, "u1", resourceID(n), 40)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	granted := 0
	for err := range results {
		if err == nil {
			granted++
		} else if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if granted != 2 {
		t.Fatalf("expected exactly 2 grants from 100 credits, got %d", granted)
	}

	b, _ := s.Balance(ctx, "u1")
	if b.Credits != 20 {
		t.Fatalf("expected balance 20, got %d", b.Credits)
	}
	if b.Credits < 0 {
		t.Fatalf("balance went negative: %d", b.Credits)
	}
}

func TestInMemoryStore_FreePurchaseSkipsBalance(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	p, alreadyOwned, err := s.PurchaseResource(ctx, "u3", "free", 0)
	if err != nil {
		t.Fatalf("free purchase: %v", err)
	}
	if alreadyOwned {
		t.Fatal("first free purchase must not report alreadyOwned")
	}
	if p.CreditsSpent != 0 {
		t.Fatalf("expected 0 credits spent, got %d", p.CreditsSpent)
	}

	b, _ := s.Balance(ctx, "u3")
	if b.Credits != 0 {
		t.Fatalf("expected untouched zero balance, got %d", b.Credits)
	}
	if b.UpdatedAt != nil {
		t.Fatal("free purchase must not create a balance row")
	}
}

func resourceID(n int) string {
	return string(rune('a' + n))
}
