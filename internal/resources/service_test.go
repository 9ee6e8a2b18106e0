package resources

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creditstore/creditstore/internal/catalog"
	"github.com/creditstore/creditstore/internal/ledger"
	"github.com/creditstore/creditstore/internal/logging"
)

func newTestService(t *testing.T) (*Service, ledger.Store) {
	t.Helper()
	ctx := context.Background()

	store := ledger.NewInMemory()
	repo := catalog.NewMemoryResourceRepository()
	now := time.Now().UTC()
	seed := []catalog.Resource{
		{ID: "r1", Cost: 40, Name: "premium-guide", Title: "Premium Guide", Content: "secret", CreatedAt: now, UpdatedAt: now},
		{ID: "free1", Cost: 0, Name: "starter-guide", Title: "Starter Guide", Content: "open", CreatedAt: now, UpdatedAt: now},
	}
	for _, res := range seed {
		if err := repo.Create(ctx, res); err != nil {
			t.Fatalf("seed resource %s: %v", res.ID, err)
		}
	}

	return NewService(store, repo, nil, logging.Discard()), store
}

func TestService_PurchaseDebitsBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, "u1", 60)

	p, err := svc.Purchase(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if p.CreditsSpent != 40 {
		t.Fatalf("expected 40 credits spent, got %d", p.CreditsSpent)
	}

	b, _ := store.Balance(ctx, "u1")
	if b.Credits != 20 {
		t.Fatalf("expected balance 20, got %d", b.Credits)
	}
}

func TestService_PurchaseIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, "u1", 60)

	first, err := svc.Purchase(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := svc.Purchase(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("repeat purchase must return the original record")
	}

	b, _ := store.Balance(ctx, "u1")
	if b.Credits != 20 {
		t.Fatalf("expected single debit, balance 20, got %d", b.Credits)
	}
}

func TestService_PurchaseInsufficientBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, "u2", 10)

	_, err := svc.Purchase(ctx, "u2", "r1")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	b, _ := store.Balance(ctx, "u2")
	if b.Credits != 10 {
		t.Fatalf("failed purchase must not touch balance, got %d", b.Credits)
	}
	if svc.CanAccess(ctx, "u2", catalog.Resource{ID: "r1", Cost: 40}) {
		t.Fatal("failed purchase must not grant access")
	}
}

func TestService_PurchaseUnknownResource(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Purchase(context.Background(), "u1", "nope")
	if !errors.Is(err, catalog.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestService_CanAccess(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, "owner", 40)

	if _, err := svc.Purchase(ctx, "owner", "r1"); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	paid := catalog.Resource{ID: "r1", Cost: 40}
	free := catalog.Resource{ID: "free1", Cost: 0}

	cases := []struct {
		name   string
		userID string
		res    catalog.Resource
		want   bool
	}{
		{"owner reads paid resource", "owner", paid, true},
		{"stranger cannot read paid resource", "stranger", paid, false},
		{"anonymous cannot read paid resource", "", paid, false},
		{"anonymous reads free resource", "", free, true},
		{"stranger reads free resource", "stranger", free, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.CanAccess(ctx, tc.userID, tc.res); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestService_ConcurrentPurchaseSingleDebit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, "u1", 60)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Purchase(ctx, "u1", "r1"); err != nil {
				t.Errorf("purchase: %v", err)
			}
		}()
	}
	wg.Wait()

	b, _ := store.Balance(ctx, "u1")
	if b.Credits != 20 {
		t.Fatalf("expected exactly one debit, balance 20, got %d", b.Credits)
	}

	purchases, err := svc.Purchases(ctx, "u1")
	if err != nil {
		t.Fatalf("purchases: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected one purchase record, got %d", len(purchases))
	}
}
