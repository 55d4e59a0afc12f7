package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func TestActivatePolicyKeepsExactlyOneActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	before := f.createPurchase(t, "order-v1", domain.PurchaseKindOrder, 100000)

	input := standardPolicyInput()
	input.BuyerFeeRateBP = 400
	v2, err := f.svc.CreatePolicy(ctx, adminActor, input)
	if err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if v2.Version != 2 || v2.IsActive {
		t.Fatalf("unexpected new policy %+v", v2)
	}
	if active, _ := f.svc.GetActivePolicy(ctx); active.Version != 1 {
		t.Fatalf("draft policy must not be active, got v%d", active.Version)
	}

	if _, err := f.svc.ActivatePolicy(ctx, adminActor, v2.Version); err != nil {
		t.Fatalf("activate: %v", err)
	}
	policies, err := f.svc.ListPolicies(ctx, adminActor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, p := range policies {
		if p.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected one active policy, got %d", active)
	}
	current, err := f.svc.GetActivePolicy(ctx)
	if err != nil || current.Version != 2 {
		t.Fatalf("active policy = v%d, %v", current.Version, err)
	}

	quote, err := f.svc.QuoteFees(ctx, 100000)
	if err != nil || quote.BuyerFee != 4000 {
		t.Fatalf("quote under v2 = %+v, %v", quote, err)
	}
	// the fee snapshot taken under v1 never moves
	if got := f.purchase(t, before.PurchaseUnitID); got.Fees.BuyerFee != 3000 || got.Fees.PolicyVersion != 1 {
		t.Fatalf("snapshot changed: %+v", got.Fees)
	}
	if countEvents(f.outboxEvents(t), domain.EventPolicyActivated) != 2 {
		t.Fatalf("expected two activation events")
	}
}

func TestCreatePolicyRejectsInvalidPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	input := standardPolicyInput()
	input.BuyerFeeRateBP = 12000
	if _, err := f.svc.CreatePolicy(context.Background(), adminActor, input); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.CreatePolicy(context.Background(), sellerActor, standardPolicyInput()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestQuoteFeesBelowMinimum(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.svc.QuoteFees(context.Background(), 4000); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected policy violation below minimum, got %v", err)
	}
}

func TestQuoteFeesWithoutActivePolicy(t *testing.T) {
	t.Parallel()

	svc := application.NewService(application.Dependencies{Store: memory.NewStore()})
	if _, err := svc.QuoteFees(context.Background(), 100000); !errors.Is(err, domain.ErrNoActivePolicy) {
		t.Fatalf("expected no active policy, got %v", err)
	}
}

func TestStaleReadCannotRestoreSupersededPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	cache := memory.NewPolicyCache()
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc := application.NewService(application.Dependencies{
		Config: application.Config{PolicyCacheTTL: time.Hour},
		Store:  store,
		Cache:  cache,
		Clock:  clock.Now,
	})
	v1, err := svc.CreatePolicy(ctx, adminActor, standardPolicyInput())
	if err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if _, err := svc.ActivatePolicy(ctx, adminActor, v1.Version); err != nil {
		t.Fatalf("activate v1: %v", err)
	}
	// a reader loads v1 from the store and stalls before filling the cache
	staleRead, err := store.Policies().GetActive(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}

	clock.Advance(time.Minute)
	input := standardPolicyInput()
	input.BuyerFeeRateBP = 400
	v2, err := svc.CreatePolicy(ctx, adminActor, input)
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if _, err := svc.ActivatePolicy(ctx, adminActor, v2.Version); err != nil {
		t.Fatalf("activate v2: %v", err)
	}
	if err := cache.SetActivePolicy(ctx, staleRead, time.Hour); err != nil {
		t.Fatalf("stale set: %v", err)
	}

	active, err := svc.GetActivePolicy(ctx)
	if err != nil || active.Version != v2.Version {
		t.Fatalf("active policy = v%d, %v", active.Version, err)
	}
	quote, err := svc.QuoteFees(ctx, 100000)
	if err != nil || quote.BuyerFee != 4000 || quote.PolicyVersion != v2.Version {
		t.Fatalf("quote = %+v, %v", quote, err)
	}

	// reactivating v1 later is a newer activation and wins again
	clock.Advance(time.Minute)
	if _, err := svc.ActivatePolicy(ctx, adminActor, v1.Version); err != nil {
		t.Fatalf("reactivate v1: %v", err)
	}
	if active, _ := svc.GetActivePolicy(ctx); active.Version != v1.Version {
		t.Fatalf("expected v1 after reactivation, got v%d", active.Version)
	}
}
