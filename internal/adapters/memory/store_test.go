package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func seedHold(t *testing.T, store *memory.Store) domain.EscrowHold {
	t.Helper()
	hold := domain.EscrowHold{
		HoldID:             "hold-1",
		PurchaseUnitID:     "unit-1",
		BuyerID:            "buyer-1",
		SellerID:           "seller-1",
		Currency:           "ZAR",
		GrossAmount:        103000,
		SellerPayoutAmount: 92000,
		Status:             domain.HoldStatusHeld,
		HeldAt:             testNow,
	}
	if err := store.Holds().Create(context.Background(), hold); err != nil {
		t.Fatalf("create hold: %v", err)
	}
	return hold
}

func TestHoldUpdateCompareAndSet(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	hold := seedHold(t, store)
	ctx := context.Background()

	released := hold
	released.Status = domain.HoldStatusReleased
	if err := store.Holds().Update(ctx, released, domain.HoldStatusHeld); err != nil {
		t.Fatalf("first update: %v", err)
	}
	disputed := hold
	disputed.Status = domain.HoldStatusDisputed
	if err := store.Holds().Update(ctx, disputed, domain.HoldStatusHeld); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	got, err := store.Holds().GetByID(ctx, hold.HoldID)
	if err != nil {
		t.Fatalf("get hold: %v", err)
	}
	if got.Status != domain.HoldStatusReleased {
		t.Fatalf("expected RELEASED, got %s", got.Status)
	}
}

func TestHoldUniquePerPurchaseUnit(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	hold := seedHold(t, store)
	hold.HoldID = "hold-2"
	if err := store.Holds().Create(context.Background(), hold); !errors.Is(err, domain.ErrHoldExists) {
		t.Fatalf("expected hold exists, got %v", err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	hold := seedHold(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		next := hold
		next.Status = domain.HoldStatusDisputed
		if err := tx.Holds().Update(ctx, next, domain.HoldStatusHeld); err != nil {
			return err
		}
		if err := tx.Disputes().Create(ctx, domain.Dispute{DisputeID: "d-1", PurchaseUnitID: hold.PurchaseUnitID, Status: domain.DisputeStatusOpen}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.Holds().GetByID(ctx, hold.HoldID)
	if got.Status != domain.HoldStatusHeld {
		t.Fatalf("expected hold to stay HELD, got %s", got.Status)
	}
	if _, err := store.Disputes().GetByID(ctx, "d-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected dispute to be rolled back, got %v", err)
	}
}

func TestDisputeCreateRejectsSecondActive(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	first := domain.Dispute{DisputeID: "d-1", PurchaseUnitID: "unit-1", Status: domain.DisputeStatusOpen}
	if err := store.Disputes().Create(ctx, first); err != nil {
		t.Fatalf("create dispute: %v", err)
	}
	second := domain.Dispute{DisputeID: "d-2", PurchaseUnitID: "unit-1", Status: domain.DisputeStatusOpen}
	if err := store.Disputes().Create(ctx, second); !errors.Is(err, domain.ErrDisputeExists) {
		t.Fatalf("expected dispute exists, got %v", err)
	}

	closed := first
	closed.Status = domain.DisputeStatusClosed
	if err := store.Disputes().Update(ctx, closed, domain.DisputeStatusOpen); err != nil {
		t.Fatalf("close dispute: %v", err)
	}
	if err := store.Disputes().Create(ctx, second); err != nil {
		t.Fatalf("expected new dispute after close, got %v", err)
	}
}

func TestGatewayEventRecordDeduplicates(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	record := domain.GatewayEventRecord{GatewayRef: "pf-1", Type: domain.GatewayEventPayment, Outcome: domain.GatewayOutcomeApplied}
	if err := store.GatewayEvents().Record(ctx, record); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.GatewayEvents().Record(ctx, record); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	record.Type = domain.GatewayEventSettlement
	if err := store.GatewayEvents().Record(ctx, record); err != nil {
		t.Fatalf("same ref for another event type should record: %v", err)
	}
}

func TestGatewayEventSupersedeOnlyReplacesExpectedStatus(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	failed := domain.GatewayEventRecord{GatewayRef: "pf-2", Type: domain.GatewayEventPayment, Status: domain.GatewayStatusFailed, Outcome: domain.GatewayOutcomeIgnored}
	succeeded := failed
	succeeded.Status = domain.GatewayStatusSucceeded
	succeeded.Outcome = domain.GatewayOutcomeApplied

	if err := store.GatewayEvents().Supersede(ctx, succeeded, domain.GatewayStatusFailed); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("expected duplicate for unknown ref, got %v", err)
	}
	if err := store.GatewayEvents().Record(ctx, failed); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.GatewayEvents().Supersede(ctx, succeeded, domain.GatewayStatusFailed); err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if err := store.GatewayEvents().Supersede(ctx, succeeded, domain.GatewayStatusFailed); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("expected duplicate once superseded, got %v", err)
	}
	got, err := store.GatewayEvents().Get(ctx, domain.GatewayEventPayment, "pf-2")
	if err != nil || got.Status != domain.GatewayStatusSucceeded {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestAttachPayoutRequiresUnbatchedReleasedHolds(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	hold := seedHold(t, store)
	ctx := context.Background()

	if err := store.Holds().AttachPayout(ctx, []string{hold.HoldID}, "payout-1", testNow); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict for held hold, got %v", err)
	}

	available := testNow.Add(-time.Hour)
	released := hold
	released.Status = domain.HoldStatusReleased
	released.AvailableAt = &available
	if err := store.Holds().Update(ctx, released, domain.HoldStatusHeld); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := store.Holds().AttachPayout(ctx, []string{hold.HoldID}, "payout-1", testNow); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := store.Holds().AttachPayout(ctx, []string{hold.HoldID}, "payout-2", testNow); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict for batched hold, got %v", err)
	}
	if err := store.Holds().DetachPayout(ctx, "payout-1", testNow); err != nil {
		t.Fatalf("detach: %v", err)
	}
	payable, err := store.Holds().ListPayable(ctx, hold.SellerID, testNow)
	if err != nil {
		t.Fatalf("list payable: %v", err)
	}
	if len(payable) != 1 {
		t.Fatalf("expected detached hold to be payable again, got %d", len(payable))
	}
}

func TestPolicyActivateLeavesOneActive(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	for _, version := range []int{1, 2, 3} {
		if err := store.Policies().Create(ctx, domain.FeePolicy{Version: version, Currency: "ZAR"}); err != nil {
			t.Fatalf("create policy %d: %v", version, err)
		}
	}
	for _, version := range []int{1, 3, 2} {
		if err := store.Policies().Activate(ctx, version, testNow); err != nil {
			t.Fatalf("activate %d: %v", version, err)
		}
	}
	policies, _ := store.Policies().List(ctx)
	active := 0
	for _, p := range policies {
		if p.IsActive {
			active++
			if p.Version != 2 {
				t.Fatalf("expected version 2 active, got %d", p.Version)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active policy, got %d", active)
	}
	next, _ := store.Policies().NextVersion(ctx)
	if next != 4 {
		t.Fatalf("expected next version 4, got %d", next)
	}
}

func TestPolicyCacheKeepsLatestActivation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := memory.NewPolicyCache()
	older, newer := testNow, testNow.Add(time.Minute)
	v1 := domain.FeePolicy{Version: 1, IsActive: true, ActivatedAt: &older}
	v2 := domain.FeePolicy{Version: 2, IsActive: true, ActivatedAt: &newer}

	if err := cache.SetActivePolicy(ctx, v2, time.Hour); err != nil {
		t.Fatalf("set v2: %v", err)
	}
	if err := cache.SetActivePolicy(ctx, v1, time.Hour); err != nil {
		t.Fatalf("set v1: %v", err)
	}
	got, err := cache.GetActivePolicy(ctx)
	if err != nil || got == nil || got.Version != 2 {
		t.Fatalf("expected v2 to stay cached, got %+v, %v", got, err)
	}

	if err := cache.InvalidateActivePolicy(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := cache.SetActivePolicy(ctx, v1, time.Hour); err != nil {
		t.Fatalf("set v1 after invalidate: %v", err)
	}
	if got, _ := cache.GetActivePolicy(ctx); got != nil {
		t.Fatalf("superseded policy restored after invalidation: v%d", got.Version)
	}
	if err := cache.SetActivePolicy(ctx, v2, time.Hour); err != nil {
		t.Fatalf("refill v2: %v", err)
	}
	if got, _ := cache.GetActivePolicy(ctx); got == nil || got.Version != 2 {
		t.Fatalf("expected v2 after refill, got %+v", got)
	}
}

func TestIdempotencyReserveUsesCallerClock(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	repo := store.Idempotency()
	expires := testNow.Add(time.Hour)
	if err := repo.Reserve(ctx, "key-1", "hash-a", testNow, expires); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cases := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "live key", now: expires.Add(-time.Second), wantErr: domain.ErrConflict},
		{name: "expired at boundary", now: expires},
	}
	for _, tc := range cases {
		err := repo.Reserve(ctx, "key-1", "hash-b", tc.now, tc.now.Add(time.Hour))
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: reserve: %v", tc.name, err)
		}
	}
	record, err := repo.Get(ctx, "key-1", expires)
	if err != nil || record == nil || record.RequestHash != "hash-b" {
		t.Fatalf("expected takeover by hash-b, got %+v, %v", record, err)
	}
}
