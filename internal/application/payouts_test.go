package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

const reserve = 7 * 24 * time.Hour

func (f *fixture) completedOrder(t *testing.T, key string, base int64) domain.PurchaseUnit {
	t.Helper()
	unit := f.deliveredPurchase(t, key, base)
	completed, err := f.svc.AcceptDelivery(context.Background(), buyerActor(""), unit.PurchaseUnitID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return completed
}

func TestCreateBatchAggregatesPayableHolds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := f.completedOrder(t, "order-pay-1", 100000)
	second := f.completedOrder(t, "order-pay-2", 50000)

	if payout, err := f.svc.CreateBatch(ctx, adminActor, "seller-1"); err != nil || payout != nil {
		t.Fatalf("batch inside reserve = %+v, %v", payout, err)
	}

	f.clock.Advance(reserve)
	payout, err := f.svc.CreateBatch(ctx, adminActor, "seller-1")
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if payout == nil {
		t.Fatalf("expected a payout")
	}
	// 92000 + 46000 payable, less the fixed payout fee
	if payout.Amount != 138000 || payout.Fee != 500 || payout.NetAmount != 137500 || payout.HoldCount != 2 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if payout.Status != domain.PayoutStatusPending || payout.BankDetails.BankName != "FNB" {
		t.Fatalf("unexpected payout status or bank snapshot %+v", payout)
	}
	for _, id := range []string{first.PurchaseUnitID, second.PurchaseUnitID} {
		hold := f.hold(t, id)
		if hold.PayoutID == nil || *hold.PayoutID != payout.PayoutID {
			t.Fatalf("hold %s not attached to payout", hold.HoldID)
		}
	}

	if again, err := f.svc.CreateBatch(ctx, adminActor, "seller-1"); err != nil || again != nil {
		t.Fatalf("second batch should find nothing, got %+v, %v", again, err)
	}

	balance, err := f.svc.GetSellerBalance(ctx, sellerActor, "seller-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Batched != 138000 || balance.Available != 0 {
		t.Fatalf("unexpected balance %+v", balance)
	}

	if _, err := f.svc.MarkPayoutProcessing(ctx, adminActor, payout.PayoutID); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if _, err := f.svc.CompletePayout(ctx, adminActor, payout.PayoutID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	balance, _ = f.svc.GetSellerBalance(ctx, sellerActor, "seller-1")
	if balance.PaidOut != 138000 || balance.Batched != 0 {
		t.Fatalf("unexpected balance after payout %+v", balance)
	}
	if _, err := f.svc.FailPayout(ctx, adminActor, payout.PayoutID, "late bounce"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("completed payout must not fail, got %v", err)
	}
}

func TestCreateBatchBelowMinimumIsDeferred(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// base 10000 pays the seller 8000, below the 10000 minimum
	unit := f.completedOrder(t, "order-small", 10000)
	f.clock.Advance(reserve)
	payout, err := f.svc.CreateBatch(context.Background(), adminActor, "seller-1")
	if err != nil || payout != nil {
		t.Fatalf("expected deferral, got %+v, %v", payout, err)
	}
	if hold := f.hold(t, unit.PurchaseUnitID); hold.PayoutID != nil {
		t.Fatalf("deferred hold must stay unbatched")
	}
	balance, _ := f.svc.GetSellerBalance(context.Background(), sellerActor, "seller-1")
	if balance.Available != 8000 {
		t.Fatalf("available = %d, want 8000", balance.Available)
	}
}

func TestFailPayoutReturnsHoldsToPool(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	unit := f.completedOrder(t, "order-fail", 100000)
	f.clock.Advance(reserve)
	payout, err := f.svc.CreateBatch(ctx, adminActor, "seller-1")
	if err != nil || payout == nil {
		t.Fatalf("create batch = %+v, %v", payout, err)
	}
	if _, err := f.svc.FailPayout(ctx, adminActor, payout.PayoutID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("failure needs a reason, got %v", err)
	}
	failed, err := f.svc.FailPayout(ctx, adminActor, payout.PayoutID, "account closed")
	if err != nil {
		t.Fatalf("fail payout: %v", err)
	}
	if failed.Status != domain.PayoutStatusFailed || failed.FailureReason != "account closed" {
		t.Fatalf("unexpected failed payout %+v", failed)
	}
	if hold := f.hold(t, unit.PurchaseUnitID); hold.PayoutID != nil {
		t.Fatalf("hold still attached to failed payout")
	}

	retry, err := f.svc.CreateBatch(ctx, adminActor, "seller-1")
	if err != nil || retry == nil || retry.Amount != 92000 {
		t.Fatalf("retry batch = %+v, %v", retry, err)
	}
}

func TestCreateBatchRequiresBankDetails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.bank.Put("seller-1", domain.BankDetails{AccountHolder: "Thandi Mokoena"})
	f.completedOrder(t, "order-bank", 100000)
	f.clock.Advance(reserve)
	if _, err := f.svc.CreateBatch(context.Background(), adminActor, "seller-1"); !errors.Is(err, domain.ErrBankDetailsMissing) {
		t.Fatalf("expected bank details missing, got %v", err)
	}
}

func TestSweepPayoutsBatchesEverySeller(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.completedOrder(t, "order-sweep", 100000)
	f.clock.Advance(reserve)
	n, err := f.svc.SweepPayouts(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("created = %d, want 1", n)
	}
	payouts, err := f.svc.ListSellerPayouts(context.Background(), sellerActor, "seller-1", 10)
	if err != nil || len(payouts) != 1 {
		t.Fatalf("list payouts = %d, %v", len(payouts), err)
	}
}

func TestSellerBalanceIsPrivate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.svc.GetSellerBalance(context.Background(), buyerActor(""), "seller-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.GetSellerBalance(context.Background(), adminActor, "seller-1"); err != nil {
		t.Fatalf("admin balance: %v", err)
	}
}

func TestRunSweepsRequiresPrivilege(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, _, err := f.svc.RunSweeps(context.Background(), sellerActor); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	unit := f.deliveredPurchase(t, "sweep-1", 100000)
	f.clock.Advance(73 * time.Hour)
	accepted, _, err := f.svc.RunSweeps(context.Background(), adminActor)
	if err != nil {
		t.Fatalf("run sweeps: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("expected delivery auto-accepted, got %d", accepted)
	}
	if got := f.purchase(t, unit.PurchaseUnitID); got.Status != domain.PurchaseStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
}
