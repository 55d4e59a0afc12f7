package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *application.Service
	store *memory.Store
	bank  *memory.BankDirectory
	clock *testClock
}

var (
	adminActor  = application.Actor{SubjectID: "admin-1", Role: application.RoleAdmin, RequestID: "req-admin"}
	sellerActor = application.Actor{SubjectID: "seller-1", Role: application.RoleUser, RequestID: "req-seller"}
)

func buyerActor(idempotencyKey string) application.Actor {
	return application.Actor{SubjectID: "buyer-1", Role: application.RoleUser, RequestID: "req-buyer", IdempotencyKey: idempotencyKey}
}

func standardPolicyInput() application.CreatePolicyInput {
	return application.CreatePolicyInput{
		Currency:              "ZAR",
		BuyerFeeRateBP:        300,
		BuyerFeeMinimum:       1500,
		SellerFeeTiers:        []domain.FeeTier{{RateBP: 800, Minimum: 2000}},
		GatewayBufferRateBP:   290,
		GatewayBufferFixed:    200,
		VATRateBP:             1500,
		ProcessingFeeRateBP:   500,
		MinimumBaseAmount:     5000,
		PayoutReserveDays:     7,
		PayoutMinimum:         10000,
		PayoutFee:             500,
		CourseRefundGraceDays: 14,
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test decorate the store; wrap may be nil.
func newFixtureWithStore(t *testing.T, wrap func(*memory.Store) ports.Store) *fixture {
	t.Helper()
	store := memory.NewStore()
	var backing ports.Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	bank := memory.NewBankDirectory()
	bank.Put("seller-1", domain.BankDetails{AccountHolder: "Thandi Mokoena", BankName: "FNB", AccountNumber: "62000000001", BranchCode: "250655", AccountType: "cheque"})
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultCurrency: "ZAR",
			AutoAcceptAfter: 72 * time.Hour,
		},
		Store: backing,
		Cache: memory.NewPolicyCache(),
		Bank:  bank,
		Clock: clock.Now,
	})
	ctx := context.Background()
	policy, err := svc.CreatePolicy(ctx, adminActor, standardPolicyInput())
	if err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if _, err := svc.ActivatePolicy(ctx, adminActor, policy.Version); err != nil {
		t.Fatalf("activate policy: %v", err)
	}
	return &fixture{svc: svc, store: store, bank: bank, clock: clock}
}

func (f *fixture) createPurchase(t *testing.T, key string, kind domain.PurchaseKind, base int64) domain.PurchaseUnit {
	t.Helper()
	unit, err := f.svc.CreatePurchase(context.Background(), buyerActor(key), application.CreatePurchaseInput{
		Kind:             kind,
		SellerID:         "seller-1",
		BaseAmount:       base,
		Gateway:          "payfast",
		RevisionsAllowed: 2,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	return unit
}

func (f *fixture) pay(t *testing.T, unit domain.PurchaseUnit, gatewayRef string) domain.GatewayOutcome {
	t.Helper()
	outcome, err := f.svc.HandleGatewayEvent(context.Background(), "trace-"+gatewayRef, domain.GatewayEvent{
		Gateway:        "payfast",
		GatewayRef:     gatewayRef,
		Type:           domain.GatewayEventPayment,
		Status:         domain.GatewayStatusSucceeded,
		PurchaseUnitID: unit.PurchaseUnitID,
		Amount:         unit.Fees.GrossAmount,
		OccurredAt:     f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("payment webhook: %v", err)
	}
	return outcome
}

// paidPurchase returns a funded unit of the given base amount.
func (f *fixture) paidPurchase(t *testing.T, key string, kind domain.PurchaseKind, base int64) domain.PurchaseUnit {
	t.Helper()
	unit := f.createPurchase(t, key, kind, base)
	if outcome := f.pay(t, unit, "pf-"+key); outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("payment outcome = %s", outcome)
	}
	return f.purchase(t, unit.PurchaseUnitID)
}

// deliveredPurchase returns a paid order the seller has started and delivered.
func (f *fixture) deliveredPurchase(t *testing.T, key string, base int64) domain.PurchaseUnit {
	t.Helper()
	ctx := context.Background()
	unit := f.paidPurchase(t, key, domain.PurchaseKindOrder, base)
	if _, err := f.svc.StartWork(ctx, sellerActor, unit.PurchaseUnitID); err != nil {
		t.Fatalf("start work: %v", err)
	}
	delivered, err := f.svc.Deliver(ctx, sellerActor, unit.PurchaseUnitID, "files/final.zip")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	return delivered
}

func (f *fixture) purchase(t *testing.T, id string) domain.PurchaseUnit {
	t.Helper()
	unit, err := f.store.Purchases().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	return unit
}

func (f *fixture) hold(t *testing.T, purchaseUnitID string) domain.EscrowHold {
	t.Helper()
	hold, err := f.store.Holds().GetByPurchaseUnitID(context.Background(), purchaseUnitID)
	if err != nil {
		t.Fatalf("get hold: %v", err)
	}
	return hold
}

func (f *fixture) outboxEvents(t *testing.T) []contracts.EventEnvelope {
	t.Helper()
	records, err := f.store.Outbox().FetchUnpublished(context.Background(), 1000, 0)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	out := make([]contracts.EventEnvelope, 0, len(records))
	for _, r := range records {
		var env contracts.EventEnvelope
		if err := json.Unmarshal(r.Payload, &env); err != nil {
			t.Fatalf("decode outbox payload: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func countEvents(events []contracts.EventEnvelope, eventType string) int {
	n := 0
	for _, e := range events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}
