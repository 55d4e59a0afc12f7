package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

func TestDuplicatePaymentWebhookIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unit := f.createPurchase(t, "order-dup", domain.PurchaseKindOrder, 100000)

	if outcome := f.pay(t, unit, "pf-dup-1"); outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("first delivery = %s", outcome)
	}
	before := f.hold(t, unit.PurchaseUnitID)
	eventsBefore := len(f.outboxEvents(t))

	if outcome := f.pay(t, unit, "pf-dup-1"); outcome != domain.GatewayOutcomeDuplicate {
		t.Fatalf("redelivery = %s, want duplicate", outcome)
	}
	if outcome := f.pay(t, unit, "pf-dup-2"); outcome != domain.GatewayOutcomeDuplicate {
		t.Fatalf("second reference for paid unit = %s, want duplicate", outcome)
	}

	after := f.hold(t, unit.PurchaseUnitID)
	if after.HoldID != before.HoldID || after.GrossAmount != 103000 {
		t.Fatalf("hold changed on redelivery: %+v", after)
	}
	if got := len(f.outboxEvents(t)); got != eventsBefore {
		t.Fatalf("redelivery emitted %d events", got-eventsBefore)
	}
}

func TestUnactionablePaymentsAreRecordedNotFailed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		prepare     func(t *testing.T, f *fixture, unit domain.PurchaseUnit)
		amountDelta int64
		unitID      string
		want        domain.GatewayOutcome
		wantEvent   string
	}{
		{
			name: "payment for cancelled unit",
			prepare: func(t *testing.T, f *fixture, unit domain.PurchaseUnit) {
				if _, err := f.svc.CancelPurchase(context.Background(), buyerActor(""), unit.PurchaseUnitID, application.CancelPurchaseInput{}); err != nil {
					t.Fatalf("cancel: %v", err)
				}
			},
			want:      domain.GatewayOutcomeOrphaned,
			wantEvent: domain.EventPaymentOrphaned,
		},
		{
			name:        "amount mismatch",
			amountDelta: -100,
			want:        domain.GatewayOutcomeRejected,
			wantEvent:   domain.EventGatewayRejected,
		},
		{
			name:      "unknown purchase unit",
			unitID:    "does-not-exist",
			want:      domain.GatewayOutcomeRejected,
			wantEvent: domain.EventGatewayRejected,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			unit := f.createPurchase(t, "order-ops", domain.PurchaseKindOrder, 20000)
			if tc.prepare != nil {
				tc.prepare(t, f, unit)
			}
			unitID := unit.PurchaseUnitID
			if tc.unitID != "" {
				unitID = tc.unitID
			}
			outcome, err := f.svc.HandleGatewayEvent(context.Background(), "", domain.GatewayEvent{
				Gateway:        "payfast",
				GatewayRef:     "pf-ops-1",
				Type:           domain.GatewayEventPayment,
				Status:         domain.GatewayStatusSucceeded,
				PurchaseUnitID: unitID,
				Amount:         unit.Fees.GrossAmount + tc.amountDelta,
			})
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", outcome, tc.want)
			}
			if countEvents(f.outboxEvents(t), tc.wantEvent) != 1 {
				t.Fatalf("expected one %s event", tc.wantEvent)
			}
			if _, err := f.store.Holds().GetByPurchaseUnitID(context.Background(), unit.PurchaseUnitID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("no hold expected, got %v", err)
			}
			record, err := f.store.GatewayEvents().Get(context.Background(), domain.GatewayEventPayment, "pf-ops-1")
			if err != nil || record.Outcome != tc.want {
				t.Fatalf("recorded %+v, %v", record, err)
			}
		})
	}
}

func TestFailedPaymentLeavesUnitPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unit := f.createPurchase(t, "order-failed", domain.PurchaseKindOrder, 20000)
	outcome, err := f.svc.HandleGatewayEvent(context.Background(), "", domain.GatewayEvent{
		Gateway:        "payfast",
		GatewayRef:     "pf-failed-1",
		Type:           domain.GatewayEventPayment,
		Status:         domain.GatewayStatusFailed,
		PurchaseUnitID: unit.PurchaseUnitID,
		Amount:         unit.Fees.GrossAmount,
		FailureReason:  "card declined",
	})
	if err != nil || outcome != domain.GatewayOutcomeIgnored {
		t.Fatalf("handle = %s, %v", outcome, err)
	}
	if got := f.purchase(t, unit.PurchaseUnitID); got.Status != domain.PurchaseStatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT, got %s", got.Status)
	}
	if countEvents(f.outboxEvents(t), domain.EventPaymentFailed) != 1 {
		t.Fatalf("expected payment_failed event")
	}
	// a retry under a new reference can still pay the unit
	if outcome := f.pay(t, unit, "pf-failed-2"); outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("retry outcome = %s", outcome)
	}
}

func TestSucceededPaymentReplacesFailureUnderSameReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	unit := f.createPurchase(t, "order-retry-ref", domain.PurchaseKindOrder, 20000)
	declined := domain.GatewayEvent{
		Gateway:        "payfast",
		GatewayRef:     "pf-same-1",
		Type:           domain.GatewayEventPayment,
		Status:         domain.GatewayStatusFailed,
		PurchaseUnitID: unit.PurchaseUnitID,
		Amount:         unit.Fees.GrossAmount,
		FailureReason:  "3ds timeout",
	}
	if outcome, err := f.svc.HandleGatewayEvent(ctx, "", declined); err != nil || outcome != domain.GatewayOutcomeIgnored {
		t.Fatalf("declined = %s, %v", outcome, err)
	}
	if outcome, err := f.svc.HandleGatewayEvent(ctx, "", declined); err != nil || outcome != domain.GatewayOutcomeDuplicate {
		t.Fatalf("declined redelivery = %s, %v", outcome, err)
	}

	approved := declined
	approved.Status = domain.GatewayStatusSucceeded
	approved.FailureReason = ""
	if outcome, err := f.svc.HandleGatewayEvent(ctx, "", approved); err != nil || outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("approved = %s, %v", outcome, err)
	}
	if got := f.purchase(t, unit.PurchaseUnitID); got.Status != domain.PurchaseStatusPaid {
		t.Fatalf("expected PAID, got %s", got.Status)
	}
	if hold := f.hold(t, unit.PurchaseUnitID); hold.Status != domain.HoldStatusHeld {
		t.Fatalf("expected HELD, got %s", hold.Status)
	}
	record, err := f.store.GatewayEvents().Get(ctx, domain.GatewayEventPayment, "pf-same-1")
	if err != nil || record.Status != domain.GatewayStatusSucceeded || record.Outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("recorded %+v, %v", record, err)
	}

	for _, late := range []domain.GatewayEvent{approved, declined} {
		if outcome, err := f.svc.HandleGatewayEvent(ctx, "", late); err != nil || outcome != domain.GatewayOutcomeDuplicate {
			t.Fatalf("late %s delivery = %s, %v", late.Status, outcome, err)
		}
	}
	if hold := f.hold(t, unit.PurchaseUnitID); hold.GrossAmount != unit.Fees.GrossAmount {
		t.Fatalf("hold changed after late deliveries: %+v", hold)
	}
}

func TestSettlementRecordsActualGatewayFee(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unit := f.paidPurchase(t, "order-settle", domain.PurchaseKindOrder, 100000)
	fee := int64(3187)
	outcome, err := f.svc.HandleGatewayEvent(context.Background(), "", domain.GatewayEvent{
		Gateway:        "payfast",
		GatewayRef:     "pf-settle-1",
		Type:           domain.GatewayEventSettlement,
		Status:         domain.GatewayStatusSucceeded,
		PurchaseUnitID: unit.PurchaseUnitID,
		GatewayFee:     &fee,
	})
	if err != nil || outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("settlement = %s, %v", outcome, err)
	}
	hold := f.hold(t, unit.PurchaseUnitID)
	if hold.GatewayFee == nil || *hold.GatewayFee != fee || hold.NetAmount != 103000-fee {
		t.Fatalf("unexpected hold after settlement %+v", hold)
	}
}

func TestRelayedWebhookDecodesPayload(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unit := f.createPurchase(t, "order-relay", domain.PurchaseKindOrder, 20000)
	payload, err := json.Marshal(contracts.GatewayWebhook{
		Gateway:        "peach",
		GatewayRef:     "peach-1",
		Type:           "PAYMENT",
		Status:         "Succeeded",
		PurchaseUnitID: unit.PurchaseUnitID,
		Amount:         unit.Fees.GrossAmount,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	outcome, err := f.svc.HandleRelayedWebhook(context.Background(), payload)
	if err != nil || outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("relay = %s, %v", outcome, err)
	}
	if _, err := f.svc.HandleRelayedWebhook(context.Background(), []byte("{")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad payload, got %v", err)
	}
}

func TestConfirmPaymentRequiresPrivilege(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unit := f.createPurchase(t, "order-manual", domain.PurchaseKindOrder, 20000)
	if _, err := f.svc.ConfirmPayment(context.Background(), buyerActor(""), unit.PurchaseUnitID, "eft-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	outcome, err := f.svc.ConfirmPayment(context.Background(), adminActor, unit.PurchaseUnitID, "eft-1")
	if err != nil || outcome != domain.GatewayOutcomeApplied {
		t.Fatalf("confirm = %s, %v", outcome, err)
	}
	if got := f.purchase(t, unit.PurchaseUnitID); got.Status != domain.PurchaseStatusPaid || got.Gateway != "payfast" {
		t.Fatalf("unexpected unit %+v", got)
	}
}

var errUUIDSyntax = errors.New(`ERROR: invalid input syntax for type uuid (SQLSTATE 22P02)`)

// uuidColumnStore rejects lookups by malformed ids the way uuid columns do.
type uuidColumnStore struct{ *memory.Store }

func (s uuidColumnStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, uuidColumnTx{tx})
	})
}

type uuidColumnTx struct{ ports.Tx }

func (t uuidColumnTx) Purchases() ports.PurchaseUnitRepository {
	return uuidColumnPurchases{t.Tx.Purchases()}
}

func (t uuidColumnTx) Holds() ports.EscrowHoldRepository {
	return uuidColumnHolds{t.Tx.Holds()}
}

func (t uuidColumnTx) Refunds() ports.RefundRepository {
	return uuidColumnRefunds{t.Tx.Refunds()}
}

type uuidColumnPurchases struct{ ports.PurchaseUnitRepository }

func (r uuidColumnPurchases) GetByID(ctx context.Context, id string) (domain.PurchaseUnit, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.PurchaseUnit{}, errUUIDSyntax
	}
	return r.PurchaseUnitRepository.GetByID(ctx, id)
}

type uuidColumnHolds struct{ ports.EscrowHoldRepository }

func (r uuidColumnHolds) GetByPurchaseUnitID(ctx context.Context, id string) (domain.EscrowHold, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.EscrowHold{}, errUUIDSyntax
	}
	return r.EscrowHoldRepository.GetByPurchaseUnitID(ctx, id)
}

type uuidColumnRefunds struct{ ports.RefundRepository }

func (r uuidColumnRefunds) GetByID(ctx context.Context, id string) (domain.Refund, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Refund{}, errUUIDSyntax
	}
	return r.RefundRepository.GetByID(ctx, id)
}

func TestGatewayOrderNumbersAreRejectedNotRetried(t *testing.T) {
	t.Parallel()

	fee := int64(300)
	tests := []struct {
		name  string
		event domain.GatewayEvent
	}{
		{
			name:  "payment",
			event: domain.GatewayEvent{Type: domain.GatewayEventPayment, PurchaseUnitID: "PF-ORDER-1001", Amount: 20600},
		},
		{
			name:  "settlement",
			event: domain.GatewayEvent{Type: domain.GatewayEventSettlement, PurchaseUnitID: "PF-ORDER-1001", GatewayFee: &fee},
		},
		{
			name:  "refund",
			event: domain.GatewayEvent{Type: domain.GatewayEventRefund, RefundID: "PF-RFND-77"},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixtureWithStore(t, func(s *memory.Store) ports.Store { return uuidColumnStore{s} })
			ev := tc.event
			ev.Gateway = "payfast"
			ev.GatewayRef = "pf-bad-id-1"
			ev.Status = domain.GatewayStatusSucceeded
			outcome, err := f.svc.HandleGatewayEvent(context.Background(), "", ev)
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if outcome != domain.GatewayOutcomeRejected {
				t.Fatalf("outcome = %s, want rejected", outcome)
			}
			record, err := f.store.GatewayEvents().Get(context.Background(), ev.Type, ev.GatewayRef)
			if err != nil || record.Outcome != domain.GatewayOutcomeRejected {
				t.Fatalf("recorded %+v, %v", record, err)
			}
			if countEvents(f.outboxEvents(t), domain.EventGatewayRejected) != 1 {
				t.Fatalf("expected one %s event", domain.EventGatewayRejected)
			}

			again, err := f.svc.HandleGatewayEvent(context.Background(), "", ev)
			if err != nil || again != domain.GatewayOutcomeDuplicate {
				t.Fatalf("redelivery = %s, %v", again, err)
			}
		})
	}
}
