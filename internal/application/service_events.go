package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

func (s *Service) enqueueEvent(ctx context.Context, tx ports.Tx, eventType, traceID, partitionKey string, data any, now time.Time) error {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return fmt.Errorf("unsupported event type %q", eventType)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = s.newID()
	}
	env := contracts.EventEnvelope{
		EventID:          s.newID(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             b,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, ports.OutboxEvent{
		EventID:          env.EventID,
		EventType:        env.EventType,
		EventClass:       env.EventClass,
		PartitionKey:     env.PartitionKey,
		PartitionKeyPath: env.PartitionKeyPath,
		Payload:          payload,
		OccurredAt:       now,
		SchemaVersion:    env.SchemaVersion,
		TraceID:          env.TraceID,
	})
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *Service) enqueuePurchaseEvent(ctx context.Context, tx ports.Tx, eventType string, unit domain.PurchaseUnit, previous domain.PurchaseStatus, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, unit.PurchaseUnitID, contracts.PurchaseEventPayload{
		PurchaseUnitID: unit.PurchaseUnitID,
		Kind:           string(unit.Kind),
		BuyerID:        unit.BuyerID,
		SellerID:       unit.SellerID,
		Status:         string(unit.Status),
		PreviousStatus: string(previous),
		GrossAmount:    unit.Fees.GrossAmount,
		Currency:       unit.Currency,
		PolicyVersion:  unit.Fees.PolicyVersion,
		OccurredAt:     now.UTC().Format(time.RFC3339),
	}, now)
}

// enqueueStatusChange emits the analytics stream plus the domain event a
// transition carries, if any.
func (s *Service) enqueueStatusChange(ctx context.Context, tx ports.Tx, unit domain.PurchaseUnit, previous domain.PurchaseStatus, traceID string, now time.Time) error {
	if err := s.enqueuePurchaseEvent(ctx, tx, domain.EventPurchaseStatus, unit, previous, traceID, now); err != nil {
		return err
	}
	switch unit.Status {
	case domain.PurchaseStatusPaid:
		return s.enqueuePurchaseEvent(ctx, tx, domain.EventPurchasePaid, unit, previous, traceID, now)
	case domain.PurchaseStatusCompleted:
		return s.enqueuePurchaseEvent(ctx, tx, domain.EventPurchaseCompleted, unit, previous, traceID, now)
	case domain.PurchaseStatusCancelled:
		return s.enqueuePurchaseEvent(ctx, tx, domain.EventPurchaseCancelled, unit, previous, traceID, now)
	default:
		return nil
	}
}

func (s *Service) enqueueHoldEvent(ctx context.Context, tx ports.Tx, eventType string, hold domain.EscrowHold, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, hold.PurchaseUnitID, contracts.EscrowEventPayload{
		PurchaseUnitID:     hold.PurchaseUnitID,
		HoldID:             hold.HoldID,
		SellerID:           hold.SellerID,
		Status:             string(hold.Status),
		GrossAmount:        hold.GrossAmount,
		ReleasedAmount:     hold.ReleasedAmount,
		RefundedAmount:     hold.RefundedAmount,
		SellerPayoutAmount: hold.SellerPayoutAmount,
		AvailableAt:        formatTime(hold.AvailableAt),
		OccurredAt:         now.UTC().Format(time.RFC3339),
	}, now)
}

func (s *Service) enqueueRefundEvent(ctx context.Context, tx ports.Tx, eventType string, refund domain.Refund, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, refund.PurchaseUnitID, contracts.RefundEventPayload{
		PurchaseUnitID: refund.PurchaseUnitID,
		RefundID:       refund.RefundID,
		HoldID:         refund.HoldID,
		BuyerID:        refund.BuyerID,
		Amount:         refund.Amount,
		ProcessingFee:  refund.ProcessingFee,
		Type:           string(refund.Type),
		Status:         string(refund.Status),
		Reason:         refund.Reason,
		OccurredAt:     now.UTC().Format(time.RFC3339),
	}, now)
}

func (s *Service) enqueueDisputeEvent(ctx context.Context, tx ports.Tx, eventType string, d domain.Dispute, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, d.PurchaseUnitID, contracts.DisputeEventPayload{
		PurchaseUnitID: d.PurchaseUnitID,
		DisputeID:      d.DisputeID,
		Status:         string(d.Status),
		RaisedBy:       d.RaisedBy,
		SellerAmount:   d.SellerAmount,
		BuyerAmount:    d.BuyerAmount,
		OccurredAt:     now.UTC().Format(time.RFC3339),
	}, now)
}

func (s *Service) enqueuePayoutEvent(ctx context.Context, tx ports.Tx, eventType string, p domain.SellerPayout, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, p.SellerID, contracts.PayoutEventPayload{
		PayoutID:      p.PayoutID,
		BatchID:       p.BatchID,
		SellerID:      p.SellerID,
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     p.NetAmount,
		HoldCount:     p.HoldCount,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		OccurredAt:    now.UTC().Format(time.RFC3339),
	}, now)
}

func (s *Service) enqueueGatewayOpsEvent(ctx context.Context, tx ports.Tx, eventType string, ev domain.GatewayEvent, outcome domain.GatewayOutcome, detail, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, ev.PurchaseUnitID, contracts.GatewayOpsPayload{
		PurchaseUnitID: ev.PurchaseUnitID,
		Gateway:        ev.Gateway,
		GatewayRef:     ev.GatewayRef,
		Type:           string(ev.Type),
		Status:         ev.Status,
		Outcome:        string(outcome),
		Detail:         detail,
		OccurredAt:     now.UTC().Format(time.RFC3339),
	}, now)
}
