package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// HandleGatewayEvent applies one webhook delivery. Deliveries are keyed on the
// gateway reference: a reference already recorded is a successful no-op, so
// at-least-once delivery never double-applies. The one exception is a success
// arriving for a reference recorded as failed, which replaces the failure. Deliveries the ledger cannot
// act on are recorded with an ops event rather than returned as errors, which
// would only make the gateway retry them forever.
func (s *Service) HandleGatewayEvent(ctx context.Context, traceID string, ev domain.GatewayEvent) (domain.GatewayOutcome, error) {
	ev.Gateway = strings.TrimSpace(ev.Gateway)
	ev.GatewayRef = strings.TrimSpace(ev.GatewayRef)
	ev.PurchaseUnitID = strings.TrimSpace(ev.PurchaseUnitID)
	ev.RefundID = strings.TrimSpace(ev.RefundID)
	if ev.GatewayRef == "" || (ev.Status != domain.GatewayStatusSucceeded && ev.Status != domain.GatewayStatusFailed) {
		return "", domain.ErrInvalidInput
	}
	switch ev.Type {
	case domain.GatewayEventPayment, domain.GatewayEventSettlement:
		if ev.PurchaseUnitID == "" {
			return "", domain.ErrInvalidInput
		}
	case domain.GatewayEventRefund:
		if ev.RefundID == "" {
			return "", domain.ErrInvalidInput
		}
	default:
		return "", domain.ErrInvalidInput
	}

	var outcome domain.GatewayOutcome
	err := s.runTx(ctx, "gateway_"+string(ev.Type), func(ctx context.Context, tx ports.Tx) error {
		supersede := false
		seen, err := tx.GatewayEvents().Get(ctx, ev.Type, ev.GatewayRef)
		switch {
		case err == nil && seen.Status == domain.GatewayStatusFailed && ev.Status == domain.GatewayStatusSucceeded:
			// the gateway retried a declined charge under the same reference
			supersede = true
		case err == nil:
			outcome = domain.GatewayOutcomeDuplicate
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		var detail string
		switch ev.Type {
		case domain.GatewayEventPayment:
			outcome, detail, err = s.applyPayment(ctx, tx, traceID, ev)
		case domain.GatewayEventSettlement:
			outcome, detail, err = s.applySettlement(ctx, tx, traceID, ev)
		case domain.GatewayEventRefund:
			outcome, detail, err = s.applyRefundSettlement(ctx, tx, traceID, ev)
		}
		if err != nil {
			return err
		}
		now := s.nowFn()
		if outcome == domain.GatewayOutcomeOrphaned || outcome == domain.GatewayOutcomeRejected {
			eventType := domain.EventPaymentOrphaned
			if outcome == domain.GatewayOutcomeRejected {
				eventType = domain.EventGatewayRejected
			}
			if err := s.enqueueGatewayOpsEvent(ctx, tx, eventType, ev, outcome, detail, traceID, now); err != nil {
				return err
			}
		}
		record := domain.GatewayEventRecord{
			GatewayRef:     ev.GatewayRef,
			Gateway:        ev.Gateway,
			Type:           ev.Type,
			Status:         ev.Status,
			PurchaseUnitID: ev.PurchaseUnitID,
			Outcome:        outcome,
			Detail:         detail,
			ReceivedAt:     now,
		}
		if supersede {
			return tx.GatewayEvents().Supersede(ctx, record, domain.GatewayStatusFailed)
		}
		return tx.GatewayEvents().Record(ctx, record)
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		// a concurrent delivery of the same reference committed first
		outcome, err = domain.GatewayOutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	level := s.logger.InfoContext
	if outcome == domain.GatewayOutcomeOrphaned || outcome == domain.GatewayOutcomeRejected {
		level = s.logger.WarnContext
	}
	level(ctx, "gateway event handled",
		"module", "application",
		"layer", "service",
		"operation", "handle_gateway_event",
		"outcome", string(outcome),
		"gateway", ev.Gateway,
		"gateway_ref", ev.GatewayRef,
		"event_type", string(ev.Type),
	)
	return outcome, nil
}

func (s *Service) applyPayment(ctx context.Context, tx ports.Tx, traceID string, ev domain.GatewayEvent) (domain.GatewayOutcome, string, error) {
	if !ledgerID(ev.PurchaseUnitID) {
		return domain.GatewayOutcomeRejected, "malformed purchase unit id", nil
	}
	unit, err := tx.Purchases().GetByID(ctx, ev.PurchaseUnitID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.GatewayOutcomeRejected, "unknown purchase unit", nil
	}
	if err != nil {
		return "", "", err
	}
	now := s.nowFn()
	if ev.Status == domain.GatewayStatusFailed {
		if err := s.enqueueGatewayOpsEvent(ctx, tx, domain.EventPaymentFailed, ev, domain.GatewayOutcomeIgnored, ev.FailureReason, traceID, now); err != nil {
			return "", "", err
		}
		return domain.GatewayOutcomeIgnored, ev.FailureReason, nil
	}
	switch {
	case unit.Funded():
		// paid already under another reference
		return domain.GatewayOutcomeDuplicate, "purchase already paid", nil
	case unit.Status != domain.PurchaseStatusPendingPayment:
		return domain.GatewayOutcomeOrphaned, fmt.Sprintf("payment for %s purchase", unit.Status), nil
	case ev.Amount != unit.Fees.GrossAmount:
		return domain.GatewayOutcomeRejected, fmt.Sprintf("amount %d does not match gross %d", ev.Amount, unit.Fees.GrossAmount), nil
	}
	next, err := unit.Apply(domain.ActionConfirmPayment, now)
	if err != nil {
		return "", "", err
	}
	next.PaymentRef = ev.GatewayRef
	if next.Gateway == "" {
		next.Gateway = ev.Gateway
	}
	if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
		return "", "", err
	}
	if _, err := s.holdFunds(ctx, tx, next, ev.GatewayFee, traceID, now); err != nil {
		return "", "", err
	}
	if err := s.enqueueStatusChange(ctx, tx, next, unit.Status, traceID, now); err != nil {
		return "", "", err
	}
	return domain.GatewayOutcomeApplied, "", nil
}

func (s *Service) applySettlement(ctx context.Context, tx ports.Tx, _ string, ev domain.GatewayEvent) (domain.GatewayOutcome, string, error) {
	if ev.Status != domain.GatewayStatusSucceeded || ev.GatewayFee == nil || *ev.GatewayFee < 0 {
		return domain.GatewayOutcomeIgnored, "no settled fee", nil
	}
	if !ledgerID(ev.PurchaseUnitID) {
		return domain.GatewayOutcomeRejected, "malformed purchase unit id", nil
	}
	hold, err := tx.Holds().GetByPurchaseUnitID(ctx, ev.PurchaseUnitID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.GatewayOutcomeRejected, "no hold for purchase unit", nil
	}
	if err != nil {
		return "", "", err
	}
	if hold.GatewayFee != nil {
		return domain.GatewayOutcomeIgnored, "gateway fee already recorded", nil
	}
	next := hold.WithGatewayFee(*ev.GatewayFee)
	next.UpdatedAt = s.nowFn()
	if err := tx.Holds().Update(ctx, next, hold.Status); err != nil {
		return "", "", err
	}
	return domain.GatewayOutcomeApplied, "", nil
}

func (s *Service) applyRefundSettlement(ctx context.Context, tx ports.Tx, traceID string, ev domain.GatewayEvent) (domain.GatewayOutcome, string, error) {
	if !ledgerID(ev.RefundID) {
		return domain.GatewayOutcomeRejected, "malformed refund id", nil
	}
	refund, err := tx.Refunds().GetByID(ctx, ev.RefundID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.GatewayOutcomeRejected, "unknown refund", nil
	}
	if err != nil {
		return "", "", err
	}
	if refund.Status != domain.RefundStatusPending {
		return domain.GatewayOutcomeIgnored, fmt.Sprintf("refund already %s", refund.Status), nil
	}
	now := s.nowFn()
	next, err := refund.Settle(ev.Status == domain.GatewayStatusSucceeded, ev.GatewayRef, ev.FailureReason, now)
	if err != nil {
		return "", "", err
	}
	if err := tx.Refunds().Update(ctx, next, refund.Status); err != nil {
		return "", "", err
	}
	if err := s.enqueueRefundEvent(ctx, tx, domain.EventRefundSettled, next, traceID, now); err != nil {
		return "", "", err
	}
	return domain.GatewayOutcomeApplied, "", nil
}

// ledgerID reports whether id could name a ledger record. Gateways sometimes
// echo their own order numbers, which must not reach the uuid columns.
func ledgerID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ConfirmPayment records a payment taken outside the card gateways, such as
// an EFT matched by finance, through the same path as a webhook.
func (s *Service) ConfirmPayment(ctx context.Context, actor Actor, purchaseUnitID, paymentRef string) (domain.GatewayOutcome, error) {
	if err := requirePrivileged(actor); err != nil {
		return "", err
	}
	unit, err := s.store.Purchases().GetByID(ctx, strings.TrimSpace(purchaseUnitID))
	if err != nil {
		return "", err
	}
	return s.HandleGatewayEvent(ctx, actor.RequestID, domain.GatewayEvent{
		Gateway:        "manual",
		GatewayRef:     paymentRef,
		Type:           domain.GatewayEventPayment,
		Status:         domain.GatewayStatusSucceeded,
		PurchaseUnitID: unit.PurchaseUnitID,
		Amount:         unit.Fees.GrossAmount,
		OccurredAt:     s.nowFn(),
	})
}

// HandleRelayedWebhook decodes a webhook relayed over the message bus.
func (s *Service) HandleRelayedWebhook(ctx context.Context, payload []byte) (domain.GatewayOutcome, error) {
	var msg contracts.GatewayWebhook
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return s.HandleGatewayEvent(ctx, "", GatewayEventFromWebhook(msg))
}

func GatewayEventFromWebhook(msg contracts.GatewayWebhook) domain.GatewayEvent {
	return domain.GatewayEvent{
		Gateway:        msg.Gateway,
		GatewayRef:     msg.GatewayRef,
		Type:           domain.GatewayEventType(strings.ToLower(strings.TrimSpace(msg.Type))),
		Status:         strings.ToLower(strings.TrimSpace(msg.Status)),
		PurchaseUnitID: msg.PurchaseUnitID,
		RefundID:       msg.RefundID,
		Amount:         msg.Amount,
		GatewayFee:     msg.GatewayFee,
		FailureReason:  msg.FailureReason,
		OccurredAt:     msg.OccurredAt,
	}
}
