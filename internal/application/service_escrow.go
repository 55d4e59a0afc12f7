package application

import (
	"context"
	"strings"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// The escrow ledger operations below run inside a caller's transaction so
// that the purchase unit and its hold always move together.

func (s *Service) holdFunds(ctx context.Context, tx ports.Tx, unit domain.PurchaseUnit, gatewayFee *int64, traceID string, now time.Time) (domain.EscrowHold, error) {
	hold := domain.NewHold(s.newID(), unit, gatewayFee, now)
	if err := tx.Holds().Create(ctx, hold); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, tx, domain.EventEscrowHeld, hold, traceID, now); err != nil {
		return domain.EscrowHold{}, err
	}
	return hold, nil
}

func (s *Service) releaseHold(ctx context.Context, tx ports.Tx, unit domain.PurchaseUnit, traceID string, now time.Time) (domain.EscrowHold, error) {
	hold, err := tx.Holds().GetByPurchaseUnitID(ctx, unit.PurchaseUnitID)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	policy, err := tx.Policies().GetByVersion(ctx, unit.Fees.PolicyVersion)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	next, err := hold.Release(now, policy.ReservePeriod())
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.saveHold(ctx, tx, next, hold.Status); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, tx, domain.EventEscrowReleased, next, traceID, now); err != nil {
		return domain.EscrowHold{}, err
	}
	return next, nil
}

func (s *Service) refundHold(ctx context.Context, tx ports.Tx, unit domain.PurchaseUnit, terms domain.RefundTerms, refundType domain.RefundType, traceID string, now time.Time) (domain.EscrowHold, domain.Refund, error) {
	hold, err := tx.Holds().GetByPurchaseUnitID(ctx, unit.PurchaseUnitID)
	if err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	calc, err := domain.ComputeCancellationRefund(unit.Fees.BaseAmount, unit.Fees.BuyerFee, hold.GrossAmount, terms)
	if err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	next, err := hold.Refund(calc.RefundAmount, calc.TotalDeducted, now)
	if err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	if err := s.saveHold(ctx, tx, next, hold.Status); err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	refund := domain.NewRefund(s.newID(), next, calc.RefundAmount, calc.ProcessingFee, calc.BuyerFeeKept, domain.RefundReasonCancellation, refundType, now)
	if err := tx.Refunds().Create(ctx, refund); err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	if err := s.enqueueHoldEvent(ctx, tx, domain.EventEscrowRefunded, next, traceID, now); err != nil {
		return domain.EscrowHold{}, domain.Refund{}, err
	}
	if refund.Status == domain.RefundStatusCompleted {
		if err := s.enqueueRefundEvent(ctx, tx, domain.EventRefundSettled, refund, traceID, now); err != nil {
			return domain.EscrowHold{}, domain.Refund{}, err
		}
	}
	return next, refund, nil
}

func (s *Service) markHoldDisputed(ctx context.Context, tx ports.Tx, purchaseUnitID, traceID string, now time.Time) (domain.EscrowHold, error) {
	hold, err := tx.Holds().GetByPurchaseUnitID(ctx, purchaseUnitID)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	next, err := hold.MarkDisputed(now)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.saveHold(ctx, tx, next, hold.Status); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, tx, domain.EventEscrowDisputed, next, traceID, now); err != nil {
		return domain.EscrowHold{}, err
	}
	return next, nil
}

// settleHoldDispute is only reached after the dispute itself has been moved
// to a resolved status in the same transaction.
func (s *Service) settleHoldDispute(ctx context.Context, tx ports.Tx, dispute domain.Dispute, unit domain.PurchaseUnit, traceID string, now time.Time) (domain.EscrowHold, *domain.Refund, error) {
	if !dispute.Status.Resolved() {
		return domain.EscrowHold{}, nil, domain.ErrInvalidStateTransition
	}
	hold, err := tx.Holds().GetByID(ctx, dispute.HoldID)
	if err != nil {
		return domain.EscrowHold{}, nil, err
	}
	policy, err := tx.Policies().GetByVersion(ctx, unit.Fees.PolicyVersion)
	if err != nil {
		return domain.EscrowHold{}, nil, err
	}
	next, err := hold.SettleDispute(dispute.SellerAmount, dispute.BuyerAmount, now, policy.ReservePeriod())
	if err != nil {
		return domain.EscrowHold{}, nil, err
	}
	if err := s.saveHold(ctx, tx, next, hold.Status); err != nil {
		return domain.EscrowHold{}, nil, err
	}
	var refund *domain.Refund
	if dispute.BuyerAmount > 0 {
		r := domain.NewRefund(s.newID(), next, dispute.BuyerAmount, 0, 0, domain.RefundReasonDispute, domain.RefundTypeGateway, now)
		if err := tx.Refunds().Create(ctx, r); err != nil {
			return domain.EscrowHold{}, nil, err
		}
		refund = &r
	}
	eventType := domain.EventEscrowReleased
	if next.Status == domain.HoldStatusRefunded {
		eventType = domain.EventEscrowRefunded
	}
	if err := s.enqueueHoldEvent(ctx, tx, eventType, next, traceID, now); err != nil {
		return domain.EscrowHold{}, nil, err
	}
	return next, refund, nil
}

func (s *Service) saveHold(ctx context.Context, tx ports.Tx, hold domain.EscrowHold, expect domain.HoldStatus) error {
	if err := hold.CheckConservation(); err != nil {
		return err
	}
	return tx.Holds().Update(ctx, hold, expect)
}

func (s *Service) GetHold(ctx context.Context, actor Actor, holdID string) (domain.EscrowHold, error) {
	if err := requireActor(actor); err != nil {
		return domain.EscrowHold{}, err
	}
	hold, err := s.store.Holds().GetByID(ctx, strings.TrimSpace(holdID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !actor.privileged() && actor.SubjectID != hold.BuyerID && actor.SubjectID != hold.SellerID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	return hold, nil
}

func (s *Service) GetHoldByPurchase(ctx context.Context, actor Actor, purchaseUnitID string) (domain.EscrowHold, error) {
	if _, err := s.GetPurchase(ctx, actor, purchaseUnitID); err != nil {
		return domain.EscrowHold{}, err
	}
	return s.store.Holds().GetByPurchaseUnitID(ctx, strings.TrimSpace(purchaseUnitID))
}

func (s *Service) GetRefund(ctx context.Context, actor Actor, refundID string) (domain.Refund, error) {
	if err := requireActor(actor); err != nil {
		return domain.Refund{}, err
	}
	refund, err := s.store.Refunds().GetByID(ctx, strings.TrimSpace(refundID))
	if err != nil {
		return domain.Refund{}, err
	}
	if !actor.privileged() && actor.SubjectID != refund.BuyerID {
		return domain.Refund{}, domain.ErrForbidden
	}
	return refund, nil
}

// RetryRefund reissues a refund the gateway failed. Operators either retry
// the gateway or convert the refund to platform credit; the amount and the
// hold are unchanged.
func (s *Service) RetryRefund(ctx context.Context, actor Actor, refundID string, refundType domain.RefundType) (domain.Refund, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.Refund{}, err
	}
	refundID = strings.TrimSpace(refundID)
	if refundID == "" {
		return domain.Refund{}, domain.ErrInvalidInput
	}
	var out domain.Refund
	err := s.runTx(ctx, "retry_refund", func(ctx context.Context, tx ports.Tx) error {
		refund, err := tx.Refunds().GetByID(ctx, refundID)
		if err != nil {
			return err
		}
		to := refundType
		if to == "" {
			to = refund.Type
		}
		now := s.nowFn()
		next, err := refund.Reissue(to, now)
		if err != nil {
			return err
		}
		if err := tx.Refunds().Update(ctx, next, refund.Status); err != nil {
			return err
		}
		if err := s.enqueueRefundEvent(ctx, tx, domain.EventRefundReissued, next, actor.RequestID, now); err != nil {
			return err
		}
		if next.Status == domain.RefundStatusCompleted {
			if err := s.enqueueRefundEvent(ctx, tx, domain.EventRefundSettled, next, actor.RequestID, now); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Refund{}, err
	}
	return out, nil
}
