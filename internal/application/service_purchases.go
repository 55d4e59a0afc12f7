package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// CreatePurchase prices a new purchase unit against the active policy and
// opens it in PENDING_PAYMENT. The fee snapshot never changes afterwards.
func (s *Service) CreatePurchase(ctx context.Context, actor Actor, input CreatePurchaseInput) (domain.PurchaseUnit, error) {
	if err := requireActor(actor); err != nil {
		return domain.PurchaseUnit{}, err
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.PurchaseUnit{}, domain.ErrIdempotencyRequired
	}
	input.SellerID = strings.TrimSpace(input.SellerID)
	input.Gateway = strings.TrimSpace(input.Gateway)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Kind == "" {
		input.Kind = domain.PurchaseKindOrder
	}
	if !input.Kind.Valid() || input.SellerID == "" || input.BaseAmount <= 0 || input.RevisionsAllowed < 0 {
		return domain.PurchaseUnit{}, domain.ErrInvalidInput
	}
	if input.SellerID == actor.SubjectID {
		return domain.PurchaseUnit{}, domain.ErrForbidden
	}
	requestHash := hashJSON(struct {
		Buyer string
		Input CreatePurchaseInput
	}{actor.SubjectID, input})
	if cached, ok, err := replayIdempotent[domain.PurchaseUnit](ctx, s, actor.IdempotencyKey, requestHash); err != nil {
		return domain.PurchaseUnit{}, err
	} else if ok {
		return cached, nil
	}

	policy, err := s.GetActivePolicy(ctx)
	if err != nil {
		return domain.PurchaseUnit{}, err
	}
	if input.Currency == "" {
		input.Currency = policy.Currency
	}
	if input.Currency != policy.Currency {
		return domain.PurchaseUnit{}, domain.ErrInvalidInput
	}
	fees, err := domain.ComputeFees(input.BaseAmount, policy)
	if err != nil {
		if fees.BaseAmount != 0 {
			s.reportPolicyViolation(ctx, "create_purchase", err)
		}
		return domain.PurchaseUnit{}, err
	}

	var out domain.PurchaseUnit
	err = s.runTx(ctx, "create_purchase", func(ctx context.Context, tx ports.Tx) error {
		if err := s.reserveIdempotency(ctx, tx.Idempotency(), actor.IdempotencyKey, requestHash); err != nil {
			return err
		}
		now := s.nowFn()
		unit := domain.PurchaseUnit{
			PurchaseUnitID:   s.newID(),
			Kind:             input.Kind,
			BuyerID:          actor.SubjectID,
			SellerID:         input.SellerID,
			Currency:         input.Currency,
			Fees:             fees,
			Status:           domain.PurchaseStatusPendingPayment,
			Gateway:          input.Gateway,
			RevisionsAllowed: input.RevisionsAllowed,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Purchases().Create(ctx, unit); err != nil {
			return err
		}
		if err := s.enqueuePurchaseEvent(ctx, tx, domain.EventPurchaseCreated, unit, "", actor.RequestID, now); err != nil {
			return err
		}
		out = unit
		return s.completeIdempotencyJSON(ctx, tx.Idempotency(), actor.IdempotencyKey, 201, unit)
	})
	if err != nil {
		return domain.PurchaseUnit{}, err
	}
	return out, nil
}

func (s *Service) GetPurchase(ctx context.Context, actor Actor, purchaseUnitID string) (domain.PurchaseUnit, error) {
	if err := requireActor(actor); err != nil {
		return domain.PurchaseUnit{}, err
	}
	unit, err := s.store.Purchases().GetByID(ctx, strings.TrimSpace(purchaseUnitID))
	if err != nil {
		return domain.PurchaseUnit{}, err
	}
	if err := authorizeParty(actor, unit); err != nil {
		return domain.PurchaseUnit{}, err
	}
	return unit, nil
}

func (s *Service) StartWork(ctx context.Context, actor Actor, purchaseUnitID string) (domain.PurchaseUnit, error) {
	return s.transitionPurchase(ctx, actor, purchaseUnitID, domain.ActionStartWork, sellerOnly, nil)
}

func (s *Service) Deliver(ctx context.Context, actor Actor, purchaseUnitID, deliveryRef string) (domain.PurchaseUnit, error) {
	deliveryRef = strings.TrimSpace(deliveryRef)
	return s.transitionPurchase(ctx, actor, purchaseUnitID, domain.ActionDeliver, sellerOnly, func(u *domain.PurchaseUnit) {
		if deliveryRef != "" {
			u.DeliveryRef = deliveryRef
		}
	})
}

func (s *Service) RequestRevision(ctx context.Context, actor Actor, purchaseUnitID string) (domain.PurchaseUnit, error) {
	return s.transitionPurchase(ctx, actor, purchaseUnitID, domain.ActionRequestRevision, buyerOnly, nil)
}

func sellerOnly(actor Actor, unit domain.PurchaseUnit) error {
	if actor.SubjectID != unit.SellerID {
		return domain.ErrForbidden
	}
	return nil
}

func buyerOnly(actor Actor, unit domain.PurchaseUnit) error {
	if actor.SubjectID != unit.BuyerID {
		return domain.ErrForbidden
	}
	return nil
}

// transitionPurchase handles the transitions that touch no money.
func (s *Service) transitionPurchase(ctx context.Context, actor Actor, purchaseUnitID string, action domain.PurchaseAction, authorize func(Actor, domain.PurchaseUnit) error, mutate func(*domain.PurchaseUnit)) (domain.PurchaseUnit, error) {
	if err := requireActor(actor); err != nil {
		return domain.PurchaseUnit{}, err
	}
	purchaseUnitID = strings.TrimSpace(purchaseUnitID)
	if purchaseUnitID == "" {
		return domain.PurchaseUnit{}, domain.ErrInvalidInput
	}
	var out domain.PurchaseUnit
	err := s.runTx(ctx, string(action), func(ctx context.Context, tx ports.Tx) error {
		unit, err := tx.Purchases().GetByID(ctx, purchaseUnitID)
		if err != nil {
			return err
		}
		if err := authorize(actor, unit); err != nil {
			return err
		}
		next, err := unit.Apply(action, s.nowFn())
		if err != nil {
			return err
		}
		if mutate != nil {
			mutate(&next)
		}
		if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
			return err
		}
		out = next
		return s.enqueueStatusChange(ctx, tx, next, unit.Status, actor.RequestID, next.UpdatedAt)
	})
	if err != nil {
		return domain.PurchaseUnit{}, err
	}
	return out, nil
}

// AcceptDelivery completes the unit and releases its hold in one transaction.
func (s *Service) AcceptDelivery(ctx context.Context, actor Actor, purchaseUnitID string) (domain.PurchaseUnit, error) {
	if err := requireActor(actor); err != nil {
		return domain.PurchaseUnit{}, err
	}
	return s.acceptDelivery(ctx, actor, strings.TrimSpace(purchaseUnitID), buyerOnly)
}

func (s *Service) acceptDelivery(ctx context.Context, actor Actor, purchaseUnitID string, authorize func(Actor, domain.PurchaseUnit) error) (domain.PurchaseUnit, error) {
	var out domain.PurchaseUnit
	err := s.runTx(ctx, "accept_delivery", func(ctx context.Context, tx ports.Tx) error {
		unit, err := tx.Purchases().GetByID(ctx, purchaseUnitID)
		if err != nil {
			return err
		}
		if err := authorize(actor, unit); err != nil {
			return err
		}
		now := s.nowFn()
		next, err := unit.Apply(domain.ActionAccept, now)
		if err != nil {
			return err
		}
		if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
			return err
		}
		if _, err := s.releaseHold(ctx, tx, next, actor.RequestID, now); err != nil {
			return err
		}
		out = next
		return s.enqueueStatusChange(ctx, tx, next, unit.Status, actor.RequestID, now)
	})
	if err != nil {
		return domain.PurchaseUnit{}, err
	}
	return out, nil
}

// AutoAcceptDue accepts deliveries the buyer left unanswered for longer than
// the configured delay, through the same path as a buyer acceptance.
func (s *Service) AutoAcceptDue(ctx context.Context) (int, error) {
	if s.cfg.AutoAcceptAfter <= 0 {
		return 0, nil
	}
	cutoff := s.nowFn().Add(-s.cfg.AutoAcceptAfter)
	due, err := s.store.Purchases().ListDeliveredBefore(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, unit := range due {
		actor := SystemActor(s.newID())
		_, err := s.acceptDelivery(ctx, actor, unit.PurchaseUnitID, func(Actor, domain.PurchaseUnit) error { return nil })
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrConcurrencyConflict):
			// the buyer or a dispute got there first
		default:
			s.logger.ErrorContext(ctx, "auto-accept failed",
				"module", "application",
				"layer", "service",
				"operation", "auto_accept",
				"outcome", "failure",
				"purchase_unit_id", unit.PurchaseUnitID,
				"error", err,
			)
		}
	}
	return accepted, nil
}

// CancelPurchase cancels a unit that has not been delivered. A funded unit
// has its hold refunded under the terms that apply to it.
func (s *Service) CancelPurchase(ctx context.Context, actor Actor, purchaseUnitID string, input CancelPurchaseInput) (CancellationResult, error) {
	if err := requireActor(actor); err != nil {
		return CancellationResult{}, err
	}
	purchaseUnitID = strings.TrimSpace(purchaseUnitID)
	if input.RefundType == "" {
		input.RefundType = domain.RefundTypeGateway
	}
	if purchaseUnitID == "" || (input.RefundType != domain.RefundTypeGateway && input.RefundType != domain.RefundTypeCredit) {
		return CancellationResult{}, domain.ErrInvalidInput
	}
	var out CancellationResult
	err := s.runTx(ctx, "cancel_purchase", func(ctx context.Context, tx ports.Tx) error {
		out = CancellationResult{}
		unit, err := tx.Purchases().GetByID(ctx, purchaseUnitID)
		if err != nil {
			return err
		}
		if err := buyerOnly(actor, unit); err != nil {
			return err
		}
		now := s.nowFn()
		next, err := unit.Apply(domain.ActionCancel, now)
		if err != nil {
			return err
		}
		if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
			return err
		}
		if unit.Funded() {
			policy, err := tx.Policies().GetByVersion(ctx, unit.Fees.PolicyVersion)
			if err != nil {
				return err
			}
			terms := s.cancellationTerms(unit, policy, now)
			hold, refund, err := s.refundHold(ctx, tx, unit, terms, input.RefundType, actor.RequestID, now)
			if err != nil {
				return err
			}
			out.Hold = &hold
			out.Refund = &refund
		}
		out.Purchase = next
		return s.enqueueStatusChange(ctx, tx, next, unit.Status, actor.RequestID, now)
	})
	if err != nil {
		return CancellationResult{}, err
	}
	return out, nil
}

// cancellationTerms gives course enrollments a full refund inside the grace
// window after payment.
func (s *Service) cancellationTerms(unit domain.PurchaseUnit, policy domain.FeePolicy, now time.Time) domain.RefundTerms {
	if unit.Kind == domain.PurchaseKindCourseEnrollment && unit.PaidAt != nil && policy.CourseRefundGraceDays > 0 {
		grace := time.Duration(policy.CourseRefundGraceDays) * 24 * time.Hour
		if !now.After(unit.PaidAt.Add(grace)) {
			return domain.FullRefundTerms()
		}
	}
	return domain.StandardRefundTerms(policy)
}
