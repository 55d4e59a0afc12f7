package application

import (
	"context"
	"strings"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// RaiseDispute freezes the unit and its hold in one transaction. Either party
// may raise it; neither the unit nor the hold moves if any step fails.
func (s *Service) RaiseDispute(ctx context.Context, actor Actor, purchaseUnitID, reason string) (domain.Dispute, error) {
	if err := requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	purchaseUnitID = strings.TrimSpace(purchaseUnitID)
	reason = strings.TrimSpace(reason)
	if purchaseUnitID == "" || reason == "" {
		return domain.Dispute{}, domain.ErrInvalidInput
	}
	var out domain.Dispute
	err := s.runTx(ctx, "raise_dispute", func(ctx context.Context, tx ports.Tx) error {
		unit, err := tx.Purchases().GetByID(ctx, purchaseUnitID)
		if err != nil {
			return err
		}
		role := ""
		switch actor.SubjectID {
		case unit.BuyerID:
			role = "buyer"
		case unit.SellerID:
			role = "seller"
		default:
			return domain.ErrForbidden
		}
		now := s.nowFn()
		next, err := unit.Apply(domain.ActionDispute, now)
		if err != nil {
			return err
		}
		hold, err := s.markHoldDisputed(ctx, tx, unit.PurchaseUnitID, actor.RequestID, now)
		if err != nil {
			return err
		}
		dispute := domain.Dispute{
			DisputeID:      s.newID(),
			PurchaseUnitID: unit.PurchaseUnitID,
			HoldID:         hold.HoldID,
			RaisedBy:       actor.SubjectID,
			RaisedByRole:   role,
			Reason:         reason,
			Status:         domain.DisputeStatusOpen,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Disputes().Create(ctx, dispute); err != nil {
			return err
		}
		if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
			return err
		}
		if err := s.enqueueStatusChange(ctx, tx, next, unit.Status, actor.RequestID, now); err != nil {
			return err
		}
		out = dispute
		return s.enqueueDisputeEvent(ctx, tx, domain.EventDisputeRaised, dispute, actor.RequestID, now)
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	return out, nil
}

func (s *Service) GetDispute(ctx context.Context, actor Actor, disputeID string) (domain.Dispute, error) {
	if err := requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	dispute, err := s.store.Disputes().GetByID(ctx, strings.TrimSpace(disputeID))
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.privileged() {
		return dispute, nil
	}
	unit, err := s.store.Purchases().GetByID(ctx, dispute.PurchaseUnitID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if err := authorizeParty(actor, unit); err != nil {
		return domain.Dispute{}, err
	}
	return dispute, nil
}

func (s *Service) StartDisputeReview(ctx context.Context, actor Actor, disputeID string) (domain.Dispute, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.Dispute{}, err
	}
	var out domain.Dispute
	err := s.runTx(ctx, "start_dispute_review", func(ctx context.Context, tx ports.Tx) error {
		dispute, err := tx.Disputes().GetByID(ctx, strings.TrimSpace(disputeID))
		if err != nil {
			return err
		}
		next, err := dispute.Transition(domain.DisputeStatusUnderReview, actor.SubjectID, s.nowFn())
		if err != nil {
			return err
		}
		if err := tx.Disputes().Update(ctx, next, dispute.Status); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	return out, nil
}

// ResolveDispute records the outcome and settles the hold in one
// transaction, so a failed settlement leaves the dispute UNDER_REVIEW. The
// dispute is then closed in a second step once the hold has left DISPUTED.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, disputeID string, input ResolveDisputeInput) (DisputeResolution, error) {
	if err := requirePrivileged(actor); err != nil {
		return DisputeResolution{}, err
	}
	if !input.Outcome.Resolved() {
		return DisputeResolution{}, domain.ErrInvalidInput
	}
	disputeID = strings.TrimSpace(disputeID)
	var out DisputeResolution
	err := s.runTx(ctx, "resolve_dispute", func(ctx context.Context, tx ports.Tx) error {
		dispute, err := tx.Disputes().GetByID(ctx, disputeID)
		if err != nil {
			return err
		}
		unit, err := tx.Purchases().GetByID(ctx, dispute.PurchaseUnitID)
		if err != nil {
			return err
		}
		now := s.nowFn()
		resolved, err := dispute.Transition(input.Outcome, actor.SubjectID, now)
		if err != nil {
			return err
		}
		sellerShare, buyerShare, err := domain.SplitShares(input.Outcome, unit.Fees.GrossAmount, input.SplitRatio, input.SellerAmount)
		if err != nil {
			return err
		}
		resolved.SellerAmount = sellerShare
		resolved.BuyerAmount = buyerShare
		resolved.ResolutionNote = strings.TrimSpace(input.Note)
		if err := tx.Disputes().Update(ctx, resolved, dispute.Status); err != nil {
			return err
		}
		hold, refund, err := s.settleHoldDispute(ctx, tx, resolved, unit, actor.RequestID, now)
		if err != nil {
			return err
		}
		action, _ := input.Outcome.PurchaseAction()
		next, err := unit.Apply(action, now)
		if err != nil {
			return err
		}
		if err := tx.Purchases().Update(ctx, next, unit.Guard()); err != nil {
			return err
		}
		if err := s.enqueueStatusChange(ctx, tx, next, unit.Status, actor.RequestID, now); err != nil {
			return err
		}
		out = DisputeResolution{Dispute: resolved, Purchase: next, Hold: hold, Refund: refund}
		return s.enqueueDisputeEvent(ctx, tx, domain.EventDisputeResolved, resolved, actor.RequestID, now)
	})
	if err != nil {
		return DisputeResolution{}, err
	}
	closed, err := s.CloseDispute(ctx, actor, disputeID)
	if err != nil {
		s.logger.WarnContext(ctx, "resolved dispute left open",
			"module", "application",
			"layer", "service",
			"operation", "resolve_dispute",
			"outcome", "partial",
			"dispute_id", disputeID,
			"error", err,
		)
		return out, nil
	}
	out.Dispute = closed
	return out, nil
}

// CloseDispute closes a resolved dispute whose hold has already settled.
func (s *Service) CloseDispute(ctx context.Context, actor Actor, disputeID string) (domain.Dispute, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.Dispute{}, err
	}
	var out domain.Dispute
	err := s.runTx(ctx, "close_dispute", func(ctx context.Context, tx ports.Tx) error {
		dispute, err := tx.Disputes().GetByID(ctx, strings.TrimSpace(disputeID))
		if err != nil {
			return err
		}
		hold, err := tx.Holds().GetByID(ctx, dispute.HoldID)
		if err != nil {
			return err
		}
		if hold.Status == domain.HoldStatusDisputed {
			return domain.ErrInvalidStateTransition
		}
		now := s.nowFn()
		next, err := dispute.Transition(domain.DisputeStatusClosed, actor.SubjectID, now)
		if err != nil {
			return err
		}
		if err := tx.Disputes().Update(ctx, next, dispute.Status); err != nil {
			return err
		}
		out = next
		return s.enqueueDisputeEvent(ctx, tx, domain.EventDisputeClosed, next, actor.RequestID, now)
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	return out, nil
}
