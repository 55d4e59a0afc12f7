package application

import (
	"context"
	"errors"
	"strings"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// CreateBatch gathers a seller's payable holds into one PENDING payout. It
// returns nil without error when the total is below the payout minimum; the
// funds stay unbatched for a later run.
func (s *Service) CreateBatch(ctx context.Context, actor Actor, sellerID string) (*domain.SellerPayout, error) {
	if err := requirePrivileged(actor); err != nil {
		return nil, err
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.createBatch(ctx, actor, sellerID, s.newID())
}

func (s *Service) createBatch(ctx context.Context, actor Actor, sellerID, batchID string) (*domain.SellerPayout, error) {
	payable, err := s.store.Holds().ListPayable(ctx, sellerID, s.nowFn())
	if err != nil {
		return nil, err
	}
	if len(payable) == 0 {
		return nil, nil
	}
	policy, err := s.GetActivePolicy(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.BuildPayout("", batchID, sellerID, payable, policy, domain.BankDetails{}, s.nowFn()); !ok {
		return nil, nil
	}
	bank, err := s.bankDetails(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	var out *domain.SellerPayout
	err = s.runTx(ctx, "create_batch", func(ctx context.Context, tx ports.Tx) error {
		out = nil
		now := s.nowFn()
		holds, err := tx.Holds().ListPayable(ctx, sellerID, now)
		if err != nil {
			return err
		}
		payout, ok := domain.BuildPayout(s.newID(), batchID, sellerID, holds, policy, bank, now)
		if !ok {
			return nil
		}
		ids := make([]string, 0, len(holds))
		for _, h := range holds {
			ids = append(ids, h.HoldID)
		}
		if err := tx.Payouts().Create(ctx, payout); err != nil {
			return err
		}
		if err := tx.Holds().AttachPayout(ctx, ids, payout.PayoutID, now); err != nil {
			return err
		}
		out = &payout
		return s.enqueuePayoutEvent(ctx, tx, domain.EventPayoutCreated, payout, actor.RequestID, now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) bankDetails(ctx context.Context, sellerID string) (domain.BankDetails, error) {
	if s.bank == nil {
		return domain.BankDetails{}, domain.ErrBankDetailsMissing
	}
	bank, err := s.bank.GetBankDetails(ctx, sellerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.BankDetails{}, domain.ErrBankDetailsMissing
	}
	if err != nil {
		return domain.BankDetails{}, err
	}
	if !bank.Complete() {
		return domain.BankDetails{}, domain.ErrBankDetailsMissing
	}
	return bank, nil
}

// SweepPayouts batches every seller with payable funds under one batch id.
// A failure for one seller is logged and does not stop the sweep.
func (s *Service) SweepPayouts(ctx context.Context) (int, error) {
	sellers, err := s.store.Holds().ListSellersWithPayable(ctx, s.nowFn(), s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	batchID := s.newID()
	actor := SystemActor(batchID)
	created := 0
	for _, sellerID := range sellers {
		payout, err := s.createBatch(ctx, actor, sellerID, batchID)
		if err != nil {
			s.logger.WarnContext(ctx, "payout batch skipped",
				"module", "application",
				"layer", "service",
				"operation", "sweep_payouts",
				"outcome", "skipped",
				"seller_id", sellerID,
				"error", err,
			)
			continue
		}
		if payout != nil {
			created++
		}
	}
	return created, nil
}

// RunSweeps lets an operator trigger the worker's sweeps on demand.
func (s *Service) RunSweeps(ctx context.Context, actor Actor) (accepted, batched int, err error) {
	if err := requirePrivileged(actor); err != nil {
		return 0, 0, err
	}
	accepted, err = s.AutoAcceptDue(ctx)
	if err != nil {
		return accepted, 0, err
	}
	batched, err = s.SweepPayouts(ctx)
	return accepted, batched, err
}

func (s *Service) MarkPayoutProcessing(ctx context.Context, actor Actor, payoutID string) (domain.SellerPayout, error) {
	return s.transitionPayout(ctx, actor, payoutID, domain.PayoutStatusProcessing, "")
}

func (s *Service) CompletePayout(ctx context.Context, actor Actor, payoutID string) (domain.SellerPayout, error) {
	return s.transitionPayout(ctx, actor, payoutID, domain.PayoutStatusCompleted, "")
}

// FailPayout marks the transfer failed and returns its holds to the payable
// pool for the next batch.
func (s *Service) FailPayout(ctx context.Context, actor Actor, payoutID, reason string) (domain.SellerPayout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.SellerPayout{}, domain.ErrInvalidInput
	}
	return s.transitionPayout(ctx, actor, payoutID, domain.PayoutStatusFailed, reason)
}

func (s *Service) transitionPayout(ctx context.Context, actor Actor, payoutID string, to domain.PayoutStatus, reason string) (domain.SellerPayout, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.SellerPayout{}, err
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return domain.SellerPayout{}, domain.ErrInvalidInput
	}
	var out domain.SellerPayout
	err := s.runTx(ctx, "payout_"+strings.ToLower(string(to)), func(ctx context.Context, tx ports.Tx) error {
		payout, err := tx.Payouts().GetByID(ctx, payoutID)
		if err != nil {
			return err
		}
		now := s.nowFn()
		next, err := payout.Transition(to, reason, now)
		if err != nil {
			return err
		}
		if err := tx.Payouts().Update(ctx, next, payout.Status); err != nil {
			return err
		}
		if to == domain.PayoutStatusFailed {
			if err := tx.Holds().DetachPayout(ctx, payoutID, now); err != nil {
				return err
			}
		}
		out = next
		return s.enqueuePayoutEvent(ctx, tx, domain.EventPayoutStatus, next, actor.RequestID, now)
	})
	if err != nil {
		return domain.SellerPayout{}, err
	}
	return out, nil
}

func (s *Service) GetPayout(ctx context.Context, actor Actor, payoutID string) (domain.SellerPayout, error) {
	if err := requireActor(actor); err != nil {
		return domain.SellerPayout{}, err
	}
	payout, err := s.store.Payouts().GetByID(ctx, strings.TrimSpace(payoutID))
	if err != nil {
		return domain.SellerPayout{}, err
	}
	if !actor.privileged() && actor.SubjectID != payout.SellerID {
		return domain.SellerPayout{}, domain.ErrForbidden
	}
	return payout, nil
}

func (s *Service) ListSellerPayouts(ctx context.Context, actor Actor, sellerID string, limit int) ([]domain.SellerPayout, error) {
	if err := authorizeSeller(actor, sellerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Payouts().ListBySeller(ctx, strings.TrimSpace(sellerID), limit)
}

func (s *Service) GetSellerBalance(ctx context.Context, actor Actor, sellerID string) (domain.SellerBalance, error) {
	if err := authorizeSeller(actor, sellerID); err != nil {
		return domain.SellerBalance{}, err
	}
	sellerID = strings.TrimSpace(sellerID)
	holds, err := s.store.Holds().ListBySeller(ctx, sellerID)
	if err != nil {
		return domain.SellerBalance{}, err
	}
	var payoutIDs []string
	seen := map[string]bool{}
	for _, h := range holds {
		if h.PayoutID != nil && !seen[*h.PayoutID] {
			seen[*h.PayoutID] = true
			payoutIDs = append(payoutIDs, *h.PayoutID)
		}
	}
	statuses := map[string]domain.PayoutStatus{}
	if len(payoutIDs) > 0 {
		statuses, err = s.store.Payouts().StatusByIDs(ctx, payoutIDs)
		if err != nil {
			return domain.SellerBalance{}, err
		}
	}
	return domain.ComputeSellerBalance(sellerID, holds, statuses, s.nowFn()), nil
}

func authorizeSeller(actor Actor, sellerID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if strings.TrimSpace(sellerID) == "" {
		return domain.ErrInvalidInput
	}
	if !actor.privileged() && actor.SubjectID != strings.TrimSpace(sellerID) {
		return domain.ErrForbidden
	}
	return nil
}
