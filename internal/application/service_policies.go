package application

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// CreatePolicy stores a new, inactive policy version after validation.
func (s *Service) CreatePolicy(ctx context.Context, actor Actor, input CreatePolicyInput) (domain.FeePolicy, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.FeePolicy{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	now := s.nowFn()
	policy := domain.FeePolicy{
		Currency:              currency,
		BuyerFeeRateBP:        input.BuyerFeeRateBP,
		BuyerFeeMinimum:       input.BuyerFeeMinimum,
		SellerFeeTiers:        input.SellerFeeTiers,
		GatewayBufferRateBP:   input.GatewayBufferRateBP,
		GatewayBufferFixed:    input.GatewayBufferFixed,
		VATRateBP:             input.VATRateBP,
		ProcessingFeeRateBP:   input.ProcessingFeeRateBP,
		MinimumBaseAmount:     input.MinimumBaseAmount,
		PayoutReserveDays:     input.PayoutReserveDays,
		PayoutMinimum:         input.PayoutMinimum,
		PayoutFee:             input.PayoutFee,
		CourseRefundGraceDays: input.CourseRefundGraceDays,
		CreatedBy:             actor.SubjectID,
		CreatedAt:             now,
	}
	if err := policy.Validate(); err != nil {
		return domain.FeePolicy{}, err
	}
	err := s.runTx(ctx, "create_policy", func(ctx context.Context, tx ports.Tx) error {
		version, err := tx.Policies().NextVersion(ctx)
		if err != nil {
			return err
		}
		policy.Version = version
		return tx.Policies().Create(ctx, policy)
	})
	if err != nil {
		return domain.FeePolicy{}, err
	}
	return policy, nil
}

func (s *Service) ListPolicies(ctx context.Context, actor Actor) ([]domain.FeePolicy, error) {
	if err := requirePrivileged(actor); err != nil {
		return nil, err
	}
	return s.store.Policies().List(ctx)
}

// GetActivePolicy reads through the cache. Cache failures fall back to the store.
func (s *Service) GetActivePolicy(ctx context.Context) (domain.FeePolicy, error) {
	if s.cache != nil {
		cached, err := s.cache.GetActivePolicy(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "policy cache read failed",
				"module", "application",
				"layer", "service",
				"operation", "get_active_policy",
				"outcome", "degraded",
				"error", err,
			)
		} else if cached != nil {
			return *cached, nil
		}
	}
	policy, err := s.store.Policies().GetActive(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FeePolicy{}, domain.ErrNoActivePolicy
	}
	if err != nil {
		return domain.FeePolicy{}, err
	}
	if s.cache != nil {
		_ = s.cache.SetActivePolicy(ctx, policy, s.cfg.PolicyCacheTTL)
	}
	return policy, nil
}

// ActivatePolicy swaps the active policy in one transaction so exactly one
// version is active at any time.
func (s *Service) ActivatePolicy(ctx context.Context, actor Actor, version int) (domain.FeePolicy, error) {
	if err := requirePrivileged(actor); err != nil {
		return domain.FeePolicy{}, err
	}
	if version <= 0 {
		return domain.FeePolicy{}, domain.ErrInvalidInput
	}
	var out domain.FeePolicy
	err := s.runTx(ctx, "activate_policy", func(ctx context.Context, tx ports.Tx) error {
		policy, err := tx.Policies().GetByVersion(ctx, version)
		if err != nil {
			return err
		}
		if err := policy.Validate(); err != nil {
			return err
		}
		now := s.nowFn()
		if err := tx.Policies().Activate(ctx, version, now); err != nil {
			return err
		}
		policy.IsActive = true
		policy.ActivatedAt = &now
		out = policy
		return s.enqueueEvent(ctx, tx, domain.EventPolicyActivated, actor.RequestID, strconv.Itoa(version), contracts.PolicyActivatedPayload{
			Version:     version,
			ActivatedBy: actor.SubjectID,
			ActivatedAt: now.UTC().Format(time.RFC3339),
		}, now)
	})
	if err != nil {
		return domain.FeePolicy{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetActivePolicy(ctx, out, s.cfg.PolicyCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "policy cache refresh failed",
				"module", "application",
				"layer", "service",
				"operation", "activate_policy",
				"outcome", "degraded",
				"error", err,
			)
			if err := s.cache.InvalidateActivePolicy(ctx); err != nil {
				s.logger.WarnContext(ctx, "policy cache invalidation failed",
					"module", "application",
					"layer", "service",
					"operation", "activate_policy",
					"outcome", "degraded",
					"error", err,
				)
			}
		}
	}
	return out, nil
}

// QuoteFees prices baseAmount against the active policy without storing anything.
func (s *Service) QuoteFees(ctx context.Context, baseAmount int64) (domain.FeeBreakdown, error) {
	policy, err := s.GetActivePolicy(ctx)
	if err != nil {
		return domain.FeeBreakdown{}, err
	}
	fees, err := domain.ComputeFees(baseAmount, policy)
	if err != nil {
		if fees.BaseAmount != 0 {
			s.reportPolicyViolation(ctx, "quote_fees", err)
		}
		return domain.FeeBreakdown{}, err
	}
	return fees, nil
}
