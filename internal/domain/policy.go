package domain

import (
	"fmt"
	"time"
)

// FeeTier is one band of the seller fee schedule. UpTo is the inclusive upper
// bound on baseAmount; nil marks the unbounded top tier.
type FeeTier struct {
	UpTo    *int64 `json:"up_to,omitempty"`
	RateBP  int64  `json:"rate_bp"`
	Minimum int64  `json:"minimum"`
}

type FeePolicy struct {
	Version               int
	Currency              string
	BuyerFeeRateBP        int64
	BuyerFeeMinimum       int64
	SellerFeeTiers        []FeeTier
	GatewayBufferRateBP   int64
	GatewayBufferFixed    int64
	VATRateBP             int64
	ProcessingFeeRateBP   int64
	MinimumBaseAmount     int64
	PayoutReserveDays     int
	PayoutMinimum         int64
	PayoutFee             int64
	CourseRefundGraceDays int
	IsActive              bool
	CreatedBy             string
	CreatedAt             time.Time
	ActivatedAt           *time.Time
}

func (p FeePolicy) ReservePeriod() time.Duration {
	return time.Duration(p.PayoutReserveDays) * 24 * time.Hour
}

// SellerTier picks the first tier whose bound is nil or at least baseAmount.
func (p FeePolicy) SellerTier(baseAmount int64) (FeeTier, bool) {
	for _, tier := range p.SellerFeeTiers {
		if tier.UpTo == nil || *tier.UpTo >= baseAmount {
			return tier, true
		}
	}
	return FeeTier{}, false
}

// Validate rejects a policy that could ever produce a negative seller payout
// or an unmatched base amount.
func (p FeePolicy) Validate() error {
	if p.MinimumBaseAmount <= 0 {
		return fmt.Errorf("%w: minimum base amount must be positive", ErrPolicyViolation)
	}
	rates := map[string]int64{
		"buyer fee rate": p.BuyerFeeRateBP,
		"gateway buffer": p.GatewayBufferRateBP,
		"vat rate":       p.VATRateBP,
		"processing fee": p.ProcessingFeeRateBP,
	}
	for name, rate := range rates {
		if rate < 0 || rate > BasisPointsScale {
			return fmt.Errorf("%w: %s out of range", ErrPolicyViolation, name)
		}
	}
	if p.BuyerFeeMinimum < 0 || p.GatewayBufferFixed < 0 || p.PayoutMinimum < 0 || p.PayoutFee < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrPolicyViolation)
	}
	if p.PayoutReserveDays < 0 || p.CourseRefundGraceDays < 0 {
		return fmt.Errorf("%w: periods must not be negative", ErrPolicyViolation)
	}
	if len(p.SellerFeeTiers) == 0 {
		return fmt.Errorf("%w: seller fee schedule is empty", ErrPolicyViolation)
	}
	lower := p.MinimumBaseAmount
	for i, tier := range p.SellerFeeTiers {
		last := i == len(p.SellerFeeTiers)-1
		if tier.RateBP < 0 || tier.RateBP > BasisPointsScale || tier.Minimum < 0 {
			return fmt.Errorf("%w: seller tier %d rate or minimum out of range", ErrPolicyViolation, i)
		}
		if tier.UpTo == nil && !last {
			return fmt.Errorf("%w: only the last seller tier may be unbounded", ErrPolicyViolation)
		}
		if tier.UpTo != nil && last {
			return fmt.Errorf("%w: last seller tier must be unbounded", ErrPolicyViolation)
		}
		if tier.UpTo != nil && *tier.UpTo < lower {
			return fmt.Errorf("%w: seller tier %d bound %d is not above %d", ErrPolicyViolation, i, *tier.UpTo, lower-1)
		}
		// rate is capped at 100%, so only the minimum can push the fee past the base amount
		if tier.Minimum > lower {
			return fmt.Errorf("%w: seller tier %d minimum %d exceeds smallest base amount %d", ErrPolicyViolation, i, tier.Minimum, lower)
		}
		if tier.UpTo != nil {
			lower = *tier.UpTo + 1
		}
	}
	return nil
}
