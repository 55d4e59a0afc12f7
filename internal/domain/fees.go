package domain

import (
	"fmt"
	"math"
)

// MaxBaseAmount caps a single purchase so every derived amount fits a bigint
// column with room to spare.
const MaxBaseAmount int64 = 1_000_000_000_000_000

// FeeBreakdown is the fee snapshot stored on a purchase unit. Every field is a
// whole minor unit rounded exactly once.
type FeeBreakdown struct {
	PolicyVersion       int   `json:"policy_version"`
	BaseAmount          int64 `json:"base_amount"`
	BuyerFee            int64 `json:"buyer_fee"`
	SellerFee           int64 `json:"seller_fee"`
	GrossAmount         int64 `json:"gross_amount"`
	SellerPayoutAmount  int64 `json:"seller_payout_amount"`
	PlatformRevenue     int64 `json:"platform_revenue"`
	EstimatedGatewayFee int64 `json:"estimated_gateway_fee"`
	VATAmount           int64 `json:"vat_amount"`
}

// ComputeFees is pure: same base and policy give the same breakdown. A seller
// fee that would exceed the base amount is clamped and reported as
// ErrPolicyViolation alongside the clamped breakdown.
func ComputeFees(baseAmount int64, policy FeePolicy) (FeeBreakdown, error) {
	if baseAmount < policy.MinimumBaseAmount || baseAmount <= 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: base amount %d below minimum %d", ErrPolicyViolation, baseAmount, policy.MinimumBaseAmount)
	}
	if baseAmount > MaxBaseAmount {
		return FeeBreakdown{}, fmt.Errorf("%w: base amount %d above maximum %d", ErrPolicyViolation, baseAmount, MaxBaseAmount)
	}
	tier, ok := policy.SellerTier(baseAmount)
	if !ok {
		return FeeBreakdown{}, fmt.Errorf("%w: no seller fee tier matches %d", ErrPolicyViolation, baseAmount)
	}
	buyerFee := maxInt64(ApplyRate(baseAmount, policy.BuyerFeeRateBP), policy.BuyerFeeMinimum)
	sellerFee := maxInt64(ApplyRate(baseAmount, tier.RateBP), tier.Minimum)

	if buyerFee < 0 || buyerFee > math.MaxInt64-baseAmount {
		return FeeBreakdown{}, fmt.Errorf("%w: buyer fee %d overflows gross for base %d", ErrPolicyViolation, buyerFee, baseAmount)
	}

	var violation error
	if sellerFee > baseAmount {
		violation = fmt.Errorf("%w: seller fee %d exceeds base amount %d under policy v%d", ErrPolicyViolation, sellerFee, baseAmount, policy.Version)
		sellerFee = baseAmount
	}
	gross := baseAmount + buyerFee
	revenue := buyerFee + sellerFee
	out := FeeBreakdown{
		PolicyVersion:       policy.Version,
		BaseAmount:          baseAmount,
		BuyerFee:            buyerFee,
		SellerFee:           sellerFee,
		GrossAmount:         gross,
		SellerPayoutAmount:  baseAmount - sellerFee,
		PlatformRevenue:     revenue,
		EstimatedGatewayFee: ApplyRate(gross, policy.GatewayBufferRateBP) + policy.GatewayBufferFixed,
		VATAmount:           ApplyRate(revenue, policy.VATRateBP),
	}
	if violation != nil {
		return out, violation
	}
	return out, out.Check()
}

// Check verifies the fee identities.
func (b FeeBreakdown) Check() error {
	switch {
	case b.GrossAmount <= 0 || b.BaseAmount <= 0:
		return fmt.Errorf("%w: non-positive gross or base", ErrPolicyViolation)
	case b.GrossAmount != b.BaseAmount+b.BuyerFee:
		return fmt.Errorf("%w: gross != base + buyer fee", ErrPolicyViolation)
	case b.SellerPayoutAmount != b.BaseAmount-b.SellerFee:
		return fmt.Errorf("%w: payout != base - seller fee", ErrPolicyViolation)
	case b.PlatformRevenue != b.BuyerFee+b.SellerFee:
		return fmt.Errorf("%w: revenue != buyer fee + seller fee", ErrPolicyViolation)
	case b.GrossAmount != b.SellerPayoutAmount+b.PlatformRevenue:
		return fmt.Errorf("%w: gross != payout + revenue", ErrPolicyViolation)
	case b.SellerPayoutAmount < 0 || b.BuyerFee < 0 || b.SellerFee < 0:
		return fmt.Errorf("%w: negative amount", ErrPolicyViolation)
	}
	return nil
}
