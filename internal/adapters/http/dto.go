package http

import (
	"time"

	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func tiersFromDTO(in []contracts.FeeTierDTO) []domain.FeeTier {
	out := make([]domain.FeeTier, 0, len(in))
	for _, t := range in {
		out = append(out, domain.FeeTier{UpTo: t.UpTo, RateBP: t.RateBP, Minimum: t.Minimum})
	}
	return out
}

func policyInputFromRequest(req contracts.CreatePolicyRequest) application.CreatePolicyInput {
	return application.CreatePolicyInput{
		Currency:              req.Currency,
		BuyerFeeRateBP:        req.BuyerFeeRateBP,
		BuyerFeeMinimum:       req.BuyerFeeMinimum,
		SellerFeeTiers:        tiersFromDTO(req.SellerFeeTiers),
		GatewayBufferRateBP:   req.GatewayBufferRateBP,
		GatewayBufferFixed:    req.GatewayBufferFixed,
		VATRateBP:             req.VATRateBP,
		ProcessingFeeRateBP:   req.ProcessingFeeRateBP,
		MinimumBaseAmount:     req.MinimumBaseAmount,
		PayoutReserveDays:     req.PayoutReserveDays,
		PayoutMinimum:         req.PayoutMinimum,
		PayoutFee:             req.PayoutFee,
		CourseRefundGraceDays: req.CourseRefundGraceDays,
	}
}

func toPolicyResponse(p domain.FeePolicy) contracts.PolicyResponse {
	tiers := make([]contracts.FeeTierDTO, 0, len(p.SellerFeeTiers))
	for _, t := range p.SellerFeeTiers {
		tiers = append(tiers, contracts.FeeTierDTO{UpTo: t.UpTo, RateBP: t.RateBP, Minimum: t.Minimum})
	}
	return contracts.PolicyResponse{
		Version:               p.Version,
		Currency:              p.Currency,
		BuyerFeeRateBP:        p.BuyerFeeRateBP,
		BuyerFeeMinimum:       p.BuyerFeeMinimum,
		SellerFeeTiers:        tiers,
		GatewayBufferRateBP:   p.GatewayBufferRateBP,
		GatewayBufferFixed:    p.GatewayBufferFixed,
		VATRateBP:             p.VATRateBP,
		ProcessingFeeRateBP:   p.ProcessingFeeRateBP,
		MinimumBaseAmount:     p.MinimumBaseAmount,
		PayoutReserveDays:     p.PayoutReserveDays,
		PayoutMinimum:         p.PayoutMinimum,
		PayoutFee:             p.PayoutFee,
		CourseRefundGraceDays: p.CourseRefundGraceDays,
		IsActive:              p.IsActive,
		CreatedBy:             p.CreatedBy,
		CreatedAt:             formatTime(p.CreatedAt),
		ActivatedAt:           formatOptionalTime(p.ActivatedAt),
	}
}

func toFeeBreakdownResponse(f domain.FeeBreakdown) contracts.FeeBreakdownResponse {
	return contracts.FeeBreakdownResponse{
		PolicyVersion:       f.PolicyVersion,
		BaseAmount:          f.BaseAmount,
		BuyerFee:            f.BuyerFee,
		SellerFee:           f.SellerFee,
		GrossAmount:         f.GrossAmount,
		SellerPayoutAmount:  f.SellerPayoutAmount,
		PlatformRevenue:     f.PlatformRevenue,
		EstimatedGatewayFee: f.EstimatedGatewayFee,
		VATAmount:           f.VATAmount,
	}
}

func toPurchaseResponse(u domain.PurchaseUnit) contracts.PurchaseResponse {
	return contracts.PurchaseResponse{
		PurchaseUnitID:   u.PurchaseUnitID,
		Kind:             string(u.Kind),
		BuyerID:          u.BuyerID,
		SellerID:         u.SellerID,
		Currency:         u.Currency,
		Status:           string(u.Status),
		Fees:             toFeeBreakdownResponse(u.Fees),
		Gateway:          u.Gateway,
		PaymentRef:       u.PaymentRef,
		RevisionsAllowed: u.RevisionsAllowed,
		RevisionsUsed:    u.RevisionsUsed,
		DeliveryRef:      u.DeliveryRef,
		CreatedAt:        formatTime(u.CreatedAt),
		PaidAt:           formatOptionalTime(u.PaidAt),
		DeliveredAt:      formatOptionalTime(u.DeliveredAt),
		CompletedAt:      formatOptionalTime(u.CompletedAt),
		CancelledAt:      formatOptionalTime(u.CancelledAt),
		UpdatedAt:        formatTime(u.UpdatedAt),
	}
}

func toHoldResponse(h domain.EscrowHold) contracts.HoldResponse {
	out := contracts.HoldResponse{
		HoldID:             h.HoldID,
		PurchaseUnitID:     h.PurchaseUnitID,
		SellerID:           h.SellerID,
		Currency:           h.Currency,
		Status:             string(h.Status),
		GrossAmount:        h.GrossAmount,
		GatewayFee:         h.GatewayFee,
		NetAmount:          h.NetAmount,
		SellerPayoutAmount: h.SellerPayoutAmount,
		ReleasedAmount:     h.ReleasedAmount,
		RefundedAmount:     h.RefundedAmount,
		HeldAt:             formatTime(h.HeldAt),
		ReleasedAt:         formatOptionalTime(h.ReleasedAt),
		RefundedAt:         formatOptionalTime(h.RefundedAt),
		AvailableAt:        formatOptionalTime(h.AvailableAt),
	}
	if h.PayoutID != nil {
		out.PayoutID = *h.PayoutID
	}
	return out
}

func toRefundResponse(r domain.Refund) contracts.RefundResponse {
	out := contracts.RefundResponse{
		RefundID:       r.RefundID,
		PurchaseUnitID: r.PurchaseUnitID,
		HoldID:         r.HoldID,
		Amount:         r.Amount,
		ProcessingFee:  r.ProcessingFee,
		BuyerFeeKept:   r.BuyerFeeKept,
		Reason:         r.Reason,
		Type:           string(r.Type),
		Status:         string(r.Status),
		CreatedAt:      formatTime(r.CreatedAt),
		SettledAt:      formatOptionalTime(r.SettledAt),
	}
	if r.GatewayRef != nil {
		out.GatewayRef = *r.GatewayRef
	}
	return out
}

func toDisputeResponse(d domain.Dispute) contracts.DisputeResponse {
	return contracts.DisputeResponse{
		DisputeID:      d.DisputeID,
		PurchaseUnitID: d.PurchaseUnitID,
		HoldID:         d.HoldID,
		RaisedBy:       d.RaisedBy,
		RaisedByRole:   d.RaisedByRole,
		Reason:         d.Reason,
		Status:         string(d.Status),
		ResolutionNote: d.ResolutionNote,
		SellerAmount:   d.SellerAmount,
		BuyerAmount:    d.BuyerAmount,
		CreatedAt:      formatTime(d.CreatedAt),
		ResolvedAt:     formatOptionalTime(d.ResolvedAt),
		ClosedAt:       formatOptionalTime(d.ClosedAt),
	}
}

// Bank details stay out of API responses; they are only a transfer snapshot.
func toPayoutResponse(p domain.SellerPayout) contracts.PayoutResponse {
	return contracts.PayoutResponse{
		PayoutID:      p.PayoutID,
		BatchID:       p.BatchID,
		SellerID:      p.SellerID,
		Currency:      p.Currency,
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     p.NetAmount,
		HoldCount:     p.HoldCount,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		AvailableAt:   formatTime(p.AvailableAt),
		CreatedAt:     formatTime(p.CreatedAt),
		CompletedAt:   formatOptionalTime(p.CompletedAt),
	}
}

func toBalanceResponse(b domain.SellerBalance) contracts.SellerBalanceResponse {
	return contracts.SellerBalanceResponse{
		SellerID:     b.SellerID,
		Currency:     b.Currency,
		Held:         b.Held,
		Disputed:     b.Disputed,
		Reserved:     b.Reserved,
		Available:    b.Available,
		Batched:      b.Batched,
		PaidOut:      b.PaidOut,
		CalculatedAt: formatTime(b.CalculatedAt),
	}
}

func toCancellationResponse(res application.CancellationResult) contracts.CancellationResponse {
	out := contracts.CancellationResponse{Purchase: toPurchaseResponse(res.Purchase)}
	if res.Hold != nil {
		hold := toHoldResponse(*res.Hold)
		out.Hold = &hold
	}
	if res.Refund != nil {
		refund := toRefundResponse(*res.Refund)
		out.Refund = &refund
	}
	return out
}
