package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func toFeePolicyModel(p domain.FeePolicy) (feePolicyModel, error) {
	tiers, err := json.Marshal(p.SellerFeeTiers)
	if err != nil {
		return feePolicyModel{}, fmt.Errorf("encode fee tiers: %w", err)
	}
	return feePolicyModel{
		Version:               p.Version,
		Currency:              p.Currency,
		BuyerFeeRateBP:        p.BuyerFeeRateBP,
		BuyerFeeMinimum:       p.BuyerFeeMinimum,
		SellerFeeTiers:        datatypes.JSON(tiers),
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
		CreatedAt:             p.CreatedAt.UTC(),
		ActivatedAt:           p.ActivatedAt,
	}, nil
}

func fromFeePolicyModel(m feePolicyModel) (domain.FeePolicy, error) {
	var tiers []domain.FeeTier
	if len(m.SellerFeeTiers) > 0 {
		if err := json.Unmarshal(m.SellerFeeTiers, &tiers); err != nil {
			return domain.FeePolicy{}, fmt.Errorf("decode fee tiers for policy %d: %w", m.Version, err)
		}
	}
	return domain.FeePolicy{
		Version:               m.Version,
		Currency:              strings.TrimSpace(m.Currency),
		BuyerFeeRateBP:        m.BuyerFeeRateBP,
		BuyerFeeMinimum:       m.BuyerFeeMinimum,
		SellerFeeTiers:        tiers,
		GatewayBufferRateBP:   m.GatewayBufferRateBP,
		GatewayBufferFixed:    m.GatewayBufferFixed,
		VATRateBP:             m.VATRateBP,
		ProcessingFeeRateBP:   m.ProcessingFeeRateBP,
		MinimumBaseAmount:     m.MinimumBaseAmount,
		PayoutReserveDays:     m.PayoutReserveDays,
		PayoutMinimum:         m.PayoutMinimum,
		PayoutFee:             m.PayoutFee,
		CourseRefundGraceDays: m.CourseRefundGraceDays,
		IsActive:              m.IsActive,
		CreatedBy:             m.CreatedBy,
		CreatedAt:             m.CreatedAt,
		ActivatedAt:           m.ActivatedAt,
	}, nil
}

func toPurchaseUnitModel(u domain.PurchaseUnit) purchaseUnitModel {
	return purchaseUnitModel{
		PurchaseUnitID:      u.PurchaseUnitID,
		Kind:                string(u.Kind),
		BuyerID:             u.BuyerID,
		SellerID:            u.SellerID,
		Currency:            u.Currency,
		PolicyVersion:       u.Fees.PolicyVersion,
		BaseAmount:          u.Fees.BaseAmount,
		BuyerFee:            u.Fees.BuyerFee,
		SellerFee:           u.Fees.SellerFee,
		GrossAmount:         u.Fees.GrossAmount,
		SellerPayoutAmount:  u.Fees.SellerPayoutAmount,
		PlatformRevenue:     u.Fees.PlatformRevenue,
		EstimatedGatewayFee: u.Fees.EstimatedGatewayFee,
		VATAmount:           u.Fees.VATAmount,
		Status:              string(u.Status),
		Gateway:             u.Gateway,
		PaymentRef:          u.PaymentRef,
		RevisionsAllowed:    u.RevisionsAllowed,
		RevisionsUsed:       u.RevisionsUsed,
		DeliveryRef:         u.DeliveryRef,
		CreatedAt:           u.CreatedAt,
		PaidAt:              u.PaidAt,
		StartedAt:           u.StartedAt,
		DeliveredAt:         u.DeliveredAt,
		CompletedAt:         u.CompletedAt,
		CancelledAt:         u.CancelledAt,
		DisputedAt:          u.DisputedAt,
		ClosedAt:            u.ClosedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func fromPurchaseUnitModel(m purchaseUnitModel) domain.PurchaseUnit {
	return domain.PurchaseUnit{
		PurchaseUnitID: m.PurchaseUnitID,
		Kind:           domain.PurchaseKind(m.Kind),
		BuyerID:        m.BuyerID,
		SellerID:       m.SellerID,
		Currency:       strings.TrimSpace(m.Currency),
		Fees: domain.FeeBreakdown{
			PolicyVersion:       m.PolicyVersion,
			BaseAmount:          m.BaseAmount,
			BuyerFee:            m.BuyerFee,
			SellerFee:           m.SellerFee,
			GrossAmount:         m.GrossAmount,
			SellerPayoutAmount:  m.SellerPayoutAmount,
			PlatformRevenue:     m.PlatformRevenue,
			EstimatedGatewayFee: m.EstimatedGatewayFee,
			VATAmount:           m.VATAmount,
		},
		Status:           domain.PurchaseStatus(m.Status),
		Gateway:          m.Gateway,
		PaymentRef:       m.PaymentRef,
		RevisionsAllowed: m.RevisionsAllowed,
		RevisionsUsed:    m.RevisionsUsed,
		DeliveryRef:      m.DeliveryRef,
		CreatedAt:        m.CreatedAt,
		PaidAt:           m.PaidAt,
		StartedAt:        m.StartedAt,
		DeliveredAt:      m.DeliveredAt,
		CompletedAt:      m.CompletedAt,
		CancelledAt:      m.CancelledAt,
		DisputedAt:       m.DisputedAt,
		ClosedAt:         m.ClosedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toEscrowHoldModel(h domain.EscrowHold) escrowHoldModel {
	return escrowHoldModel{
		HoldID:             h.HoldID,
		PurchaseUnitID:     h.PurchaseUnitID,
		BuyerID:            h.BuyerID,
		SellerID:           h.SellerID,
		Currency:           h.Currency,
		GrossAmount:        h.GrossAmount,
		GatewayFee:         h.GatewayFee,
		NetAmount:          h.NetAmount,
		SellerPayoutAmount: h.SellerPayoutAmount,
		ReleasedAmount:     h.ReleasedAmount,
		RefundedAmount:     h.RefundedAmount,
		RetainedAmount:     h.RetainedAmount,
		Status:             string(h.Status),
		HeldAt:             h.HeldAt,
		DisputedAt:         h.DisputedAt,
		ReleasedAt:         h.ReleasedAt,
		RefundedAt:         h.RefundedAt,
		AvailableAt:        h.AvailableAt,
		PayoutID:           h.PayoutID,
		UpdatedAt:          h.UpdatedAt,
	}
}

func fromEscrowHoldModel(m escrowHoldModel) domain.EscrowHold {
	return domain.EscrowHold{
		HoldID:             m.HoldID,
		PurchaseUnitID:     m.PurchaseUnitID,
		BuyerID:            m.BuyerID,
		SellerID:           m.SellerID,
		Currency:           strings.TrimSpace(m.Currency),
		GrossAmount:        m.GrossAmount,
		GatewayFee:         m.GatewayFee,
		NetAmount:          m.NetAmount,
		SellerPayoutAmount: m.SellerPayoutAmount,
		ReleasedAmount:     m.ReleasedAmount,
		RefundedAmount:     m.RefundedAmount,
		RetainedAmount:     m.RetainedAmount,
		Status:             domain.HoldStatus(m.Status),
		HeldAt:             m.HeldAt,
		DisputedAt:         m.DisputedAt,
		ReleasedAt:         m.ReleasedAt,
		RefundedAt:         m.RefundedAt,
		AvailableAt:        m.AvailableAt,
		PayoutID:           m.PayoutID,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toRefundModel(r domain.Refund) refundModel {
	return refundModel{
		RefundID:       r.RefundID,
		PurchaseUnitID: r.PurchaseUnitID,
		HoldID:         r.HoldID,
		BuyerID:        r.BuyerID,
		Amount:         r.Amount,
		ProcessingFee:  r.ProcessingFee,
		BuyerFeeKept:   r.BuyerFeeKept,
		Reason:         r.Reason,
		Type:           string(r.Type),
		Status:         string(r.Status),
		GatewayRef:     r.GatewayRef,
		FailureReason:  r.FailureReason,
		CreatedAt:      r.CreatedAt,
		SettledAt:      r.SettledAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromRefundModel(m refundModel) domain.Refund {
	return domain.Refund{
		RefundID:       m.RefundID,
		PurchaseUnitID: m.PurchaseUnitID,
		HoldID:         m.HoldID,
		BuyerID:        m.BuyerID,
		Amount:         m.Amount,
		ProcessingFee:  m.ProcessingFee,
		BuyerFeeKept:   m.BuyerFeeKept,
		Reason:         m.Reason,
		Type:           domain.RefundType(m.Type),
		Status:         domain.RefundStatus(m.Status),
		GatewayRef:     m.GatewayRef,
		FailureReason:  m.FailureReason,
		CreatedAt:      m.CreatedAt,
		SettledAt:      m.SettledAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toSellerPayoutModel(p domain.SellerPayout) (sellerPayoutModel, error) {
	bank, err := json.Marshal(p.BankDetails)
	if err != nil {
		return sellerPayoutModel{}, fmt.Errorf("encode bank details: %w", err)
	}
	return sellerPayoutModel{
		PayoutID:      p.PayoutID,
		BatchID:       p.BatchID,
		SellerID:      p.SellerID,
		Currency:      p.Currency,
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     p.NetAmount,
		HoldCount:     p.HoldCount,
		Status:        string(p.Status),
		BankDetails:   datatypes.JSON(bank),
		AvailableAt:   p.AvailableAt,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		ProcessingAt:  p.ProcessingAt,
		CompletedAt:   p.CompletedAt,
		FailedAt:      p.FailedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func fromSellerPayoutModel(m sellerPayoutModel) (domain.SellerPayout, error) {
	var bank domain.BankDetails
	if len(m.BankDetails) > 0 {
		if err := json.Unmarshal(m.BankDetails, &bank); err != nil {
			return domain.SellerPayout{}, fmt.Errorf("decode bank details for payout %s: %w", m.PayoutID, err)
		}
	}
	return domain.SellerPayout{
		PayoutID:      m.PayoutID,
		BatchID:       m.BatchID,
		SellerID:      m.SellerID,
		Currency:      strings.TrimSpace(m.Currency),
		Amount:        m.Amount,
		Fee:           m.Fee,
		NetAmount:     m.NetAmount,
		HoldCount:     m.HoldCount,
		Status:        domain.PayoutStatus(m.Status),
		BankDetails:   bank,
		AvailableAt:   m.AvailableAt,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		ProcessingAt:  m.ProcessingAt,
		CompletedAt:   m.CompletedAt,
		FailedAt:      m.FailedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func toDisputeModel(d domain.Dispute) disputeModel {
	return disputeModel{
		DisputeID:      d.DisputeID,
		PurchaseUnitID: d.PurchaseUnitID,
		HoldID:         d.HoldID,
		RaisedBy:       d.RaisedBy,
		RaisedByRole:   d.RaisedByRole,
		Reason:         d.Reason,
		Status:         string(d.Status),
		ReviewedBy:     d.ReviewedBy,
		ResolvedBy:     d.ResolvedBy,
		ResolutionNote: d.ResolutionNote,
		SellerAmount:   d.SellerAmount,
		BuyerAmount:    d.BuyerAmount,
		CreatedAt:      d.CreatedAt,
		ReviewedAt:     d.ReviewedAt,
		ResolvedAt:     d.ResolvedAt,
		ClosedAt:       d.ClosedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDisputeModel(m disputeModel) domain.Dispute {
	return domain.Dispute{
		DisputeID:      m.DisputeID,
		PurchaseUnitID: m.PurchaseUnitID,
		HoldID:         m.HoldID,
		RaisedBy:       m.RaisedBy,
		RaisedByRole:   m.RaisedByRole,
		Reason:         m.Reason,
		Status:         domain.DisputeStatus(m.Status),
		ReviewedBy:     m.ReviewedBy,
		ResolvedBy:     m.ResolvedBy,
		ResolutionNote: m.ResolutionNote,
		SellerAmount:   m.SellerAmount,
		BuyerAmount:    m.BuyerAmount,
		CreatedAt:      m.CreatedAt,
		ReviewedAt:     m.ReviewedAt,
		ResolvedAt:     m.ResolvedAt,
		ClosedAt:       m.ClosedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

// invalidTextRepresentation is raised when a lookup key is not a valid uuid.
const invalidTextRepresentation = "22P02"

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || isMalformedKey(err) {
		return domain.ErrNotFound
	}
	return err
}

func isMalformedKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
