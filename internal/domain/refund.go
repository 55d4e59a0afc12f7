package domain

import (
	"fmt"
	"time"
)

// RefundTerms selects the deduction rule for a cancellation.
type RefundTerms struct {
	ProcessingFeeRateBP int64
	KeepBuyerFee        bool
}

// StandardRefundTerms deducts the processing fee and keeps the buyer fee.
func StandardRefundTerms(policy FeePolicy) RefundTerms {
	return RefundTerms{ProcessingFeeRateBP: policy.ProcessingFeeRateBP, KeepBuyerFee: true}
}

// FullRefundTerms returns everything the buyer paid.
func FullRefundTerms() RefundTerms {
	return RefundTerms{}
}

type CancellationRefund struct {
	ProcessingFee int64 `json:"processing_fee"`
	BuyerFeeKept  int64 `json:"buyer_fee_kept"`
	TotalDeducted int64 `json:"total_deducted"`
	RefundAmount  int64 `json:"refund_amount"`
}

// ComputeCancellationRefund is pure. refundAmount + totalDeducted always equals
// grossAmount and refundAmount is never negative.
func ComputeCancellationRefund(baseAmount, buyerFee, grossAmount int64, terms RefundTerms) (CancellationRefund, error) {
	if baseAmount <= 0 || buyerFee < 0 || grossAmount != baseAmount+buyerFee {
		return CancellationRefund{}, fmt.Errorf("%w: gross %d != base %d + buyer fee %d", ErrInvalidInput, grossAmount, baseAmount, buyerFee)
	}
	out := CancellationRefund{ProcessingFee: ApplyRate(grossAmount, terms.ProcessingFeeRateBP)}
	if terms.KeepBuyerFee {
		out.BuyerFeeKept = buyerFee
	}
	out.TotalDeducted = out.ProcessingFee + out.BuyerFeeKept
	if out.TotalDeducted > grossAmount {
		out.TotalDeducted = grossAmount
	}
	out.RefundAmount = grossAmount - out.TotalDeducted
	return out, nil
}

type RefundType string

const (
	RefundTypeGateway RefundType = "GATEWAY"
	RefundTypeCredit  RefundType = "CREDIT"
)

func (t RefundType) Valid() bool {
	return t == RefundTypeGateway || t == RefundTypeCredit
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

const (
	RefundReasonCancellation = "cancellation"
	RefundReasonDispute      = "dispute"
)

// Refund records money returned to a buyer. Amount + ProcessingFee never
// exceeds the hold's gross amount.
type Refund struct {
	RefundID       string
	PurchaseUnitID string
	HoldID         string
	BuyerID        string
	Amount         int64
	ProcessingFee  int64
	BuyerFeeKept   int64
	Reason         string
	Type           RefundType
	Status         RefundStatus
	GatewayRef     *string
	FailureReason  string
	CreatedAt      time.Time
	SettledAt      *time.Time
	UpdatedAt      time.Time
}

// NewRefund opens a refund. Credit refunds need no external settlement and
// complete immediately.
func NewRefund(refundID string, hold EscrowHold, amount, processingFee, buyerFeeKept int64, reason string, refundType RefundType, now time.Time) Refund {
	r := Refund{
		RefundID:       refundID,
		PurchaseUnitID: hold.PurchaseUnitID,
		HoldID:         hold.HoldID,
		BuyerID:        hold.BuyerID,
		Amount:         amount,
		ProcessingFee:  processingFee,
		BuyerFeeKept:   buyerFeeKept,
		Reason:         reason,
		Type:           refundType,
		Status:         RefundStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if refundType == RefundTypeCredit {
		at := now
		r.Status = RefundStatusCompleted
		r.SettledAt = &at
	}
	return r
}

// Settle records the gateway outcome of a pending refund.
func (r Refund) Settle(succeeded bool, gatewayRef, failureReason string, now time.Time) (Refund, error) {
	if r.Status != RefundStatusPending {
		return Refund{}, fmt.Errorf("%w: refund %s is %s", ErrInvalidStateTransition, r.RefundID, r.Status)
	}
	at := now
	ref := gatewayRef
	r.GatewayRef = &ref
	r.SettledAt = &at
	r.UpdatedAt = now
	if succeeded {
		r.Status = RefundStatusCompleted
	} else {
		r.Status = RefundStatusFailed
		r.FailureReason = failureReason
	}
	return r, nil
}

// Reissue reopens a failed refund under refundType. A gateway reissue waits
// for a fresh settlement; a credit reissue completes at once.
func (r Refund) Reissue(refundType RefundType, now time.Time) (Refund, error) {
	if r.Status != RefundStatusFailed {
		return Refund{}, fmt.Errorf("%w: refund %s is %s", ErrInvalidStateTransition, r.RefundID, r.Status)
	}
	if !refundType.Valid() {
		return Refund{}, fmt.Errorf("%w: refund type %q", ErrInvalidInput, refundType)
	}
	r.Type = refundType
	r.Status = RefundStatusPending
	r.GatewayRef = nil
	r.FailureReason = ""
	r.SettledAt = nil
	r.UpdatedAt = now
	if refundType == RefundTypeCredit {
		at := now
		r.Status = RefundStatusCompleted
		r.SettledAt = &at
	}
	return r, nil
}
