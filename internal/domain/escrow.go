package domain

import (
	"fmt"
	"time"
)

type HoldStatus string

const (
	HoldStatusPending  HoldStatus = "PENDING"
	HoldStatusHeld     HoldStatus = "HELD"
	HoldStatusReleased HoldStatus = "RELEASED"
	HoldStatusRefunded HoldStatus = "REFUNDED"
	HoldStatusDisputed HoldStatus = "DISPUTED"
)

// EscrowHold is the money collected for exactly one purchase unit.
// ReleasedAmount + RefundedAmount + RetainedAmount never exceeds GrossAmount.
type EscrowHold struct {
	HoldID             string
	PurchaseUnitID     string
	BuyerID            string
	SellerID           string
	Currency           string
	GrossAmount        int64
	GatewayFee         *int64
	NetAmount          int64
	SellerPayoutAmount int64
	ReleasedAmount     int64
	RefundedAmount     int64
	RetainedAmount     int64
	Status             HoldStatus
	HeldAt             time.Time
	DisputedAt         *time.Time
	ReleasedAt         *time.Time
	RefundedAt         *time.Time
	AvailableAt        *time.Time
	PayoutID           *string
	UpdatedAt          time.Time
}

// NewHold opens a HELD hold for a paid unit. Until the gateway reports its
// actual fee the net amount uses the policy estimate.
func NewHold(holdID string, unit PurchaseUnit, gatewayFee *int64, now time.Time) EscrowHold {
	h := EscrowHold{
		HoldID:             holdID,
		PurchaseUnitID:     unit.PurchaseUnitID,
		BuyerID:            unit.BuyerID,
		SellerID:           unit.SellerID,
		Currency:           unit.Currency,
		GrossAmount:        unit.Fees.GrossAmount,
		SellerPayoutAmount: unit.Fees.SellerPayoutAmount,
		NetAmount:          unit.Fees.GrossAmount - unit.Fees.EstimatedGatewayFee,
		Status:             HoldStatusHeld,
		HeldAt:             now,
		UpdatedAt:          now,
	}
	if gatewayFee != nil {
		h = h.WithGatewayFee(*gatewayFee)
	}
	return h
}

func (h EscrowHold) WithGatewayFee(fee int64) EscrowHold {
	f := fee
	h.GatewayFee = &f
	h.NetAmount = h.GrossAmount - fee
	return h
}

func (h EscrowHold) transitionErr(action string) error {
	return fmt.Errorf("%w: hold %s is %s, cannot %s", ErrInvalidStateTransition, h.HoldID, h.Status, action)
}

// Release credits the seller with the full hold. Funds become payable once
// the reserve period has elapsed.
func (h EscrowHold) Release(now time.Time, reserve time.Duration) (EscrowHold, error) {
	if h.Status != HoldStatusHeld {
		return EscrowHold{}, h.transitionErr("release")
	}
	return h.settle(h.GrossAmount, 0, h.SellerPayoutAmount, now, reserve), nil
}

func (h EscrowHold) MarkDisputed(now time.Time) (EscrowHold, error) {
	if h.Status != HoldStatusHeld {
		return EscrowHold{}, h.transitionErr("dispute")
	}
	at := now
	h.Status = HoldStatusDisputed
	h.DisputedAt = &at
	h.UpdatedAt = now
	return h, nil
}

// Refund returns refundAmount to the buyer and keeps retained for the platform.
func (h EscrowHold) Refund(refundAmount, retained int64, now time.Time) (EscrowHold, error) {
	if h.Status != HoldStatusHeld {
		return EscrowHold{}, h.transitionErr("refund")
	}
	if refundAmount < 0 || retained < 0 || refundAmount+retained > h.GrossAmount {
		return EscrowHold{}, fmt.Errorf("%w: refund %d plus retained %d exceeds hold %d", ErrInvalidInput, refundAmount, retained, h.GrossAmount)
	}
	at := now
	h.Status = HoldStatusRefunded
	h.RefundedAmount = refundAmount
	h.RetainedAmount = retained
	h.SellerPayoutAmount = 0
	h.RefundedAt = &at
	h.UpdatedAt = now
	return h, nil
}

// SettleDispute moves a DISPUTED hold according to the adjudicated shares.
// sellerShare + buyerShare must equal the gross amount. A zero seller share
// refunds the hold; any other outcome releases it.
func (h EscrowHold) SettleDispute(sellerShare, buyerShare int64, now time.Time, reserve time.Duration) (EscrowHold, error) {
	if h.Status != HoldStatusDisputed {
		return EscrowHold{}, h.transitionErr("settle dispute")
	}
	if sellerShare < 0 || buyerShare < 0 || sellerShare+buyerShare != h.GrossAmount {
		return EscrowHold{}, fmt.Errorf("%w: shares %d/%d do not sum to %d", ErrInvalidInput, sellerShare, buyerShare, h.GrossAmount)
	}
	if sellerShare == 0 {
		at := now
		h.Status = HoldStatusRefunded
		h.RefundedAmount = buyerShare
		h.SellerPayoutAmount = 0
		h.RefundedAt = &at
		h.UpdatedAt = now
		return h, nil
	}
	payout := h.SellerPayoutAmount
	if sellerShare != h.GrossAmount {
		payout = ProRata(sellerShare, h.SellerPayoutAmount, h.GrossAmount)
	}
	return h.settle(sellerShare, buyerShare, payout, now, reserve), nil
}

func (h EscrowHold) settle(released, refunded, payout int64, now time.Time, reserve time.Duration) EscrowHold {
	at := now
	available := now.Add(reserve)
	h.Status = HoldStatusReleased
	h.ReleasedAmount = released
	h.RefundedAmount = refunded
	h.RetainedAmount = released - payout
	h.SellerPayoutAmount = payout
	h.ReleasedAt = &at
	h.AvailableAt = &available
	h.UpdatedAt = now
	return h
}

// Payable reports whether the hold can be batched into a payout at now.
func (h EscrowHold) Payable(now time.Time) bool {
	return h.Status == HoldStatusReleased &&
		h.PayoutID == nil &&
		h.AvailableAt != nil &&
		!h.AvailableAt.After(now) &&
		h.SellerPayoutAmount > 0
}

// CheckConservation verifies the hold never moves more than it collected.
func (h EscrowHold) CheckConservation() error {
	if h.ReleasedAmount+h.RefundedAmount > h.GrossAmount {
		return fmt.Errorf("%w: hold %s moved %d of %d", ErrPolicyViolation, h.HoldID, h.ReleasedAmount+h.RefundedAmount, h.GrossAmount)
	}
	if h.ReleasedAt != nil && h.RefundedAt != nil {
		return fmt.Errorf("%w: hold %s both released and refunded", ErrPolicyViolation, h.HoldID)
	}
	return nil
}
