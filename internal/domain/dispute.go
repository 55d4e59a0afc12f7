package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DisputeStatus string

const (
	DisputeStatusOpen           DisputeStatus = "OPEN"
	DisputeStatusUnderReview    DisputeStatus = "UNDER_REVIEW"
	DisputeStatusResolvedBuyer  DisputeStatus = "RESOLVED_BUYER"
	DisputeStatusResolvedSeller DisputeStatus = "RESOLVED_SELLER"
	DisputeStatusResolvedSplit  DisputeStatus = "RESOLVED_SPLIT"
	DisputeStatusClosed         DisputeStatus = "CLOSED"
)

func (s DisputeStatus) Resolved() bool {
	switch s {
	case DisputeStatusResolvedBuyer, DisputeStatusResolvedSeller, DisputeStatusResolvedSplit:
		return true
	default:
		return false
	}
}

// PurchaseAction is the purchase transition that follows a resolution.
func (s DisputeStatus) PurchaseAction() (PurchaseAction, bool) {
	switch s {
	case DisputeStatusResolvedBuyer:
		return ActionResolveForBuyer, true
	case DisputeStatusResolvedSeller:
		return ActionResolveForSeller, true
	case DisputeStatusResolvedSplit:
		return ActionResolveSplit, true
	default:
		return "", false
	}
}

func ValidateDisputeTransition(from, to DisputeStatus) error {
	allowed := map[DisputeStatus]map[DisputeStatus]bool{
		DisputeStatusOpen: {
			DisputeStatusUnderReview: true,
		},
		DisputeStatusUnderReview: {
			DisputeStatusResolvedBuyer:  true,
			DisputeStatusResolvedSeller: true,
			DisputeStatusResolvedSplit:  true,
		},
		DisputeStatusResolvedBuyer:  {DisputeStatusClosed: true},
		DisputeStatusResolvedSeller: {DisputeStatusClosed: true},
		DisputeStatusResolvedSplit:  {DisputeStatusClosed: true},
	}
	if next, ok := allowed[from]; ok && next[to] {
		return nil
	}
	return fmt.Errorf("%w: dispute %s -> %s", ErrInvalidStateTransition, from, to)
}

type Dispute struct {
	DisputeID      string
	PurchaseUnitID string
	HoldID         string
	RaisedBy       string
	RaisedByRole   string
	Reason         string
	Status         DisputeStatus
	ReviewedBy     string
	ResolvedBy     string
	ResolutionNote string
	SellerAmount   int64
	BuyerAmount    int64
	CreatedAt      time.Time
	ReviewedAt     *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	UpdatedAt      time.Time
}

// Active reports whether the dispute still blocks a new one for the same unit.
func (d Dispute) Active() bool {
	return d.Status != DisputeStatusClosed
}

func (d Dispute) Transition(to DisputeStatus, actorID string, now time.Time) (Dispute, error) {
	if err := ValidateDisputeTransition(d.Status, to); err != nil {
		return Dispute{}, err
	}
	at := now
	d.Status = to
	d.UpdatedAt = now
	switch {
	case to == DisputeStatusUnderReview:
		d.ReviewedBy = actorID
		d.ReviewedAt = &at
	case to.Resolved():
		d.ResolvedBy = actorID
		d.ResolvedAt = &at
	case to == DisputeStatusClosed:
		d.ClosedAt = &at
	}
	return d, nil
}

// SplitShares divides gross between seller and buyer for an outcome. For a
// split, exactly one of ratio (seller share, 0 < r < 1) or sellerAmount must be
// given. The buyer share is always the remainder, so the shares sum exactly.
func SplitShares(outcome DisputeStatus, gross int64, ratio *decimal.Decimal, sellerAmount *int64) (int64, int64, error) {
	switch outcome {
	case DisputeStatusResolvedBuyer:
		return 0, gross, nil
	case DisputeStatusResolvedSeller:
		return gross, 0, nil
	case DisputeStatusResolvedSplit:
	default:
		return 0, 0, fmt.Errorf("%w: %s is not a resolution", ErrInvalidInput, outcome)
	}
	var seller int64
	switch {
	case ratio != nil && sellerAmount != nil:
		return 0, 0, fmt.Errorf("%w: give either a ratio or a seller amount", ErrInvalidInput)
	case ratio != nil:
		if !ratio.IsPositive() || ratio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return 0, 0, fmt.Errorf("%w: split ratio must be between 0 and 1", ErrInvalidInput)
		}
		seller = ApplyRatio(gross, *ratio)
	case sellerAmount != nil:
		seller = *sellerAmount
	default:
		return 0, 0, fmt.Errorf("%w: split needs a ratio or a seller amount", ErrInvalidInput)
	}
	if seller <= 0 || seller >= gross {
		return 0, 0, fmt.Errorf("%w: split seller share %d outside (0, %d)", ErrInvalidInput, seller, gross)
	}
	return seller, gross - seller, nil
}
