package domain

import (
	"fmt"
	"time"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusFailed},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
}

// BankDetails is the seller's payout destination captured when a batch is created.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code"`
	AccountType   string `json:"account_type"`
}

func (b BankDetails) Complete() bool {
	return b.AccountHolder != "" && b.BankName != "" && b.AccountNumber != ""
}

// SellerPayout aggregates released holds into one bank transfer. Amount always
// equals the sum of the attached holds' SellerPayoutAmount.
type SellerPayout struct {
	PayoutID      string
	BatchID       string
	SellerID      string
	Currency      string
	Amount        int64
	Fee           int64
	NetAmount     int64
	HoldCount     int
	Status        PayoutStatus
	BankDetails   BankDetails
	AvailableAt   time.Time
	FailureReason string
	CreatedAt     time.Time
	ProcessingAt  *time.Time
	CompletedAt   *time.Time
	FailedAt      *time.Time
	UpdatedAt     time.Time
}

// BuildPayout sums the payable holds. ok is false when the sum is below the
// policy minimum or would not cover the payout fee; that is not an error.
func BuildPayout(payoutID, batchID, sellerID string, holds []EscrowHold, policy FeePolicy, bank BankDetails, now time.Time) (SellerPayout, bool) {
	out := SellerPayout{
		PayoutID:    payoutID,
		BatchID:     batchID,
		SellerID:    sellerID,
		Currency:    policy.Currency,
		Fee:         policy.PayoutFee,
		Status:      PayoutStatusPending,
		BankDetails: bank,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, h := range holds {
		if !h.Payable(now) || h.SellerID != sellerID {
			continue
		}
		out.Amount += h.SellerPayoutAmount
		out.HoldCount++
		if h.AvailableAt.After(out.AvailableAt) {
			out.AvailableAt = *h.AvailableAt
		}
		if h.Currency != "" {
			out.Currency = h.Currency
		}
	}
	out.NetAmount = out.Amount - out.Fee
	if out.HoldCount == 0 || out.Amount < policy.PayoutMinimum || out.NetAmount <= 0 {
		return SellerPayout{}, false
	}
	return out, true
}

func (p SellerPayout) Transition(to PayoutStatus, failureReason string, now time.Time) (SellerPayout, error) {
	allowed := false
	for _, s := range payoutTransitions[p.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return SellerPayout{}, fmt.Errorf("%w: payout %s %s -> %s", ErrInvalidStateTransition, p.PayoutID, p.Status, to)
	}
	at := now
	p.Status = to
	p.UpdatedAt = now
	switch to {
	case PayoutStatusProcessing:
		p.ProcessingAt = &at
	case PayoutStatusCompleted:
		p.CompletedAt = &at
	case PayoutStatusFailed:
		p.FailedAt = &at
		p.FailureReason = failureReason
	}
	return p, nil
}

type SellerBalance struct {
	SellerID     string
	Currency     string
	Held         int64
	Disputed     int64
	Reserved     int64
	Available    int64
	Batched      int64
	PaidOut      int64
	CalculatedAt time.Time
}

// ComputeSellerBalance buckets a seller's holds by where the money sits.
// payoutStatus maps payout ids to their current status.
func ComputeSellerBalance(sellerID string, holds []EscrowHold, payoutStatus map[string]PayoutStatus, now time.Time) SellerBalance {
	out := SellerBalance{SellerID: sellerID, CalculatedAt: now}
	for _, h := range holds {
		if out.Currency == "" {
			out.Currency = h.Currency
		}
		switch h.Status {
		case HoldStatusHeld:
			out.Held += h.SellerPayoutAmount
		case HoldStatusDisputed:
			out.Disputed += h.SellerPayoutAmount
		case HoldStatusReleased:
			switch {
			case h.PayoutID != nil && payoutStatus[*h.PayoutID] == PayoutStatusCompleted:
				out.PaidOut += h.SellerPayoutAmount
			case h.PayoutID != nil:
				out.Batched += h.SellerPayoutAmount
			case h.Payable(now):
				out.Available += h.SellerPayoutAmount
			default:
				out.Reserved += h.SellerPayoutAmount
			}
		}
	}
	return out
}
