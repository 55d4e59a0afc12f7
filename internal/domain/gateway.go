package domain

import "time"

type GatewayEventType string

const (
	GatewayEventPayment    GatewayEventType = "payment"
	GatewayEventSettlement GatewayEventType = "settlement"
	GatewayEventRefund     GatewayEventType = "refund"
)

const (
	GatewayStatusSucceeded = "succeeded"
	GatewayStatusFailed    = "failed"
)

// GatewayOutcome is what the ledger did with a webhook delivery.
type GatewayOutcome string

const (
	GatewayOutcomeApplied   GatewayOutcome = "applied"
	GatewayOutcomeDuplicate GatewayOutcome = "duplicate"
	GatewayOutcomeIgnored   GatewayOutcome = "ignored"
	GatewayOutcomeOrphaned  GatewayOutcome = "orphaned"
	GatewayOutcomeRejected  GatewayOutcome = "rejected"
)

// GatewayEvent is a normalized payment gateway notification. GatewayRef is the
// gateway's unique reference for the payment or refund and keys deduplication.
type GatewayEvent struct {
	Gateway        string
	GatewayRef     string
	Type           GatewayEventType
	Status         string
	PurchaseUnitID string
	RefundID       string
	Amount         int64
	GatewayFee     *int64
	FailureReason  string
	OccurredAt     time.Time
}

type GatewayEventRecord struct {
	GatewayRef     string
	Gateway        string
	Type           GatewayEventType
	Status         string
	PurchaseUnitID string
	Outcome        GatewayOutcome
	Detail         string
	ReceivedAt     time.Time
}
