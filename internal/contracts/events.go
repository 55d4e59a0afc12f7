package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type PolicyActivatedPayload struct {
	Version     int    `json:"version"`
	ActivatedBy string `json:"activated_by"`
	ActivatedAt string `json:"activated_at"`
}

type PurchaseEventPayload struct {
	PurchaseUnitID string `json:"purchase_unit_id"`
	Kind           string `json:"kind"`
	BuyerID        string `json:"buyer_id"`
	SellerID       string `json:"seller_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	GrossAmount    int64  `json:"gross_amount"`
	Currency       string `json:"currency"`
	PolicyVersion  int    `json:"policy_version"`
	OccurredAt     string `json:"occurred_at"`
}

type EscrowEventPayload struct {
	PurchaseUnitID     string `json:"purchase_unit_id"`
	HoldID             string `json:"hold_id"`
	SellerID           string `json:"seller_id"`
	Status             string `json:"status"`
	GrossAmount        int64  `json:"gross_amount"`
	ReleasedAmount     int64  `json:"released_amount"`
	RefundedAmount     int64  `json:"refunded_amount"`
	SellerPayoutAmount int64  `json:"seller_payout_amount"`
	AvailableAt        string `json:"available_at,omitempty"`
	OccurredAt         string `json:"occurred_at"`
}

type RefundEventPayload struct {
	PurchaseUnitID string `json:"purchase_unit_id"`
	RefundID       string `json:"refund_id"`
	HoldID         string `json:"hold_id"`
	BuyerID        string `json:"buyer_id"`
	Amount         int64  `json:"amount"`
	ProcessingFee  int64  `json:"processing_fee"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	OccurredAt     string `json:"occurred_at"`
}

type DisputeEventPayload struct {
	PurchaseUnitID string `json:"purchase_unit_id"`
	DisputeID      string `json:"dispute_id"`
	Status         string `json:"status"`
	RaisedBy       string `json:"raised_by"`
	SellerAmount   int64  `json:"seller_amount"`
	BuyerAmount    int64  `json:"buyer_amount"`
	OccurredAt     string `json:"occurred_at"`
}

type PayoutEventPayload struct {
	PayoutID      string `json:"payout_id"`
	BatchID       string `json:"batch_id"`
	SellerID      string `json:"seller_id"`
	Amount        int64  `json:"amount"`
	Fee           int64  `json:"fee"`
	NetAmount     int64  `json:"net_amount"`
	HoldCount     int    `json:"hold_count"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

type GatewayOpsPayload struct {
	PurchaseUnitID string `json:"purchase_unit_id"`
	Gateway        string `json:"gateway"`
	GatewayRef     string `json:"gateway_ref"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Outcome        string `json:"outcome"`
	Detail         string `json:"detail,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// GatewayWebhook is the normalized webhook body, received over HTTP or
// relayed through the gateway topic.
type GatewayWebhook struct {
	Gateway        string    `json:"gateway"`
	GatewayRef     string    `json:"gateway_ref"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	PurchaseUnitID string    `json:"purchase_unit_id"`
	RefundID       string    `json:"refund_id,omitempty"`
	Amount         int64     `json:"amount"`
	GatewayFee     *int64    `json:"gateway_fee,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
