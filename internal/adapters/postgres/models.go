package postgres

import (
	"time"

	"gorm.io/datatypes"
)

type feePolicyModel struct {
	Version               int            `gorm:"column:version;primaryKey"`
	Currency              string         `gorm:"column:currency"`
	BuyerFeeRateBP        int64          `gorm:"column:buyer_fee_rate_bp"`
	BuyerFeeMinimum       int64          `gorm:"column:buyer_fee_minimum"`
	SellerFeeTiers        datatypes.JSON `gorm:"column:seller_fee_tiers;type:jsonb"`
	GatewayBufferRateBP   int64          `gorm:"column:gateway_buffer_rate_bp"`
	GatewayBufferFixed    int64          `gorm:"column:gateway_buffer_fixed"`
	VATRateBP             int64          `gorm:"column:vat_rate_bp"`
	ProcessingFeeRateBP   int64          `gorm:"column:processing_fee_rate_bp"`
	MinimumBaseAmount     int64          `gorm:"column:minimum_base_amount"`
	PayoutReserveDays     int            `gorm:"column:payout_reserve_days"`
	PayoutMinimum         int64          `gorm:"column:payout_minimum"`
	PayoutFee             int64          `gorm:"column:payout_fee"`
	CourseRefundGraceDays int            `gorm:"column:course_refund_grace_days"`
	IsActive              bool           `gorm:"column:is_active"`
	CreatedBy             string         `gorm:"column:created_by"`
	CreatedAt             time.Time      `gorm:"column:created_at"`
	ActivatedAt           *time.Time     `gorm:"column:activated_at"`
}

func (feePolicyModel) TableName() string { return "fee_policies" }

type purchaseUnitModel struct {
	PurchaseUnitID      string     `gorm:"column:purchase_unit_id;type:uuid;primaryKey"`
	Kind                string     `gorm:"column:kind"`
	BuyerID             string     `gorm:"column:buyer_id"`
	SellerID            string     `gorm:"column:seller_id"`
	Currency            string     `gorm:"column:currency"`
	PolicyVersion       int        `gorm:"column:policy_version"`
	BaseAmount          int64      `gorm:"column:base_amount"`
	BuyerFee            int64      `gorm:"column:buyer_fee"`
	SellerFee           int64      `gorm:"column:seller_fee"`
	GrossAmount         int64      `gorm:"column:gross_amount"`
	SellerPayoutAmount  int64      `gorm:"column:seller_payout_amount"`
	PlatformRevenue     int64      `gorm:"column:platform_revenue"`
	EstimatedGatewayFee int64      `gorm:"column:estimated_gateway_fee"`
	VATAmount           int64      `gorm:"column:vat_amount"`
	Status              string     `gorm:"column:status"`
	Gateway             string     `gorm:"column:gateway"`
	PaymentRef          string     `gorm:"column:payment_ref"`
	RevisionsAllowed    int        `gorm:"column:revisions_allowed"`
	RevisionsUsed       int        `gorm:"column:revisions_used"`
	DeliveryRef         string     `gorm:"column:delivery_ref"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	PaidAt              *time.Time `gorm:"column:paid_at"`
	StartedAt           *time.Time `gorm:"column:started_at"`
	DeliveredAt         *time.Time `gorm:"column:delivered_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at"`
	CancelledAt         *time.Time `gorm:"column:cancelled_at"`
	DisputedAt          *time.Time `gorm:"column:disputed_at"`
	ClosedAt            *time.Time `gorm:"column:closed_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (purchaseUnitModel) TableName() string { return "purchase_units" }

type escrowHoldModel struct {
	HoldID             string     `gorm:"column:hold_id;type:uuid;primaryKey"`
	PurchaseUnitID     string     `gorm:"column:purchase_unit_id;type:uuid"`
	BuyerID            string     `gorm:"column:buyer_id"`
	SellerID           string     `gorm:"column:seller_id"`
	Currency           string     `gorm:"column:currency"`
	GrossAmount        int64      `gorm:"column:gross_amount"`
	GatewayFee         *int64     `gorm:"column:gateway_fee"`
	NetAmount          int64      `gorm:"column:net_amount"`
	SellerPayoutAmount int64      `gorm:"column:seller_payout_amount"`
	ReleasedAmount     int64      `gorm:"column:released_amount"`
	RefundedAmount     int64      `gorm:"column:refunded_amount"`
	RetainedAmount     int64      `gorm:"column:retained_amount"`
	Status             string     `gorm:"column:status"`
	HeldAt             time.Time  `gorm:"column:held_at"`
	DisputedAt         *time.Time `gorm:"column:disputed_at"`
	ReleasedAt         *time.Time `gorm:"column:released_at"`
	RefundedAt         *time.Time `gorm:"column:refunded_at"`
	AvailableAt        *time.Time `gorm:"column:available_at"`
	PayoutID           *string    `gorm:"column:payout_id;type:uuid"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (escrowHoldModel) TableName() string { return "escrow_holds" }

type refundModel struct {
	RefundID       string     `gorm:"column:refund_id;type:uuid;primaryKey"`
	PurchaseUnitID string     `gorm:"column:purchase_unit_id;type:uuid"`
	HoldID         string     `gorm:"column:hold_id;type:uuid"`
	BuyerID        string     `gorm:"column:buyer_id"`
	Amount         int64      `gorm:"column:amount"`
	ProcessingFee  int64      `gorm:"column:processing_fee"`
	BuyerFeeKept   int64      `gorm:"column:buyer_fee_kept"`
	Reason         string     `gorm:"column:reason"`
	Type           string     `gorm:"column:type"`
	Status         string     `gorm:"column:status"`
	GatewayRef     *string    `gorm:"column:gateway_ref"`
	FailureReason  string     `gorm:"column:failure_reason"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	SettledAt      *time.Time `gorm:"column:settled_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (refundModel) TableName() string { return "refunds" }

type sellerPayoutModel struct {
	PayoutID      string         `gorm:"column:payout_id;type:uuid;primaryKey"`
	BatchID       string         `gorm:"column:batch_id;type:uuid"`
	SellerID      string         `gorm:"column:seller_id"`
	Currency      string         `gorm:"column:currency"`
	Amount        int64          `gorm:"column:amount"`
	Fee           int64          `gorm:"column:fee"`
	NetAmount     int64          `gorm:"column:net_amount"`
	HoldCount     int            `gorm:"column:hold_count"`
	Status        string         `gorm:"column:status"`
	BankDetails   datatypes.JSON `gorm:"column:bank_details;type:jsonb"`
	AvailableAt   time.Time      `gorm:"column:available_at"`
	FailureReason string         `gorm:"column:failure_reason"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	ProcessingAt  *time.Time     `gorm:"column:processing_at"`
	CompletedAt   *time.Time     `gorm:"column:completed_at"`
	FailedAt      *time.Time     `gorm:"column:failed_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (sellerPayoutModel) TableName() string { return "seller_payouts" }

type disputeModel struct {
	DisputeID      string     `gorm:"column:dispute_id;type:uuid;primaryKey"`
	PurchaseUnitID string     `gorm:"column:purchase_unit_id;type:uuid"`
	HoldID         string     `gorm:"column:hold_id;type:uuid"`
	RaisedBy       string     `gorm:"column:raised_by"`
	RaisedByRole   string     `gorm:"column:raised_by_role"`
	Reason         string     `gorm:"column:reason"`
	Status         string     `gorm:"column:status"`
	ReviewedBy     string     `gorm:"column:reviewed_by"`
	ResolvedBy     string     `gorm:"column:resolved_by"`
	ResolutionNote string     `gorm:"column:resolution_note"`
	SellerAmount   int64      `gorm:"column:seller_amount"`
	BuyerAmount    int64      `gorm:"column:buyer_amount"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	ReviewedAt     *time.Time `gorm:"column:reviewed_at"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (disputeModel) TableName() string { return "disputes" }

type gatewayEventModel struct {
	EventType      string    `gorm:"column:event_type;primaryKey"`
	GatewayRef     string    `gorm:"column:gateway_ref;primaryKey"`
	Gateway        string    `gorm:"column:gateway"`
	Status         string    `gorm:"column:status"`
	PurchaseUnitID string    `gorm:"column:purchase_unit_id"`
	Outcome        string    `gorm:"column:outcome"`
	Detail         string    `gorm:"column:detail"`
	ReceivedAt     time.Time `gorm:"column:received_at"`
}

func (gatewayEventModel) TableName() string { return "gateway_events" }

type ledgerOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	EventClass   string     `gorm:"column:event_class"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	FirstSeenAt  time.Time  `gorm:"column:first_seen_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (ledgerOutboxModel) TableName() string { return "ledger_outbox" }

type ledgerIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (ledgerIdempotencyModel) TableName() string { return "ledger_idempotency" }
