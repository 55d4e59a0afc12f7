package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type FeeTierDTO struct {
	UpTo    *int64 `json:"up_to,omitempty"`
	RateBP  int64  `json:"rate_bp"`
	Minimum int64  `json:"minimum"`
}

type CreatePolicyRequest struct {
	Currency              string       `json:"currency"`
	BuyerFeeRateBP        int64        `json:"buyer_fee_rate_bp"`
	BuyerFeeMinimum       int64        `json:"buyer_fee_minimum"`
	SellerFeeTiers        []FeeTierDTO `json:"seller_fee_tiers"`
	GatewayBufferRateBP   int64        `json:"gateway_buffer_rate_bp"`
	GatewayBufferFixed    int64        `json:"gateway_buffer_fixed"`
	VATRateBP             int64        `json:"vat_rate_bp"`
	ProcessingFeeRateBP   int64        `json:"processing_fee_rate_bp"`
	MinimumBaseAmount     int64        `json:"minimum_base_amount"`
	PayoutReserveDays     int          `json:"payout_reserve_days"`
	PayoutMinimum         int64        `json:"payout_minimum"`
	PayoutFee             int64        `json:"payout_fee"`
	CourseRefundGraceDays int          `json:"course_refund_grace_days"`
}

type PolicyResponse struct {
	Version               int          `json:"version"`
	Currency              string       `json:"currency"`
	BuyerFeeRateBP        int64        `json:"buyer_fee_rate_bp"`
	BuyerFeeMinimum       int64        `json:"buyer_fee_minimum"`
	SellerFeeTiers        []FeeTierDTO `json:"seller_fee_tiers"`
	GatewayBufferRateBP   int64        `json:"gateway_buffer_rate_bp"`
	GatewayBufferFixed    int64        `json:"gateway_buffer_fixed"`
	VATRateBP             int64        `json:"vat_rate_bp"`
	ProcessingFeeRateBP   int64        `json:"processing_fee_rate_bp"`
	MinimumBaseAmount     int64        `json:"minimum_base_amount"`
	PayoutReserveDays     int          `json:"payout_reserve_days"`
	PayoutMinimum         int64        `json:"payout_minimum"`
	PayoutFee             int64        `json:"payout_fee"`
	CourseRefundGraceDays int          `json:"course_refund_grace_days"`
	IsActive              bool         `json:"is_active"`
	CreatedBy             string       `json:"created_by"`
	CreatedAt             string       `json:"created_at"`
	ActivatedAt           string       `json:"activated_at,omitempty"`
}

type QuoteFeesRequest struct {
	BaseAmount int64 `json:"base_amount"`
}

type FeeBreakdownResponse struct {
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

type CreatePurchaseRequest struct {
	Kind             string `json:"kind"`
	SellerID         string `json:"seller_id"`
	BaseAmount       int64  `json:"base_amount"`
	Currency         string `json:"currency"`
	Gateway          string `json:"gateway"`
	RevisionsAllowed int    `json:"revisions_allowed"`
}

type DeliverRequest struct {
	DeliveryRef string `json:"delivery_ref"`
}

type CancelPurchaseRequest struct {
	RefundType string `json:"refund_type,omitempty"`
}

type RetryRefundRequest struct {
	RefundType string `json:"refund_type,omitempty"`
}

type RaiseDisputeRequest struct {
	Reason string `json:"reason"`
}

type PurchaseResponse struct {
	PurchaseUnitID   string               `json:"purchase_unit_id"`
	Kind             string               `json:"kind"`
	BuyerID          string               `json:"buyer_id"`
	SellerID         string               `json:"seller_id"`
	Currency         string               `json:"currency"`
	Status           string               `json:"status"`
	Fees             FeeBreakdownResponse `json:"fees"`
	Gateway          string               `json:"gateway,omitempty"`
	PaymentRef       string               `json:"payment_ref,omitempty"`
	RevisionsAllowed int                  `json:"revisions_allowed"`
	RevisionsUsed    int                  `json:"revisions_used"`
	DeliveryRef      string               `json:"delivery_ref,omitempty"`
	CreatedAt        string               `json:"created_at"`
	PaidAt           string               `json:"paid_at,omitempty"`
	DeliveredAt      string               `json:"delivered_at,omitempty"`
	CompletedAt      string               `json:"completed_at,omitempty"`
	CancelledAt      string               `json:"cancelled_at,omitempty"`
	UpdatedAt        string               `json:"updated_at"`
}

type CancellationResponse struct {
	Purchase PurchaseResponse `json:"purchase"`
	Hold     *HoldResponse    `json:"hold,omitempty"`
	Refund   *RefundResponse  `json:"refund,omitempty"`
}

type HoldResponse struct {
	HoldID             string `json:"hold_id"`
	PurchaseUnitID     string `json:"purchase_unit_id"`
	SellerID           string `json:"seller_id"`
	Currency           string `json:"currency"`
	Status             string `json:"status"`
	GrossAmount        int64  `json:"gross_amount"`
	GatewayFee         *int64 `json:"gateway_fee,omitempty"`
	NetAmount          int64  `json:"net_amount"`
	SellerPayoutAmount int64  `json:"seller_payout_amount"`
	ReleasedAmount     int64  `json:"released_amount"`
	RefundedAmount     int64  `json:"refunded_amount"`
	HeldAt             string `json:"held_at"`
	ReleasedAt         string `json:"released_at,omitempty"`
	RefundedAt         string `json:"refunded_at,omitempty"`
	AvailableAt        string `json:"available_at,omitempty"`
	PayoutID           string `json:"payout_id,omitempty"`
}

type RefundResponse struct {
	RefundID       string `json:"refund_id"`
	PurchaseUnitID string `json:"purchase_unit_id"`
	HoldID         string `json:"hold_id"`
	Amount         int64  `json:"amount"`
	ProcessingFee  int64  `json:"processing_fee"`
	BuyerFeeKept   int64  `json:"buyer_fee_kept"`
	Reason         string `json:"reason"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	GatewayRef     string `json:"gateway_ref,omitempty"`
	CreatedAt      string `json:"created_at"`
	SettledAt      string `json:"settled_at,omitempty"`
}

type ResolveDisputeRequest struct {
	Outcome      string `json:"outcome"`
	SplitRatio   string `json:"split_ratio,omitempty"`
	SellerAmount *int64 `json:"seller_amount,omitempty"`
	Note         string `json:"note,omitempty"`
}

type DisputeResponse struct {
	DisputeID      string `json:"dispute_id"`
	PurchaseUnitID string `json:"purchase_unit_id"`
	HoldID         string `json:"hold_id"`
	RaisedBy       string `json:"raised_by"`
	RaisedByRole   string `json:"raised_by_role"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
	ResolutionNote string `json:"resolution_note,omitempty"`
	SellerAmount   int64  `json:"seller_amount"`
	BuyerAmount    int64  `json:"buyer_amount"`
	CreatedAt      string `json:"created_at"`
	ResolvedAt     string `json:"resolved_at,omitempty"`
	ClosedAt       string `json:"closed_at,omitempty"`
}

type CreateBatchRequest struct {
	SellerID string `json:"seller_id"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason"`
}

type PayoutResponse struct {
	PayoutID      string `json:"payout_id"`
	BatchID       string `json:"batch_id"`
	SellerID      string `json:"seller_id"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
	Fee           int64  `json:"fee"`
	NetAmount     int64  `json:"net_amount"`
	HoldCount     int    `json:"hold_count"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	AvailableAt   string `json:"available_at"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

type SellerBalanceResponse struct {
	SellerID     string `json:"seller_id"`
	Currency     string `json:"currency"`
	Held         int64  `json:"held"`
	Disputed     int64  `json:"disputed"`
	Reserved     int64  `json:"reserved"`
	Available    int64  `json:"available"`
	Batched      int64  `json:"batched"`
	PaidOut      int64  `json:"paid_out"`
	CalculatedAt string `json:"calculated_at"`
}

type GatewayEventResponse struct {
	GatewayRef string `json:"gateway_ref"`
	Outcome    string `json:"outcome"`
}

type DisputeResolutionResponse struct {
	Dispute  DisputeResponse  `json:"dispute"`
	Purchase PurchaseResponse `json:"purchase"`
	Hold     HoldResponse     `json:"hold"`
	Refund   *RefundResponse  `json:"refund,omitempty"`
}

type ConfirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type SweepResponse struct {
	AutoAccepted   int `json:"auto_accepted"`
	PayoutsCreated int `json:"payouts_created"`
}
