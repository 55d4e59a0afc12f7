package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventPolicyActivated   = "ledger.policy_activated"
	EventPurchaseCreated   = "ledger.purchase_created"
	EventPurchasePaid      = "ledger.purchase_paid"
	EventPurchaseStatus    = "ledger.purchase_status_changed"
	EventPurchaseCompleted = "ledger.purchase_completed"
	EventPurchaseCancelled = "ledger.purchase_cancelled"
	EventEscrowHeld        = "ledger.escrow_held"
	EventEscrowReleased    = "ledger.escrow_released"
	EventEscrowRefunded    = "ledger.escrow_refunded"
	EventEscrowDisputed    = "ledger.escrow_disputed"
	EventRefundSettled     = "ledger.refund_settled"
	EventRefundReissued    = "ledger.refund_reissued"
	EventDisputeRaised     = "ledger.dispute_raised"
	EventDisputeResolved   = "ledger.dispute_resolved"
	EventDisputeClosed     = "ledger.dispute_closed"
	EventPayoutCreated     = "ledger.payout_created"
	EventPayoutStatus      = "ledger.payout_status_changed"
	EventPaymentFailed     = "ledger.payment_failed"
	EventPaymentOrphaned   = "ledger.payment_orphaned"
	EventGatewayRejected   = "ledger.gateway_event_rejected"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	return CanonicalEventClass(eventType) != ""
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventPurchaseCreated, EventPurchasePaid, EventPurchaseCompleted, EventPurchaseCancelled,
		EventEscrowHeld, EventEscrowReleased, EventEscrowRefunded, EventEscrowDisputed,
		EventRefundSettled, EventRefundReissued, EventDisputeRaised, EventDisputeResolved, EventDisputeClosed,
		EventPayoutCreated, EventPayoutStatus, EventPolicyActivated:
		return CanonicalEventClassDomain
	case EventPurchaseStatus:
		return CanonicalEventClassAnalyticsOnly
	case EventPaymentFailed, EventPaymentOrphaned, EventGatewayRejected:
		return CanonicalEventClassOps
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	switch eventType {
	case EventPayoutCreated, EventPayoutStatus:
		return "data.seller_id"
	case EventPolicyActivated:
		return "data.version"
	case "":
		return ""
	default:
		return "data.purchase_unit_id"
	}
}
