package domain

import (
	"fmt"
	"time"
)

type PurchaseKind string

const (
	PurchaseKindOrder               PurchaseKind = "order"
	PurchaseKindSubscriptionPayment PurchaseKind = "subscription_payment"
	PurchaseKindCourseEnrollment    PurchaseKind = "course_enrollment"
)

func (k PurchaseKind) Valid() bool {
	switch k {
	case PurchaseKindOrder, PurchaseKindSubscriptionPayment, PurchaseKindCourseEnrollment:
		return true
	default:
		return false
	}
}

type PurchaseStatus string

const (
	PurchaseStatusPendingPayment    PurchaseStatus = "PENDING_PAYMENT"
	PurchaseStatusPaid              PurchaseStatus = "PAID"
	PurchaseStatusInProgress        PurchaseStatus = "IN_PROGRESS"
	PurchaseStatusDelivered         PurchaseStatus = "DELIVERED"
	PurchaseStatusRevisionRequested PurchaseStatus = "REVISION_REQUESTED"
	PurchaseStatusCompleted         PurchaseStatus = "COMPLETED"
	PurchaseStatusCancelled         PurchaseStatus = "CANCELLED"
	PurchaseStatusDisputed          PurchaseStatus = "DISPUTED"
	PurchaseStatusRefunded          PurchaseStatus = "REFUNDED"
	PurchaseStatusClosed            PurchaseStatus = "CLOSED"
)

func (s PurchaseStatus) Terminal() bool {
	switch s {
	case PurchaseStatusCompleted, PurchaseStatusCancelled, PurchaseStatusRefunded, PurchaseStatusClosed:
		return true
	default:
		return false
	}
}

// PurchaseAction names a trigger of the purchase state machine.
type PurchaseAction string

const (
	ActionConfirmPayment   PurchaseAction = "confirm_payment"
	ActionStartWork        PurchaseAction = "start_work"
	ActionDeliver          PurchaseAction = "deliver"
	ActionRequestRevision  PurchaseAction = "request_revision"
	ActionAccept           PurchaseAction = "accept"
	ActionCancel           PurchaseAction = "cancel"
	ActionDispute          PurchaseAction = "dispute"
	ActionResolveForBuyer  PurchaseAction = "resolve_buyer"
	ActionResolveForSeller PurchaseAction = "resolve_seller"
	ActionResolveSplit     PurchaseAction = "resolve_split"
)

type purchaseEdge struct {
	from   PurchaseStatus
	action PurchaseAction
}

var purchaseTransitions = map[purchaseEdge]PurchaseStatus{
	{PurchaseStatusPendingPayment, ActionConfirmPayment}: PurchaseStatusPaid,
	{PurchaseStatusPaid, ActionStartWork}:                PurchaseStatusInProgress,
	{PurchaseStatusInProgress, ActionDeliver}:            PurchaseStatusDelivered,
	{PurchaseStatusRevisionRequested, ActionDeliver}:     PurchaseStatusDelivered,
	{PurchaseStatusDelivered, ActionRequestRevision}:     PurchaseStatusRevisionRequested,
	{PurchaseStatusDelivered, ActionAccept}:              PurchaseStatusCompleted,
	{PurchaseStatusPendingPayment, ActionCancel}:         PurchaseStatusCancelled,
	{PurchaseStatusPaid, ActionCancel}:                   PurchaseStatusCancelled,
	{PurchaseStatusInProgress, ActionCancel}:             PurchaseStatusCancelled,
	{PurchaseStatusInProgress, ActionDispute}:            PurchaseStatusDisputed,
	{PurchaseStatusDelivered, ActionDispute}:             PurchaseStatusDisputed,
	{PurchaseStatusRevisionRequested, ActionDispute}:     PurchaseStatusDisputed,
	{PurchaseStatusDisputed, ActionResolveForBuyer}:      PurchaseStatusRefunded,
	{PurchaseStatusDisputed, ActionResolveForSeller}:     PurchaseStatusCompleted,
	{PurchaseStatusDisputed, ActionResolveSplit}:         PurchaseStatusClosed,
}

// NextPurchaseStatus looks the action up in the transition table.
func NextPurchaseStatus(from PurchaseStatus, action PurchaseAction) (PurchaseStatus, error) {
	to, ok := purchaseTransitions[purchaseEdge{from: from, action: action}]
	if !ok {
		return "", fmt.Errorf("%w: purchase %s cannot %s", ErrInvalidStateTransition, from, action)
	}
	return to, nil
}

// PurchaseUnit is the common shape of an order, a subscription payment and a
// course enrollment. Fees is the snapshot taken at creation and never changes.
type PurchaseUnit struct {
	PurchaseUnitID   string
	Kind             PurchaseKind
	BuyerID          string
	SellerID         string
	Currency         string
	Fees             FeeBreakdown
	Status           PurchaseStatus
	Gateway          string
	PaymentRef       string
	RevisionsAllowed int
	RevisionsUsed    int
	DeliveryRef      string
	CreatedAt        time.Time
	PaidAt           *time.Time
	StartedAt        *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	DisputedAt       *time.Time
	ClosedAt         *time.Time
	UpdatedAt        time.Time
}

// Guard is the compare-and-set precondition for a purchase update.
func (u PurchaseUnit) Guard() PurchaseGuard {
	return PurchaseGuard{Status: u.Status, RevisionsUsed: u.RevisionsUsed}
}

type PurchaseGuard struct {
	Status        PurchaseStatus
	RevisionsUsed int
}

// Apply returns the unit after action, stamping the matching timestamp.
// Revision and cancellation limits are enforced here so that every caller
// shares them.
func (u PurchaseUnit) Apply(action PurchaseAction, now time.Time) (PurchaseUnit, error) {
	to, err := NextPurchaseStatus(u.Status, action)
	if err != nil {
		return PurchaseUnit{}, err
	}
	next := u
	next.Status = to
	next.UpdatedAt = now
	at := now
	switch action {
	case ActionConfirmPayment:
		next.PaidAt = &at
	case ActionStartWork:
		next.StartedAt = &at
	case ActionDeliver:
		next.DeliveredAt = &at
	case ActionRequestRevision:
		if u.RevisionsUsed >= u.RevisionsAllowed {
			return PurchaseUnit{}, fmt.Errorf("%w: revision limit %d reached", ErrInvalidStateTransition, u.RevisionsAllowed)
		}
		next.RevisionsUsed = u.RevisionsUsed + 1
	case ActionCancel:
		if u.DeliveredAt != nil {
			return PurchaseUnit{}, fmt.Errorf("%w: delivered purchase cannot be cancelled", ErrInvalidStateTransition)
		}
		next.CancelledAt = &at
	case ActionDispute:
		next.DisputedAt = &at
	case ActionAccept, ActionResolveForSeller:
		next.CompletedAt = &at
	case ActionResolveForBuyer, ActionResolveSplit:
		next.ClosedAt = &at
	}
	return next, nil
}

// Funded reports whether a hold exists for the unit.
func (u PurchaseUnit) Funded() bool {
	return u.PaidAt != nil
}
