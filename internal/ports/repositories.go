package ports

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

// Store runs fn inside one database transaction. Repositories reached through
// tx see and change state atomically; any error rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Repositories
}

// Tx exposes the repositories bound to a transaction.
type Tx interface {
	Repositories
}

type Repositories interface {
	Policies() FeePolicyRepository
	Purchases() PurchaseUnitRepository
	Holds() EscrowHoldRepository
	Refunds() RefundRepository
	Payouts() SellerPayoutRepository
	Disputes() DisputeRepository
	GatewayEvents() GatewayEventRepository
	Outbox() OutboxRepository
	Idempotency() IdempotencyRepository
}

type FeePolicyRepository interface {
	Create(ctx context.Context, row domain.FeePolicy) error
	GetByVersion(ctx context.Context, version int) (domain.FeePolicy, error)
	GetActive(ctx context.Context) (domain.FeePolicy, error)
	List(ctx context.Context) ([]domain.FeePolicy, error)
	NextVersion(ctx context.Context) (int, error)
	// Activate makes version the only active policy.
	Activate(ctx context.Context, version int, at time.Time) error
}

// Updates take the status the caller read; a row that moved since is
// reported as domain.ErrConcurrencyConflict.
type PurchaseUnitRepository interface {
	Create(ctx context.Context, row domain.PurchaseUnit) error
	GetByID(ctx context.Context, purchaseUnitID string) (domain.PurchaseUnit, error)
	Update(ctx context.Context, row domain.PurchaseUnit, expect domain.PurchaseGuard) error
	ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.PurchaseUnit, error)
}

type EscrowHoldRepository interface {
	Create(ctx context.Context, row domain.EscrowHold) error
	GetByID(ctx context.Context, holdID string) (domain.EscrowHold, error)
	GetByPurchaseUnitID(ctx context.Context, purchaseUnitID string) (domain.EscrowHold, error)
	Update(ctx context.Context, row domain.EscrowHold, expect domain.HoldStatus) error
	ListBySeller(ctx context.Context, sellerID string) ([]domain.EscrowHold, error)
	ListPayable(ctx context.Context, sellerID string, now time.Time) ([]domain.EscrowHold, error)
	ListSellersWithPayable(ctx context.Context, now time.Time, limit int) ([]string, error)
	// AttachPayout fails with domain.ErrConcurrencyConflict unless every hold is still unbatched.
	AttachPayout(ctx context.Context, holdIDs []string, payoutID string, at time.Time) error
	DetachPayout(ctx context.Context, payoutID string, at time.Time) error
	ListByPayoutID(ctx context.Context, payoutID string) ([]domain.EscrowHold, error)
}

type RefundRepository interface {
	Create(ctx context.Context, row domain.Refund) error
	GetByID(ctx context.Context, refundID string) (domain.Refund, error)
	Update(ctx context.Context, row domain.Refund, expect domain.RefundStatus) error
	ListByPurchaseUnitID(ctx context.Context, purchaseUnitID string) ([]domain.Refund, error)
}

type SellerPayoutRepository interface {
	Create(ctx context.Context, row domain.SellerPayout) error
	GetByID(ctx context.Context, payoutID string) (domain.SellerPayout, error)
	Update(ctx context.Context, row domain.SellerPayout, expect domain.PayoutStatus) error
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]domain.SellerPayout, error)
	StatusByIDs(ctx context.Context, payoutIDs []string) (map[string]domain.PayoutStatus, error)
}

type DisputeRepository interface {
	// Create fails with domain.ErrDisputeExists while another dispute for the unit is active.
	Create(ctx context.Context, row domain.Dispute) error
	GetByID(ctx context.Context, disputeID string) (domain.Dispute, error)
	GetActiveByPurchaseUnitID(ctx context.Context, purchaseUnitID string) (domain.Dispute, error)
	Update(ctx context.Context, row domain.Dispute, expect domain.DisputeStatus) error
}

type GatewayEventRepository interface {
	// Record fails with domain.ErrDuplicateEvent when the reference was already seen.
	Record(ctx context.Context, row domain.GatewayEventRecord) error
	// Supersede replaces the recorded delivery for the same reference when it
	// still has status expect, else fails with domain.ErrDuplicateEvent.
	Supersede(ctx context.Context, row domain.GatewayEventRecord, expect string) error
	Get(ctx context.Context, eventType domain.GatewayEventType, gatewayRef string) (domain.GatewayEventRecord, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	// Reserve takes over a key whose expiry is at or before now; a live key is
	// domain.ErrConflict.
	Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
