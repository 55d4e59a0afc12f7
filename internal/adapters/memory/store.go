// Package memory is an in-process ledger store used by tests and by the
// memory storage driver for local runs.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type state struct {
	policies      map[int]domain.FeePolicy
	purchases     map[string]domain.PurchaseUnit
	holds         map[string]domain.EscrowHold
	refunds       map[string]domain.Refund
	payouts       map[string]domain.SellerPayout
	disputes      map[string]domain.Dispute
	gatewayEvents map[string]domain.GatewayEventRecord
	outbox        map[string]ports.OutboxRecord
	outboxOrder   []string
	idempotency   map[string]ports.IdempotencyRecord
}

func newState() *state {
	return &state{
		policies:      make(map[int]domain.FeePolicy),
		purchases:     make(map[string]domain.PurchaseUnit),
		holds:         make(map[string]domain.EscrowHold),
		refunds:       make(map[string]domain.Refund),
		payouts:       make(map[string]domain.SellerPayout),
		disputes:      make(map[string]domain.Dispute),
		gatewayEvents: make(map[string]domain.GatewayEventRecord),
		outbox:        make(map[string]ports.OutboxRecord),
		idempotency:   make(map[string]ports.IdempotencyRecord),
	}
}

// clone copies the maps; rows are values and are never mutated in place.
func (s *state) clone() *state {
	return &state{
		policies:      maps.Clone(s.policies),
		purchases:     maps.Clone(s.purchases),
		holds:         maps.Clone(s.holds),
		refunds:       maps.Clone(s.refunds),
		payouts:       maps.Clone(s.payouts),
		disputes:      maps.Clone(s.disputes),
		gatewayEvents: maps.Clone(s.gatewayEvents),
		outbox:        maps.Clone(s.outbox),
		outboxOrder:   slices.Clone(s.outboxOrder),
		idempotency:   maps.Clone(s.idempotency),
	}
}

// Store serializes transactions behind one mutex. A transaction works on the
// live state and restores a snapshot when fn fails.
type Store struct {
	mu sync.Mutex
	st *state
	view
}

func NewStore() *Store {
	s := &Store{st: newState()}
	s.view = view{store: s}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, view{store: s, tx: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// view resolves the state a repository call works on: the transaction's when
// bound to one, otherwise the store's under its lock.
type view struct {
	store *Store
	tx    *state
}

func (v view) acquire() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

func (v view) Policies() ports.FeePolicyRepository { return policyRepository{v} }
func (v view) Purchases() ports.PurchaseUnitRepository { return purchaseRepository{v} }
func (v view) Holds() ports.EscrowHoldRepository { return holdRepository{v} }
func (v view) Refunds() ports.RefundRepository { return refundRepository{v} }
func (v view) Payouts() ports.SellerPayoutRepository { return payoutRepository{v} }
func (v view) Disputes() ports.DisputeRepository { return disputeRepository{v} }
func (v view) GatewayEvents() ports.GatewayEventRepository { return gatewayEventRepository{v} }
func (v view) Outbox() ports.OutboxRepository { return outboxRepository{v} }
func (v view) Idempotency() ports.IdempotencyRepository { return idempotencyRepository{v} }
