package postgres

import (
	"context"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the Postgres ledger store. Outside WithinTx each repository call
// runs on its own connection; inside it every call shares the transaction and
// reads take row locks.
type Store struct {
	db *gorm.DB
	repositorySet
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, repositorySet: repositorySet{db: db}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, repositorySet{db: tx, locking: true})
	})
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type repositorySet struct {
	db      *gorm.DB
	locking bool
}

func (r repositorySet) Policies() ports.FeePolicyRepository {
	return &feePolicyRepository{db: r.db}
}

func (r repositorySet) Purchases() ports.PurchaseUnitRepository {
	return &purchaseUnitRepository{db: r.db, locking: r.locking}
}

func (r repositorySet) Holds() ports.EscrowHoldRepository {
	return &escrowHoldRepository{db: r.db, locking: r.locking}
}

func (r repositorySet) Refunds() ports.RefundRepository {
	return &refundRepository{db: r.db, locking: r.locking}
}

func (r repositorySet) Payouts() ports.SellerPayoutRepository {
	return &sellerPayoutRepository{db: r.db, locking: r.locking}
}

func (r repositorySet) Disputes() ports.DisputeRepository {
	return &disputeRepository{db: r.db, locking: r.locking}
}

func (r repositorySet) GatewayEvents() ports.GatewayEventRepository {
	return &gatewayEventRepository{db: r.db}
}

func (r repositorySet) Outbox() ports.OutboxRepository {
	return &outboxRepository{db: r.db}
}

func (r repositorySet) Idempotency() ports.IdempotencyRepository {
	return &idempotencyRepository{db: r.db}
}

// forUpdate locks the selected rows when running inside a transaction.
func forUpdate(db *gorm.DB, locking bool) *gorm.DB {
	if !locking {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// casResult turns the outcome of a conditional update into the ledger's
// errors: no row matched either because the row is gone or because it moved.
func casResult(db *gorm.DB, model any, keyColumn, key string, res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(model).Where(keyColumn+" = ?", key).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConcurrencyConflict
}
