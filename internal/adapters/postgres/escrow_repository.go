package postgres

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type escrowHoldRepository struct {
	db      *gorm.DB
	locking bool
}

func (r *escrowHoldRepository) Create(ctx context.Context, row domain.EscrowHold) error {
	model := toEscrowHoldModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrHoldExists
		}
		return err
	}
	return nil
}

func (r *escrowHoldRepository) GetByID(ctx context.Context, holdID string) (domain.EscrowHold, error) {
	return r.getOne(ctx, "hold_id = ?", holdID)
}

func (r *escrowHoldRepository) GetByPurchaseUnitID(ctx context.Context, purchaseUnitID string) (domain.EscrowHold, error) {
	return r.getOne(ctx, "purchase_unit_id = ?", purchaseUnitID)
}

func (r *escrowHoldRepository) getOne(ctx context.Context, query string, arg any) (domain.EscrowHold, error) {
	var model escrowHoldModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where(query, arg).Take(&model).Error; err != nil {
		return domain.EscrowHold{}, notFound(err)
	}
	return fromEscrowHoldModel(model), nil
}

func (r *escrowHoldRepository) Update(ctx context.Context, row domain.EscrowHold, expect domain.HoldStatus) error {
	model := toEscrowHoldModel(row)
	db := r.db.WithContext(ctx)
	res := db.Model(&escrowHoldModel{}).
		Where("hold_id = ? AND status = ?", row.HoldID, string(expect)).
		Select("*").
		Omit("hold_id", "purchase_unit_id").
		Updates(&model)
	return casResult(db, &escrowHoldModel{}, "hold_id", row.HoldID, res)
}

func (r *escrowHoldRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.EscrowHold, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("seller_id = ?", sellerID))
}

func (r *escrowHoldRepository) ListPayable(ctx context.Context, sellerID string, now time.Time) ([]domain.EscrowHold, error) {
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	return r.list(ctx, payable(q, now).Where("seller_id = ?", sellerID))
}

func (r *escrowHoldRepository) ListSellersWithPayable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var sellers []string
	err := payable(r.db.WithContext(ctx).Model(&escrowHoldModel{}), now).
		Distinct("seller_id").
		Order("seller_id ASC").
		Limit(limit).
		Pluck("seller_id", &sellers).Error
	return sellers, err
}

func payable(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("status = ? AND payout_id IS NULL AND available_at <= ? AND seller_payout_amount > 0",
		string(domain.HoldStatusReleased), now)
}

// AttachPayout claims every hold for the payout or none of them.
func (r *escrowHoldRepository) AttachPayout(ctx context.Context, holdIDs []string, payoutID string, at time.Time) error {
	if len(holdIDs) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&escrowHoldModel{}).
		Where("hold_id IN ? AND status = ? AND payout_id IS NULL", holdIDs, string(domain.HoldStatusReleased)).
		Updates(map[string]any{
			"payout_id":  payoutID,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(holdIDs)) {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (r *escrowHoldRepository) DetachPayout(ctx context.Context, payoutID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&escrowHoldModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"payout_id":  nil,
			"updated_at": at,
		}).Error
}

func (r *escrowHoldRepository) ListByPayoutID(ctx context.Context, payoutID string) ([]domain.EscrowHold, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("payout_id = ?", payoutID))
}

func (r *escrowHoldRepository) list(_ context.Context, q *gorm.DB) ([]domain.EscrowHold, error) {
	var models []escrowHoldModel
	if err := q.Order("held_at ASC, hold_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EscrowHold, 0, len(models))
	for _, m := range models {
		out = append(out, fromEscrowHoldModel(m))
	}
	return out, nil
}
