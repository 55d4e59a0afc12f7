package postgres

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type purchaseUnitRepository struct {
	db      *gorm.DB
	locking bool
}

func (r *purchaseUnitRepository) Create(ctx context.Context, row domain.PurchaseUnit) error {
	model := toPurchaseUnitModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *purchaseUnitRepository) GetByID(ctx context.Context, purchaseUnitID string) (domain.PurchaseUnit, error) {
	var model purchaseUnitModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where("purchase_unit_id = ?", purchaseUnitID).Take(&model).Error; err != nil {
		return domain.PurchaseUnit{}, notFound(err)
	}
	return fromPurchaseUnitModel(model), nil
}

// Update writes the whole row only if status and revision count still match
// what the caller read.
func (r *purchaseUnitRepository) Update(ctx context.Context, row domain.PurchaseUnit, expect domain.PurchaseGuard) error {
	model := toPurchaseUnitModel(row)
	db := r.db.WithContext(ctx)
	res := db.Model(&purchaseUnitModel{}).
		Where("purchase_unit_id = ? AND status = ? AND revisions_used = ?", row.PurchaseUnitID, string(expect.Status), expect.RevisionsUsed).
		Select("*").
		Omit("purchase_unit_id", "created_at").
		Updates(&model)
	return casResult(db, &purchaseUnitModel{}, "purchase_unit_id", row.PurchaseUnitID, res)
}

func (r *purchaseUnitRepository) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.PurchaseUnit, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []purchaseUnitModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND delivered_at <= ?", string(domain.PurchaseStatusDelivered), cutoff).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseUnit, 0, len(models))
	for _, m := range models {
		out = append(out, fromPurchaseUnitModel(m))
	}
	return out, nil
}
