package postgres

import (
	"context"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type refundRepository struct {
	db      *gorm.DB
	locking bool
}

func (r *refundRepository) Create(ctx context.Context, row domain.Refund) error {
	model := toRefundModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, refundID string) (domain.Refund, error) {
	var model refundModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where("refund_id = ?", refundID).Take(&model).Error; err != nil {
		return domain.Refund{}, notFound(err)
	}
	return fromRefundModel(model), nil
}

func (r *refundRepository) Update(ctx context.Context, row domain.Refund, expect domain.RefundStatus) error {
	model := toRefundModel(row)
	db := r.db.WithContext(ctx)
	res := db.Model(&refundModel{}).
		Where("refund_id = ? AND status = ?", row.RefundID, string(expect)).
		Select("*").
		Omit("refund_id", "created_at").
		Updates(&model)
	return casResult(db, &refundModel{}, "refund_id", row.RefundID, res)
}

func (r *refundRepository) ListByPurchaseUnitID(ctx context.Context, purchaseUnitID string) ([]domain.Refund, error) {
	var models []refundModel
	if err := r.db.WithContext(ctx).
		Where("purchase_unit_id = ?", purchaseUnitID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Refund, 0, len(models))
	for _, m := range models {
		out = append(out, fromRefundModel(m))
	}
	return out, nil
}
