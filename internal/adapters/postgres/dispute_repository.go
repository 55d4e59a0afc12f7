package postgres

import (
	"context"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type disputeRepository struct {
	db      *gorm.DB
	locking bool
}

// Create relies on disputes_one_active to reject a second open dispute.
func (r *disputeRepository) Create(ctx context.Context, row domain.Dispute) error {
	model := toDisputeModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDisputeExists
		}
		return err
	}
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, disputeID string) (domain.Dispute, error) {
	var model disputeModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where("dispute_id = ?", disputeID).Take(&model).Error; err != nil {
		return domain.Dispute{}, notFound(err)
	}
	return fromDisputeModel(model), nil
}

func (r *disputeRepository) GetActiveByPurchaseUnitID(ctx context.Context, purchaseUnitID string) (domain.Dispute, error) {
	var model disputeModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where("purchase_unit_id = ? AND status <> ?", purchaseUnitID, string(domain.DisputeStatusClosed)).
		Take(&model).Error; err != nil {
		return domain.Dispute{}, notFound(err)
	}
	return fromDisputeModel(model), nil
}

func (r *disputeRepository) Update(ctx context.Context, row domain.Dispute, expect domain.DisputeStatus) error {
	model := toDisputeModel(row)
	db := r.db.WithContext(ctx)
	res := db.Model(&disputeModel{}).
		Where("dispute_id = ? AND status = ?", row.DisputeID, string(expect)).
		Select("*").
		Omit("dispute_id", "purchase_unit_id", "created_at").
		Updates(&model)
	return casResult(db, &disputeModel{}, "dispute_id", row.DisputeID, res)
}
