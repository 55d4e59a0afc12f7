package postgres

import (
	"context"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type sellerPayoutRepository struct {
	db      *gorm.DB
	locking bool
}

func (r *sellerPayoutRepository) Create(ctx context.Context, row domain.SellerPayout) error {
	model, err := toSellerPayoutModel(row)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *sellerPayoutRepository) GetByID(ctx context.Context, payoutID string) (domain.SellerPayout, error) {
	var model sellerPayoutModel
	q := forUpdate(r.db.WithContext(ctx), r.locking)
	if err := q.Where("payout_id = ?", payoutID).Take(&model).Error; err != nil {
		return domain.SellerPayout{}, notFound(err)
	}
	return fromSellerPayoutModel(model)
}

func (r *sellerPayoutRepository) Update(ctx context.Context, row domain.SellerPayout, expect domain.PayoutStatus) error {
	model, err := toSellerPayoutModel(row)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	res := db.Model(&sellerPayoutModel{}).
		Where("payout_id = ? AND status = ?", row.PayoutID, string(expect)).
		Select("*").
		Omit("payout_id", "batch_id", "created_at").
		Updates(&model)
	return casResult(db, &sellerPayoutModel{}, "payout_id", row.PayoutID, res)
}

func (r *sellerPayoutRepository) ListBySeller(ctx context.Context, sellerID string, limit int) ([]domain.SellerPayout, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []sellerPayoutModel
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, payout_id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SellerPayout, 0, len(models))
	for _, m := range models {
		p, err := fromSellerPayoutModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *sellerPayoutRepository) StatusByIDs(ctx context.Context, payoutIDs []string) (map[string]domain.PayoutStatus, error) {
	out := make(map[string]domain.PayoutStatus, len(payoutIDs))
	if len(payoutIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PayoutID string `gorm:"column:payout_id"`
		Status   string `gorm:"column:status"`
	}
	if err := r.db.WithContext(ctx).
		Model(&sellerPayoutModel{}).
		Select("payout_id", "status").
		Where("payout_id IN ?", payoutIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PayoutID] = domain.PayoutStatus(row.Status)
	}
	return out, nil
}
