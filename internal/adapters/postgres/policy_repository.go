package postgres

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
)

type feePolicyRepository struct {
	db *gorm.DB
}

func (r *feePolicyRepository) Create(ctx context.Context, row domain.FeePolicy) error {
	model, err := toFeePolicyModel(row)
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

func (r *feePolicyRepository) GetByVersion(ctx context.Context, version int) (domain.FeePolicy, error) {
	var model feePolicyModel
	if err := r.db.WithContext(ctx).Where("version = ?", version).Take(&model).Error; err != nil {
		return domain.FeePolicy{}, notFound(err)
	}
	return fromFeePolicyModel(model)
}

func (r *feePolicyRepository) GetActive(ctx context.Context) (domain.FeePolicy, error) {
	var model feePolicyModel
	if err := r.db.WithContext(ctx).Where("is_active").Take(&model).Error; err != nil {
		return domain.FeePolicy{}, notFound(err)
	}
	return fromFeePolicyModel(model)
}

func (r *feePolicyRepository) List(ctx context.Context) ([]domain.FeePolicy, error) {
	var models []feePolicyModel
	if err := r.db.WithContext(ctx).Order("version ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.FeePolicy, 0, len(models))
	for _, m := range models {
		p, err := fromFeePolicyModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *feePolicyRepository) NextVersion(ctx context.Context) (int, error) {
	var current int
	if err := r.db.WithContext(ctx).Model(&feePolicyModel{}).Select("COALESCE(MAX(version), 0)").Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}

// Activate clears the previous active flag before setting the new one; the
// partial unique index on is_active rejects any overlap.
func (r *feePolicyRepository) Activate(ctx context.Context, version int, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&feePolicyModel{}).
			Where("is_active AND version <> ?", version).
			Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&feePolicyModel{}).
			Where("version = ?", version).
			Updates(map[string]any{
				"is_active":    true,
				"activated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
