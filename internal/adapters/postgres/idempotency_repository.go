package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	idempotencyReserved  = "reserved"
	idempotencyCompleted = "completed"
)

type idempotencyRepository struct {
	db *gorm.DB
}

func (r *idempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var model ledgerIdempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND expires_at > ?", key, now.UTC()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := &ports.IdempotencyRecord{
		Key:          model.IdempotencyKey,
		RequestHash:  model.RequestHash,
		Status:       model.Status,
		ResponseCode: model.ResponseCode,
		ExpiresAt:    model.ExpiresAt,
	}
	if model.ResponseBody != nil {
		record.ResponseBody = []byte(*model.ResponseBody)
	}
	return record, nil
}

// Reserve takes over an expired key in place; a live key is a conflict.
func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error {
	now = now.UTC()
	model := ledgerIdempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         idempotencyReserved,
		ExpiresAt:      expiresAt.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "idempotency_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"request_hash":  requestHash,
				"status":        idempotencyReserved,
				"response_code": 0,
				"response_body": nil,
				"expires_at":    expiresAt.UTC(),
				"updated_at":    now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "ledger_idempotency.expires_at <= ?", Vars: []any{now}},
			}},
		}).
		Create(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	var body any
	if len(responseBody) > 0 {
		body = string(responseBody)
	}
	res := r.db.WithContext(ctx).
		Model(&ledgerIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"status":        idempotencyCompleted,
			"response_code": responseCode,
			"response_body": body,
			"expires_at":    gorm.Expr("GREATEST(expires_at, ?)", at.UTC().Add(7*24*time.Hour)),
			"updated_at":    at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
