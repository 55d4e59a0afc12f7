package postgres

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	occurred := event.OccurredAt.UTC()
	model := ledgerOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		EventClass:   event.EventClass,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    occurred,
		FirstSeenAt:  occurred,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *outboxRepository) FetchUnpublished(ctx context.Context, limit, maxRetries int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxRetries > 0 {
		q = q.Where("retry_count < ?", maxRetries)
	}
	var models []ledgerOutboxModel
	if err := q.
		Order("created_at ASC, outbox_id ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(models))
	for _, m := range models {
		out = append(out, ports.OutboxRecord{
			OutboxID:     m.OutboxID,
			EventType:    m.EventType,
			EventClass:   m.EventClass,
			PartitionKey: m.PartitionKey,
			Payload:      []byte(m.Payload),
			RetryCount:   m.RetryCount,
			PublishedAt:  m.PublishedAt,
			LastError:    m.LastError,
			LastErrorAt:  m.LastErrorAt,
			FirstSeenAt:  m.FirstSeenAt,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ledgerOutboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"published_at":  at.UTC(),
			"last_error":    nil,
			"last_error_at": nil,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID string, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ledgerOutboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    errMsg,
			"last_error_at": at.UTC(),
		}).Error
}
