package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// OutboxWorker relays committed ledger events to the broker.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize, maxRetries int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger: logger, outbox: outbox, publisher: publisher, interval: interval, batchSize: batchSize, maxRetries: maxRetries,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processOnce publishes one batch. Once a partition key fails, its later
// events wait for the next round so consumers never see them out of order.
func (w *OutboxWorker) processOnce(ctx context.Context) (int, error) {
	records, err := w.outbox.FetchUnpublished(ctx, w.batchSize, w.maxRetries)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	published := 0
	blocked := make(map[string]bool)
	for _, rec := range records {
		if blocked[rec.PartitionKey] {
			continue
		}
		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			blocked[rec.PartitionKey] = true
			level := slog.LevelWarn
			if rec.RetryCount+1 >= w.maxRetries {
				// last attempt; the record is parked for an operator
				level = slog.LevelError
			}
			w.logger.Log(ctx, level, "outbox publish failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"partition_key", rec.PartitionKey,
				"retry_count", rec.RetryCount+1,
				"error", err,
			)
			if markErr := w.outbox.MarkFailed(ctx, rec.OutboxID, err.Error(), now); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := w.outbox.MarkPublished(ctx, rec.OutboxID, now); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
