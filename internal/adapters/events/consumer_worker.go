package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

// TopicGatewayWebhooks carries webhooks that an edge relay accepted and
// verified before handing them to the ledger.
const TopicGatewayWebhooks = "payments.gateway_webhook_received"

const (
	relayBatchSize   = 50
	relayMaxAttempts = 3
)

type Message struct {
	Topic   string
	Key     string
	Payload []byte

	attempts int
	source   kafka.Message
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Commit(ctx context.Context, msgs ...Message) error
}

type WebhookHandler interface {
	HandleRelayedWebhook(ctx context.Context, payload []byte) (domain.GatewayOutcome, error)
}

// ConsumerWorker feeds relayed webhooks into the ledger. A message that fails
// for an infrastructure reason is retried on the next tick, up to
// relayMaxAttempts; a message the ledger rejects is committed and dropped.
type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  WebhookHandler
	interval time.Duration
	retry    []Message
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler WebhookHandler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, handler: handler, interval: interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
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

// processOnce returns how many messages the ledger applied or acknowledged.
func (w *ConsumerWorker) processOnce(ctx context.Context) (int, error) {
	batch := w.retry
	w.retry = nil
	if room := relayBatchSize - len(batch); room > 0 {
		polled, err := w.consumer.Poll(ctx, room)
		batch = append(batch, polled...)
		if err != nil && len(batch) == 0 {
			return 0, err
		}
	}

	handled := 0
	done := make([]Message, 0, len(batch))
	for _, msg := range batch {
		if msg.Topic != TopicGatewayWebhooks {
			done = append(done, msg)
			continue
		}
		outcome, err := w.handler.HandleRelayedWebhook(ctx, msg.Payload)
		switch {
		case err == nil:
			handled++
			done = append(done, msg)
			w.logger.DebugContext(ctx, "relayed webhook handled",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_gateway_webhook",
				"outcome", string(outcome),
				"message_key", msg.Key,
			)
		case transient(err) && msg.attempts+1 < relayMaxAttempts:
			msg.attempts++
			w.retry = append(w.retry, msg)
			w.logger.WarnContext(ctx, "relayed webhook deferred",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_gateway_webhook",
				"outcome", "retry",
				"message_key", msg.Key,
				"attempt", msg.attempts,
				"error", err,
			)
		default:
			done = append(done, msg)
			w.logger.ErrorContext(ctx, "relayed webhook dropped",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_gateway_webhook",
				"outcome", "dropped",
				"alert", "operator",
				"message_key", msg.Key,
				"error_code", domain.ErrorCode(err),
				"error", err,
			)
		}
	}
	if err := w.consumer.Commit(ctx, done...); err != nil {
		return handled, err
	}
	return handled, nil
}

// transient reports failures that say nothing about the message itself.
func transient(err error) bool {
	switch domain.ErrorCode(err) {
	case "INTERNAL_ERROR", "CONCURRENCY_CONFLICT":
		return true
	}
	return false
}
