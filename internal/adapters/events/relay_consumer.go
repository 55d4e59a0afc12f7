package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaRelayConsumer reads relayed gateway webhooks. Offsets are committed
// only after the ledger has applied or rejected a message.
type KafkaRelayConsumer struct {
	reader *kafka.Reader
}

func NewKafkaRelayConsumer(brokers []string, groupID string) (*KafkaRelayConsumer, error) {
	switch {
	case len(brokers) == 0:
		return nil, fmt.Errorf("relay consumer requires at least one broker")
	case groupID == "":
		return nil, fmt.Errorf("relay consumer requires group id")
	}
	return &KafkaRelayConsumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       TopicGatewayWebhooks,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})}, nil
}

func (c *KafkaRelayConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]Message, 0, max)
	for len(out) < max {
		fetchCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		switch {
		case err == nil:
			out = append(out, Message{Topic: msg.Topic, Key: string(msg.Key), Payload: msg.Value, source: msg})
		case errors.Is(err, context.DeadlineExceeded):
			return out, nil
		case errors.Is(err, context.Canceled):
			return out, ctx.Err()
		default:
			return out, fmt.Errorf("fetch relayed webhook: %w", err)
		}
	}
	return out, nil
}

func (c *KafkaRelayConsumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	raw := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		raw = append(raw, m.source)
	}
	return c.reader.CommitMessages(ctx, raw...)
}

func (c *KafkaRelayConsumer) Close() error {
	return c.reader.Close()
}

// NoopConsumer stands in when no broker is configured; gateways then reach
// the ledger only through the webhook endpoint.
type NoopConsumer struct{}

func NewNoopConsumer() *NoopConsumer { return &NoopConsumer{} }

func (NoopConsumer) Poll(context.Context, int) ([]Message, error) { return nil, nil }

func (NoopConsumer) Commit(context.Context, ...Message) error { return nil }
