package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

const (
	TopicLedgerEvents    = "ledger.events"
	TopicLedgerAnalytics = "ledger.analytics"
	TopicLedgerOps       = "ledger.ops"
)

// KafkaPublisher routes each event class to its own topic unless the event
// type has an explicit override. Messages are keyed by partition key so all
// events for one purchase unit or seller land on one partition in order.
type KafkaPublisher struct {
	writer    *kafka.Writer
	overrides map[string]string
}

func NewKafkaPublisher(brokers []string, overrides map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
		},
		overrides: overrides,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicFor(eventType),
		Key:   []byte(partitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_class", Value: []byte(domain.CanonicalEventClass(eventType))},
		},
		Time: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if topic := p.overrides[eventType]; topic != "" {
		return topic
	}
	switch domain.CanonicalEventClass(eventType) {
	case domain.CanonicalEventClassOps:
		return TopicLedgerOps
	case domain.CanonicalEventClassAnalyticsOnly:
		return TopicLedgerAnalytics
	default:
		return TopicLedgerEvents
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
