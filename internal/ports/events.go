package ports

import (
	"context"
	"time"
)

// OutboxEvent is written in the same transaction as the ledger change it
// describes. Payload is the marshaled event envelope.
type OutboxEvent struct {
	EventID          string
	EventType        string
	EventClass       string
	PartitionKey     string
	PartitionKeyPath string
	Payload          []byte
	OccurredAt       time.Time
	SchemaVersion    string
	TraceID          string
}

type OutboxRecord struct {
	OutboxID     string
	EventType    string
	EventClass   string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

// OutboxRepository is drained by the outbox worker oldest first. A failed
// publish only bumps RetryCount; the ledger change is already committed.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	// FetchUnpublished skips records that reached maxRetries; zero means no cap.
	FetchUnpublished(ctx context.Context, limit, maxRetries int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID string, errMsg string, at time.Time) error
}

// EventPublisher delivers one outbox payload to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
