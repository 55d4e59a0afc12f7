package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type flakyPublisher struct {
	failures int
	inner    *MemoryPublisher
}

func (p *flakyPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	return p.inner.Publish(ctx, eventType, payload, partitionKey)
}

func enqueue(t *testing.T, store *memory.Store, id, partitionKey string) {
	t.Helper()
	err := store.Outbox().Enqueue(context.Background(), ports.OutboxEvent{
		EventID:      id,
		EventType:    domain.EventEscrowHeld,
		EventClass:   domain.CanonicalEventClassDomain,
		PartitionKey: partitionKey,
		Payload:      []byte(`{"event_id":"` + id + `"}`),
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
}

func TestOutboxWorkerPublishesInOrderAndMarks(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	enqueue(t, store, "evt-1", "unit-a")
	enqueue(t, store, "evt-2", "unit-a")
	publisher := NewMemoryPublisher()
	worker := NewOutboxWorker(discardLogger(), store.Outbox(), publisher, time.Second, 10, 3)

	published, err := worker.processOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected 2 published, got %d", published)
	}
	msgs := publisher.Messages()
	if string(msgs[0].Payload) != `{"event_id":"evt-1"}` || msgs[1].PartitionKey != "unit-a" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	again, err := worker.processOnce(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("expected nothing left to publish, got %d err=%v", again, err)
	}
}

func TestOutboxWorkerRetriesThenStopsAtBudget(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	enqueue(t, store, "evt-1", "unit-a")
	publisher := &flakyPublisher{failures: 1, inner: NewMemoryPublisher()}
	worker := NewOutboxWorker(discardLogger(), store.Outbox(), publisher, time.Second, 10, 3)

	if n, _ := worker.processOnce(context.Background()); n != 0 {
		t.Fatalf("expected first attempt to fail, published %d", n)
	}
	records, _ := store.Outbox().FetchUnpublished(context.Background(), 10, 0)
	if len(records) != 1 || records[0].RetryCount != 1 || records[0].LastError == nil {
		t.Fatalf("expected failure recorded, got %+v", records)
	}
	if n, _ := worker.processOnce(context.Background()); n != 1 {
		t.Fatalf("expected retry to publish, got %d", n)
	}

	enqueue(t, store, "evt-2", "unit-b")
	stuck := &flakyPublisher{failures: 100, inner: NewMemoryPublisher()}
	worker = NewOutboxWorker(discardLogger(), store.Outbox(), stuck, time.Second, 10, 2)
	for i := 0; i < 5; i++ {
		_, _ = worker.processOnce(context.Background())
	}
	records, _ = store.Outbox().FetchUnpublished(context.Background(), 10, 0)
	if len(records) != 1 || records[0].RetryCount != 2 {
		t.Fatalf("expected retries capped at 2, got %+v", records)
	}
}

func TestOutboxWorkerHoldsBackLaterEventsForFailedKey(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	enqueue(t, store, "evt-1", "unit-a")
	enqueue(t, store, "evt-2", "unit-a")
	enqueue(t, store, "evt-3", "unit-b")
	inner := NewMemoryPublisher()
	worker := NewOutboxWorker(discardLogger(), store.Outbox(), &flakyPublisher{failures: 1, inner: inner}, time.Second, 10, 3)

	published, err := worker.processOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected only the other key published, got %d", published)
	}
	if msgs := inner.Messages(); len(msgs) != 1 || msgs[0].PartitionKey != "unit-b" {
		t.Fatalf("unexpected first round: %+v", msgs)
	}

	if published, _ = worker.processOnce(context.Background()); published != 2 {
		t.Fatalf("expected held-back events published, got %d", published)
	}
	msgs := inner.Messages()
	if string(msgs[1].Payload) != `{"event_id":"evt-1"}` || string(msgs[2].Payload) != `{"event_id":"evt-2"}` {
		t.Fatalf("expected unit-a events in order, got %+v", msgs)
	}
}

type stubConsumer struct {
	msgs      []Message
	committed []string
}

func (c *stubConsumer) Poll(_ context.Context, _ int) ([]Message, error) {
	out := c.msgs
	c.msgs = nil
	return out, nil
}

func (c *stubConsumer) Commit(_ context.Context, msgs ...Message) error {
	for _, m := range msgs {
		c.committed = append(c.committed, m.Key)
	}
	return nil
}

type recordingHandler struct {
	payloads []string
	failWith error
	calls    int
}

func (h *recordingHandler) HandleRelayedWebhook(_ context.Context, payload []byte) (domain.GatewayOutcome, error) {
	h.calls++
	if h.failWith != nil {
		return "", h.failWith
	}
	h.payloads = append(h.payloads, string(payload))
	return domain.GatewayOutcomeApplied, nil
}

func TestConsumerWorkerRoutesGatewayTopicOnly(t *testing.T) {
	t.Parallel()

	consumer := &stubConsumer{msgs: []Message{
		{Topic: TopicGatewayWebhooks, Key: "ref-1", Payload: []byte(`{"gateway_ref":"ref-1"}`)},
		{Topic: "profile.updated", Key: "other", Payload: []byte(`{}`)},
		{Topic: TopicGatewayWebhooks, Key: "ref-2", Payload: []byte(`{"gateway_ref":"ref-2"}`)},
	}}
	handler := &recordingHandler{}
	worker := NewConsumerWorker(discardLogger(), consumer, handler, time.Second)

	handled, err := worker.processOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if handled != 2 || len(handler.payloads) != 2 {
		t.Fatalf("expected 2 gateway messages handled, got %d (%v)", handled, handler.payloads)
	}
	if len(consumer.committed) != 3 {
		t.Fatalf("expected every message committed, got %v", consumer.committed)
	}
}

func TestConsumerWorkerCommitsRejectedMessages(t *testing.T) {
	t.Parallel()

	consumer := &stubConsumer{msgs: []Message{{Topic: TopicGatewayWebhooks, Key: "bad", Payload: []byte(`not json`)}}}
	worker := NewConsumerWorker(discardLogger(), consumer, &recordingHandler{failWith: domain.ErrInvalidInput}, time.Second)
	handled, err := worker.processOnce(context.Background())
	if err != nil || handled != 0 {
		t.Fatalf("expected message skipped without error, got %d err=%v", handled, err)
	}
	if len(consumer.committed) != 1 || len(worker.retry) != 0 {
		t.Fatalf("expected rejected message committed and not retried, committed=%v retry=%d", consumer.committed, len(worker.retry))
	}
}

func TestConsumerWorkerRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	consumer := &stubConsumer{msgs: []Message{{Topic: TopicGatewayWebhooks, Key: "ref-9", Payload: []byte(`{}`)}}}
	handler := &recordingHandler{failWith: errors.New("connection reset")}
	worker := NewConsumerWorker(discardLogger(), consumer, handler, time.Second)

	for i := 0; i < relayMaxAttempts-1; i++ {
		if _, err := worker.processOnce(context.Background()); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if len(consumer.committed) != 0 || len(worker.retry) != 1 {
			t.Fatalf("attempt %d: expected message held for retry, committed=%v retry=%d", i+1, consumer.committed, len(worker.retry))
		}
	}
	if _, err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	if handler.calls != relayMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", relayMaxAttempts, handler.calls)
	}
	if len(consumer.committed) != 1 || len(worker.retry) != 0 {
		t.Fatalf("expected message dropped after last attempt, committed=%v retry=%d", consumer.committed, len(worker.retry))
	}
}

type countingSweeper struct {
	mu        sync.Mutex
	accepts   int
	payouts   int
	acceptErr error
}

func (s *countingSweeper) AutoAcceptDue(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepts++
	return 1, s.acceptErr
}

func (s *countingSweeper) SweepPayouts(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payouts++
	return 0, nil
}

func TestSweepWorkerRunsBothSweeps(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	worker := NewSweepWorker(discardLogger(), sweeper, memory.NewLocker(), time.Minute)
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}
	if sweeper.accepts != 1 || sweeper.payouts != 1 {
		t.Fatalf("expected one of each sweep, got accepts=%d payouts=%d", sweeper.accepts, sweeper.payouts)
	}
}

func TestSweepWorkerStillBatchesWhenAutoAcceptFails(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{acceptErr: errors.New("db down")}
	worker := NewSweepWorker(discardLogger(), sweeper, nil, time.Minute)
	if err := worker.processOnce(context.Background()); err == nil {
		t.Fatalf("expected auto-accept error surfaced")
	}
	if sweeper.payouts != 1 {
		t.Fatalf("expected payout sweep to run, got %d", sweeper.payouts)
	}
}

func TestSweepWorkerSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	locker := memory.NewLocker()
	release, err := locker.TryLock(context.Background(), "ledger-sweep", time.Minute)
	if err != nil || release == nil {
		t.Fatalf("expected to take lock, err=%v", err)
	}
	sweeper := &countingSweeper{}
	worker := NewSweepWorker(discardLogger(), sweeper, locker, time.Minute)
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}
	if sweeper.accepts != 0 {
		t.Fatalf("expected sweep skipped while another holder has the lock")
	}
	release(context.Background())
	if err := worker.processOnce(context.Background()); err != nil || sweeper.accepts != 1 {
		t.Fatalf("expected sweep after release, accepts=%d err=%v", sweeper.accepts, err)
	}
}

func TestKafkaPublisherTopicRouting(t *testing.T) {
	t.Parallel()

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{
		domain.EventPayoutCreated: "ledger.payouts",
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	cases := map[string]string{
		domain.EventPayoutCreated:   "ledger.payouts",
		domain.EventEscrowHeld:      TopicLedgerEvents,
		domain.EventPurchaseStatus:  TopicLedgerAnalytics,
		domain.EventPaymentOrphaned: TopicLedgerOps,
	}
	for eventType, want := range cases {
		if got := p.topicFor(eventType); got != want {
			t.Fatalf("%s: expected topic %s, got %s", eventType, want, got)
		}
	}
	if _, err := NewKafkaPublisher(nil, nil); err == nil {
		t.Fatalf("expected broker list required")
	}
}
