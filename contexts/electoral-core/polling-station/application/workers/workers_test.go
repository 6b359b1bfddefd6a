package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"urna/contexts/electoral-core/polling-station/adapters/memory"
	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/workers"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	"urna/contexts/electoral-core/polling-station/ports"
	"urna/internal/platform/messaging"

	"go.uber.org/goleak"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(context.Context, string, ports.EventEnvelope) error {
	p.calls++
	return errors.New("broker unavailable")
}

// flakyAudit fails the first append and then writes through to the store.
type flakyAudit struct {
	store *memory.Store
	calls int
}

func (a *flakyAudit) AppendAudit(ctx context.Context, entry entities.AuditEntry) error {
	a.calls++
	if a.calls == 1 {
		return errors.New("disk full")
	}
	return a.store.AppendAudit(ctx, entry)
}

// castOne opens an election, authorizes one special voter and casts an
// observed ballot, leaving outbox rows behind.
func castOne(t *testing.T, store *memory.Store) commands.CastBallotResult {
	t.Helper()
	ctx := context.Background()
	circuit := store.SeedCircuit("9", entities.Establishment{Name: "Escuela 9", Department: "Florida"})
	elections := commands.ElectionUseCase{UnitOfWork: store, IDGen: store}
	if _, err := elections.OpenElection(ctx, entities.ElectionSetup{
		Year:    2024,
		Tickets: []entities.Ticket{{PartyName: "Azul", ListNumber: 1, Head: "Ana"}},
	}); err != nil {
		t.Fatalf("open election failed: %v", err)
	}
	ledger := commands.LedgerUseCase{UnitOfWork: store, IDGen: store}
	if _, err := ledger.Authorize(ctx, commands.AuthorizeVoterCommand{
		Credential: "31313131",
		CircuitID:  circuit.CircuitID,
		Special:    true,
	}); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	casting := commands.CastingUseCase{UnitOfWork: store, IDGen: store}
	result, err := casting.CastBallot(ctx, commands.CastBallotCommand{
		Credential: "31313131",
		Selector:   1,
		CircuitID:  circuit.CircuitID,
	})
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	return result
}

func TestOutboxRelayFeedsAuditTrail(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewStore()
	result := castOne(t, store)

	bus, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new bus failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	consumer := workers.AuditTrailConsumer{
		Subscriber: bus,
		Dedup:      store,
		Audit:      store,
		IDGen:      store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer failed: %v", err)
	}

	relay := workers.OutboxRelay{Outbox: store, Publisher: bus, BatchSize: 10}
	published, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if published != 4 {
		t.Fatalf("expected 4 published rows (opened, authorized, cast, voted), got %d", published)
	}

	deadline := time.Now().Add(2 * time.Second)
	var audit []entities.AuditEntry
	for time.Now().Before(deadline) {
		audit, _ = store.ListAudit(context.Background())
		if len(audit) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	bus.Wait()

	if len(audit) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit))
	}
	if audit[0].BallotID != result.BallotID || audit[0].ReceiptID != result.ReceiptID || audit[0].EventType != "ballot.cast" {
		t.Fatalf("unexpected audit entry %+v", audit[0])
	}

	again, err := relay.RunOnce(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("published rows must not be relayed twice, got %d err=%v", again, err)
	}
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	castOne(t, store)

	publisher := &failingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher}
	published, err := relay.RunOnce(context.Background())
	if err == nil || published != 0 {
		t.Fatalf("expected failure with nothing published, got %d err=%v", published, err)
	}
	if publisher.calls != 1 {
		t.Fatalf("relay must stop at the first failure, got %d calls", publisher.calls)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 100)
	if len(pending) != 4 {
		t.Fatalf("expected all 4 rows still pending, got %d", len(pending))
	}
}

func TestAuditConsumerDropsReplayedEvents(t *testing.T) {
	now := time.Date(2024, 10, 27, 20, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	sub := &stubSubscriber{}
	consumer := workers.AuditTrailConsumer{
		Subscriber: sub,
		Dedup:      store,
		Audit:      store,
		Clock:      fixedClock{now: now},
		IDGen:      store,
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	handler := sub.handlers["ballot.resolved"]
	if handler == nil {
		t.Fatalf("expected ballot.resolved handler registration")
	}

	payload, _ := json.Marshal(map[string]any{
		"ballot_id":        "ballot-1",
		"receipt_id":       "C002-00001",
		"circuit_id":       2,
		"validation_state": "approved",
	})
	event := ports.EventEnvelope{
		EventID:    "event-resolved-1",
		EventType:  "ballot.resolved",
		OccurredAt: now.Add(-time.Minute),
		Data:       payload,
	}
	for i := 0; i < 2; i++ {
		if err := handler(context.Background(), event); err != nil {
			t.Fatalf("handler call %d failed: %v", i, err)
		}
	}

	audit, _ := store.ListAudit(context.Background())
	if len(audit) != 1 {
		t.Fatalf("expected one audit entry after replay, got %d", len(audit))
	}
	if audit[0].CircuitID != 2 || !audit[0].RecordedAt.Equal(now) {
		t.Fatalf("unexpected audit entry %+v", audit[0])
	}
}

func TestAuditConsumerRetriesAfterFailedAppend(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	audit := &flakyAudit{store: store}
	sub := &stubSubscriber{}
	consumer := workers.AuditTrailConsumer{
		Subscriber: sub,
		Dedup:      store,
		Audit:      audit,
		IDGen:      store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	handler := sub.handlers["ballot.cast"]

	payload, _ := json.Marshal(map[string]any{
		"ballot_id":  "ballot-7",
		"receipt_id": "C001-00007",
		"circuit_id": 1,
	})
	event := ports.EventEnvelope{
		EventID:    "event-cast-7",
		EventType:  "ballot.cast",
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	if err := handler(ctx, event); err == nil {
		t.Fatalf("expected the first delivery to fail")
	}
	if err := handler(ctx, event); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if err := handler(ctx, event); err != nil {
		t.Fatalf("replay after success failed: %v", err)
	}

	entries, _ := store.ListAudit(ctx)
	if len(entries) != 1 || entries[0].ReceiptID != "C001-00007" {
		t.Fatalf("expected one audit entry for the redelivered event, got %+v", entries)
	}
	if audit.calls != 2 {
		t.Fatalf("expected the replay after success to skip the append, got %d appends", audit.calls)
	}
}

func TestAuditConsumerReleasesUndecodableEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sub := &stubSubscriber{}
	consumer := workers.AuditTrailConsumer{Subscriber: sub, Dedup: store, Audit: store, IDGen: store}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	event := ports.EventEnvelope{EventID: "event-bad-1", EventType: "ballot.resolved", Data: []byte("{")}
	for i := 0; i < 2; i++ {
		if err := sub.handlers["ballot.resolved"](ctx, event); err == nil {
			t.Fatalf("delivery %d: expected decode error", i)
		}
	}
	duplicate, err := store.ReserveEvent(ctx, "event-bad-1", "other", time.Now().Add(time.Hour))
	if err != nil || duplicate {
		t.Fatalf("failed event must not stay reserved, duplicate=%v err=%v", duplicate, err)
	}
}

func TestAuditConsumerDisabledSubscribesNothing(t *testing.T) {
	sub := &stubSubscriber{}
	consumer := workers.AuditTrailConsumer{Subscriber: sub, Disabled: true}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Fatalf("disabled consumer must not subscribe, got %d handlers", len(sub.handlers))
	}
}
