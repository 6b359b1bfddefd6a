package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "urna/contexts/electoral-core/polling-station/application"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	"urna/contexts/electoral-core/polling-station/ports"
)

const (
	ballotCastTopic     = "ballot.cast"
	ballotResolvedTopic = "ballot.resolved"
	defaultAuditCG      = "polling-station-audit-cg"
)

// AuditTrailConsumer copies ballot lifecycle events into the append-only
// audit log. Delivery is at-least-once; duplicates are dropped by event id
// and a failed append releases its reservation so redelivery retries it.
type AuditTrailConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Audit         ports.AuditLog
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c AuditTrailConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("audit trail consumer disabled by feature flag",
			"event", "polling_audit_consumer_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultAuditCG
	}
	for _, topic := range []string{ballotCastTopic, ballotResolvedTopic} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			logger.Error("audit consumer subscribe failed",
				"event", "polling_audit_consumer_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("audit consumer subscriptions active",
		"event", "polling_audit_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c AuditTrailConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := nowFrom(c.Clock)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		logger.Error("audit event dedupe failed",
			"event", "polling_audit_event_dedupe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("audit event replay skipped",
			"event", "polling_audit_event_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	receiptID, err := c.record(ctx, event, now)
	if err != nil {
		logger.Error("audit entry append failed",
			"event", "polling_audit_append_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			logger.Error("audit event release failed",
				"event", "polling_audit_event_release_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"event_id", event.EventID,
				"error", releaseErr.Error(),
			)
		}
		return err
	}
	logger.Info("audit entry recorded",
		"event", "polling_audit_recorded",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"receipt_id", receiptID,
	)
	return nil
}

func (c AuditTrailConsumer) record(ctx context.Context, event ports.EventEnvelope, now time.Time) (string, error) {
	var payload struct {
		BallotID  string `json:"ballot_id"`
		ReceiptID string `json:"receipt_id"`
		CircuitID int64  `json:"circuit_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return "", fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	entryID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return "", err
	}
	entry := entities.AuditEntry{
		EntryID:    entryID,
		EventID:    event.EventID,
		EventType:  event.EventType,
		BallotID:   payload.BallotID,
		ReceiptID:  payload.ReceiptID,
		CircuitID:  payload.CircuitID,
		Detail:     append([]byte(nil), event.Data...),
		OccurredAt: event.OccurredAt,
		RecordedAt: now,
	}
	if err := c.Audit.AppendAudit(ctx, entry); err != nil {
		return "", err
	}
	return payload.ReceiptID, nil
}

func (c AuditTrailConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return c.DedupTTL
}
