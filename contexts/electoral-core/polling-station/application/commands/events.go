package commands

import (
	"context"
	"time"

	"urna/contexts/electoral-core/polling-station/ports"
	"urna/internal/shared/events"
)

const sourceService = "polling-station"

const (
	EventVoterAuthorized = "voter.authorized"
	EventVoterVoted      = "voter.voted"
	EventBallotCast      = "ballot.cast"
	EventBallotResolved  = "ballot.resolved"
	EventElectionOpened  = "election.opened"
)

// appendEvent stages an envelope in the outbox of the running transaction so
// it commits or rolls back together with the state change.
func appendEvent(
	ctx context.Context,
	tx ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, eventType, sourceService, partitionKeyPath, partitionKey, occurredAt, data)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, envelope)
}

func nowFrom(clock ports.Clock) time.Time {
	now := time.Now().UTC()
	if clock != nil {
		now = clock.Now().UTC()
	}
	return now
}
