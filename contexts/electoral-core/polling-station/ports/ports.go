package ports

import (
	"context"
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	"urna/internal/shared/events"
	"urna/internal/shared/outbox"
)

type EventEnvelope = events.Envelope

type OutboxMessage = outbox.Message

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// UnitOfWork scopes a storage handle to one transaction. The handle is only
// valid inside fn; returning an error rolls every write back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional storage handle. Lock* methods take row locks that
// are held until the transaction ends.
type Tx interface {
	CircuitTx
	RegistryTx
	LedgerTx
	BallotTx
	ElectionTx
	OutboxWriter
}

type CircuitTx interface {
	GetCircuit(ctx context.Context, circuitID int64) (entities.Circuit, error)
	GetCircuitByNumber(ctx context.Context, number string) (entities.Circuit, bool, error)
	CreateCircuit(ctx context.Context, number string, establishment entities.Establishment) (entities.Circuit, error)
}

type RegistryTx interface {
	IsRegistered(ctx context.Context, credential string, circuitID int64) (bool, error)
	ResolveHomeCircuit(ctx context.Context, credential string) (entities.CircuitRef, bool, error)
	InsertRegistryEntry(ctx context.Context, entry entities.CredentialRegistryEntry) (bool, error)
}

type LedgerTx interface {
	LockAuthorization(ctx context.Context, credential string) (entities.AuthorizationRecord, bool, error)
	InsertAuthorization(ctx context.Context, record entities.AuthorizationRecord) error
	MarkVoted(ctx context.Context, credential string, votedAt time.Time) error
}

type BallotTx interface {
	NextReceiptSequence(ctx context.Context, circuitID int64) (int, error)
	InsertBallot(ctx context.Context, ballot entities.Ballot) error
	LockBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	ResolveBallot(ctx context.Context, ballotID string, state entities.ValidationState, actor string, resolvedAt time.Time) error
}

type ElectionTx interface {
	ActiveElection(ctx context.Context) (entities.Election, bool, error)
	GetCandidate(ctx context.Context, candidateID int64) (entities.Candidate, bool, error)
	ReplaceElection(ctx context.Context, setup entities.ElectionSetup, createdAt time.Time) (entities.Election, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// Repository serves committed reads outside any write transaction.
type Repository interface {
	CircuitReader
	LedgerReader
	BallotReader
	TallyReader
}

type CircuitReader interface {
	GetCircuitByNumber(ctx context.Context, number string) (entities.Circuit, bool, error)
	GetCircuitRef(ctx context.Context, circuitID int64) (entities.CircuitRef, error)
	ListDepartments(ctx context.Context) ([]string, error)
	// SearchCircuits matches numbers containing term, ordered numerically.
	// An empty term matches every circuit; limit <= 0 means no limit.
	SearchCircuits(ctx context.Context, term string, limit int) ([]entities.CircuitRef, error)
}

type LedgerReader interface {
	GetAuthorization(ctx context.Context, credential string) (entities.AuthorizationRecord, bool, error)
	ListAuthorizationsByCircuit(ctx context.Context, circuitID int64) ([]entities.AuthorizationRecord, error)
	ListRegistryByCircuit(ctx context.Context, circuitID int64) ([]entities.CredentialRegistryEntry, error)
}

type BallotReader interface {
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	ListPendingObserved(ctx context.Context, circuitID int64) ([]entities.Ballot, error)
}

type TallyReader interface {
	GetActiveElection(ctx context.Context) (entities.Election, bool, error)
	GetElection(ctx context.Context, electionID int64) (entities.Election, bool, error)
	ListHeadCandidates(ctx context.Context, electionID int64) ([]entities.HeadCandidate, error)
	ListCandidates(ctx context.Context, electionID int64) ([]entities.CandidateListing, error)
	CountBallots(ctx context.Context, filter entities.BallotFilter) (entities.BallotCounts, error)
	CountAuthorizations(ctx context.Context, scope entities.AuthorizationScope) (int, error)
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore remembers consumed event ids. A reservation whose handler
// fails must be released so redelivery is processed again.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

type AuditLog interface {
	AppendAudit(ctx context.Context, entry entities.AuditEntry) error
}

// Metrics receives operation outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveAuthorization(special bool, err error)
	ObserveCast(observed bool, err error, elapsed time.Duration)
	ObserveResolution(decision string, err error)
}
