package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"

	"github.com/google/uuid"
)

// WithinTx runs fn against a private copy of the store. Transactions are
// serialized, which is stricter than the row locks of the SQL adapter.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &memTx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

var _ ports.Tx = (*memTx)(nil)

type memTx struct {
	state *state
}

func (t *memTx) GetCircuit(_ context.Context, circuitID int64) (entities.Circuit, error) {
	circuit, ok := t.state.circuits[circuitID]
	if !ok {
		return entities.Circuit{}, domainerrors.ErrCircuitNotFound
	}
	return circuit, nil
}

func (t *memTx) GetCircuitByNumber(_ context.Context, number string) (entities.Circuit, bool, error) {
	circuit, ok := t.state.circuitByNumber(strings.TrimSpace(number))
	return circuit, ok, nil
}

func (t *memTx) CreateCircuit(_ context.Context, number string, establishment entities.Establishment) (entities.Circuit, error) {
	number = strings.TrimSpace(number)
	if _, exists := t.state.circuitByNumber(number); exists {
		return entities.Circuit{}, domainerrors.ErrConflict
	}
	return t.state.addCircuit(number, establishment), nil
}

func (t *memTx) IsRegistered(_ context.Context, credential string, circuitID int64) (bool, error) {
	_, ok := t.state.registry[registryKey{credential: credential, circuitID: circuitID}]
	return ok, nil
}

func (t *memTx) ResolveHomeCircuit(_ context.Context, credential string) (entities.CircuitRef, bool, error) {
	entries := make([]entities.CredentialRegistryEntry, 0, 1)
	for key, entry := range t.state.registry {
		if key.credential == credential {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return entities.CircuitRef{}, false, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CircuitID < entries[j].CircuitID
	})
	ref, ok := t.state.circuitRef(entries[0].CircuitID)
	return ref, ok, nil
}

func (t *memTx) InsertRegistryEntry(_ context.Context, entry entities.CredentialRegistryEntry) (bool, error) {
	if _, ok := t.state.circuits[entry.CircuitID]; !ok {
		return false, domainerrors.ErrCircuitNotFound
	}
	key := registryKey{credential: entry.Credential, circuitID: entry.CircuitID}
	if _, exists := t.state.registry[key]; exists {
		return false, nil
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	t.state.registry[key] = entry
	return true, nil
}

func (t *memTx) LockAuthorization(_ context.Context, credential string) (entities.AuthorizationRecord, bool, error) {
	record, ok := t.state.authorizations[credential]
	return record, ok, nil
}

func (t *memTx) InsertAuthorization(_ context.Context, record entities.AuthorizationRecord) error {
	if _, exists := t.state.authorizations[record.Credential]; exists {
		return domainerrors.ErrAlreadyAuthorized
	}
	record.AuthorizedAt = record.AuthorizedAt.UTC()
	t.state.authorizations[record.Credential] = record
	return nil
}

func (t *memTx) MarkVoted(_ context.Context, credential string, votedAt time.Time) error {
	record, ok := t.state.authorizations[credential]
	switch {
	case !ok:
		return domainerrors.ErrNotAuthorized
	case record.HasVoted():
		return domainerrors.ErrAlreadyVoted
	case !record.CanVote():
		return domainerrors.ErrNotAuthorized
	}
	at := votedAt.UTC()
	record.State = entities.AuthorizationVoted
	record.VotedAt = &at
	t.state.authorizations[credential] = record
	return nil
}

func (t *memTx) NextReceiptSequence(_ context.Context, circuitID int64) (int, error) {
	if _, ok := t.state.circuits[circuitID]; !ok {
		return 0, domainerrors.ErrCircuitNotFound
	}
	maxSequence := 0
	for _, ballot := range t.state.ballots {
		if ballot.CircuitID == circuitID && ballot.Sequence > maxSequence {
			maxSequence = ballot.Sequence
		}
	}
	return maxSequence + 1, nil
}

func (t *memTx) InsertBallot(_ context.Context, ballot entities.Ballot) error {
	if _, exists := t.state.ballots[ballot.BallotID]; exists {
		return domainerrors.ErrConflict
	}
	for _, existing := range t.state.ballots {
		if existing.CircuitID != ballot.CircuitID {
			continue
		}
		if existing.Sequence == ballot.Sequence || existing.ReceiptID == ballot.ReceiptID {
			return domainerrors.ErrConflict
		}
	}
	ballot.CastAt = ballot.CastAt.UTC()
	t.state.ballots[ballot.BallotID] = ballot
	return nil
}

func (t *memTx) LockBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	ballot, ok := t.state.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrAdjudicationNotFound
	}
	return ballot, nil
}

func (t *memTx) ResolveBallot(
	_ context.Context,
	ballotID string,
	target entities.ValidationState,
	actor string,
	resolvedAt time.Time,
) error {
	ballot, ok := t.state.ballots[ballotID]
	if !ok {
		return domainerrors.ErrAdjudicationNotFound
	}
	if ballot.ValidationState != entities.ValidationPending {
		return domainerrors.ErrAlreadyResolved
	}
	at := resolvedAt.UTC()
	ballot.ValidationState = target
	ballot.ResolvedBy = actor
	ballot.ResolvedAt = &at
	t.state.ballots[ballotID] = ballot
	return nil
}

func (t *memTx) ActiveElection(_ context.Context) (entities.Election, bool, error) {
	election, ok := t.state.activeElection()
	return election, ok, nil
}

func (t *memTx) GetCandidate(_ context.Context, candidateID int64) (entities.Candidate, bool, error) {
	candidate, ok := t.state.candidates[candidateID]
	return candidate, ok, nil
}

func (t *memTx) ReplaceElection(_ context.Context, setup entities.ElectionSetup, createdAt time.Time) (entities.Election, error) {
	return t.state.replaceElection(setup, createdAt), nil
}

func (t *memTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := t.state.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	t.state.lastOutboxOrder++
	t.state.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		order: t.state.lastOutboxOrder,
	}
	return nil
}
