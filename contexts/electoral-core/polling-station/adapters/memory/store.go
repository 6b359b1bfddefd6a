package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter used by tests and local runs. It
// implements the unit of work, the read repository, the outbox, event
// dedup and the audit log.
type Store struct {
	mu    sync.RWMutex
	state *state

	eventDedup map[string]dedupRecord
	audit      []entities.AuditEntry
}

func NewStore() *Store {
	return &Store{
		state:      newState(),
		eventDedup: make(map[string]dedupRecord),
	}
}

// SeedCircuit stores a circuit and its establishment outside any
// transaction.
func (s *Store) SeedCircuit(number string, establishment entities.Establishment) entities.Circuit {
	s.mu.Lock()
	defer s.mu.Unlock()
	number = strings.TrimSpace(number)
	if existing, ok := s.state.circuitByNumber(number); ok {
		return existing
	}
	return s.state.addCircuit(number, establishment)
}

// SeedElection opens an election with the same wipe semantics as
// ReplaceElection.
func (s *Store) SeedElection(setup entities.ElectionSetup, createdAt time.Time) entities.Election {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.replaceElection(setup, createdAt)
}

func (s *Store) GetCircuitByNumber(_ context.Context, number string) (entities.Circuit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	circuit, ok := s.state.circuitByNumber(strings.TrimSpace(number))
	return circuit, ok, nil
}

func (s *Store) GetCircuitRef(_ context.Context, circuitID int64) (entities.CircuitRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.state.circuitRef(circuitID)
	if !ok {
		return entities.CircuitRef{}, domainerrors.ErrCircuitNotFound
	}
	return ref, nil
}

func (s *Store) ListDepartments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, circuit := range s.state.circuits {
		department := s.state.establishments[circuit.EstablishmentID].Department
		if department != "" {
			seen[department] = struct{}{}
		}
	}
	items := make([]string, 0, len(seen))
	for department := range seen {
		items = append(items, department)
	}
	sort.Strings(items)
	return items, nil
}

func (s *Store) SearchCircuits(_ context.Context, term string, limit int) ([]entities.CircuitRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.TrimSpace(term)
	items := make([]entities.CircuitRef, 0)
	for id, circuit := range s.state.circuits {
		if !strings.Contains(circuit.Number, term) {
			continue
		}
		ref, _ := s.state.circuitRef(id)
		items = append(items, ref)
	}
	sort.Slice(items, func(i, j int) bool {
		if len(items[i].Number) != len(items[j].Number) {
			return len(items[i].Number) < len(items[j].Number)
		}
		return items[i].Number < items[j].Number
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetAuthorization(_ context.Context, credential string) (entities.AuthorizationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.state.authorizations[strings.TrimSpace(credential)]
	return record, ok, nil
}

func (s *Store) ListAuthorizationsByCircuit(_ context.Context, circuitID int64) ([]entities.AuthorizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.AuthorizationRecord, 0)
	for _, record := range s.state.authorizations {
		if record.CircuitID == circuitID {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AuthorizedAt.Equal(items[j].AuthorizedAt) {
			return items[i].Credential < items[j].Credential
		}
		return items[i].AuthorizedAt.Before(items[j].AuthorizedAt)
	})
	return items, nil
}

func (s *Store) ListRegistryByCircuit(_ context.Context, circuitID int64) ([]entities.CredentialRegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CredentialRegistryEntry, 0)
	for key, entry := range s.state.registry {
		if key.circuitID == circuitID {
			items = append(items, entry)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Credential < items[j].Credential
	})
	return items, nil
}

func (s *Store) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.state.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrAdjudicationNotFound
	}
	return ballot, nil
}

func (s *Store) ListPendingObserved(_ context.Context, circuitID int64) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.state.ballots {
		if ballot.CircuitID == circuitID && ballot.Observed && ballot.ValidationState == entities.ValidationPending {
			items = append(items, ballot)
		}
	}
	sortBallotsByCast(items)
	return items, nil
}

// ListBallots returns every stored ballot ordered by circuit and sequence.
func (s *Store) ListBallots(_ context.Context) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0, len(s.state.ballots))
	for _, ballot := range s.state.ballots {
		items = append(items, ballot)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CircuitID == items[j].CircuitID {
			return items[i].Sequence < items[j].Sequence
		}
		return items[i].CircuitID < items[j].CircuitID
	})
	return items, nil
}

func (s *Store) GetActiveElection(_ context.Context) (entities.Election, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.state.activeElection()
	return election, ok, nil
}

func (s *Store) GetElection(_ context.Context, electionID int64) (entities.Election, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.state.elections[electionID]
	return election, ok, nil
}

func (s *Store) ListHeadCandidates(_ context.Context, electionID int64) ([]entities.HeadCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.HeadCandidate, 0)
	for _, candidate := range s.state.candidates {
		if candidate.ElectionID != electionID || !candidate.IsHead {
			continue
		}
		items = append(items, entities.HeadCandidate{
			CandidateID: candidate.CandidateID,
			Name:        candidate.Name,
			PartyName:   s.state.parties[candidate.PartyID].Name,
			ListNumber:  candidate.ListNumber,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID int64) ([]entities.CandidateListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CandidateListing, 0)
	for _, candidate := range s.state.candidates {
		if candidate.ElectionID != electionID {
			continue
		}
		items = append(items, entities.CandidateListing{
			Candidate: candidate,
			PartyName: s.state.parties[candidate.PartyID].Name,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) CountBallots(_ context.Context, filter entities.BallotFilter) (entities.BallotCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	department := strings.TrimSpace(filter.Department)
	counts := entities.BallotCounts{ApprovedByCandidate: make(map[int64]int)}
	for _, ballot := range s.state.ballots {
		if filter.ElectionID > 0 && ballot.ElectionID != filter.ElectionID {
			continue
		}
		if filter.CircuitID > 0 && ballot.CircuitID != filter.CircuitID {
			continue
		}
		if department != "" && s.state.departmentOf(ballot.CircuitID) != department {
			continue
		}
		if !filter.CastSince.IsZero() && ballot.CastAt.Before(filter.CastSince) {
			continue
		}
		switch ballot.ValidationState {
		case entities.ValidationApproved:
			switch {
			case ballot.Nullified:
				counts.ApprovedNullified++
			case ballot.CandidateID == nil:
				counts.ApprovedBlank++
			default:
				counts.ApprovedByCandidate[*ballot.CandidateID]++
			}
		case entities.ValidationPending:
			if ballot.Observed {
				counts.PendingObserved++
			}
		}
	}
	return counts, nil
}

func (s *Store) CountAuthorizations(_ context.Context, scope entities.AuthorizationScope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	department := strings.TrimSpace(scope.Department)
	total := 0
	for _, record := range s.state.authorizations {
		if scope.CircuitID > 0 && record.CircuitID != scope.CircuitID {
			continue
		}
		if department != "" && s.state.departmentOf(record.CircuitID) != department {
			continue
		}
		total++
	}
	return total, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.state.outbox))
	for _, row := range s.state.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].order < rows[j].order
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(outboxID)
	row, ok := s.state.outbox[key]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.state.outbox[key] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventDedup, strings.TrimSpace(eventID))
	return nil
}

func (s *Store) AppendAudit(_ context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.audit {
		if existing.EventID == entry.EventID {
			return nil
		}
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAudit(_ context.Context) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.AuditEntry, len(s.audit))
	copy(items, s.audit)
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortBallotsByCast(items []entities.Ballot) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].Sequence < items[j].Sequence
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
}
