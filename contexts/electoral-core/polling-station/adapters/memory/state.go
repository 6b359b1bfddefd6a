package memory

import (
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	"urna/contexts/electoral-core/polling-station/ports"
)

type registryKey struct {
	credential string
	circuitID  int64
}

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
	order     int64
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// state holds every record written inside a transaction. Transactions work
// on a clone and swap it in on commit, so a failed fn leaves no trace.
type state struct {
	establishments map[int64]entities.Establishment
	circuits       map[int64]entities.Circuit
	registry       map[registryKey]entities.CredentialRegistryEntry
	authorizations map[string]entities.AuthorizationRecord
	ballots        map[string]entities.Ballot
	elections      map[int64]entities.Election
	parties        map[int64]entities.Party
	candidates     map[int64]entities.Candidate
	outbox         map[string]outboxRecord

	lastEstablishmentID int64
	lastCircuitID       int64
	lastElectionID      int64
	lastPartyID         int64
	lastCandidateID     int64
	lastOutboxOrder     int64
}

func newState() *state {
	return &state{
		establishments: make(map[int64]entities.Establishment),
		circuits:       make(map[int64]entities.Circuit),
		registry:       make(map[registryKey]entities.CredentialRegistryEntry),
		authorizations: make(map[string]entities.AuthorizationRecord),
		ballots:        make(map[string]entities.Ballot),
		elections:      make(map[int64]entities.Election),
		parties:        make(map[int64]entities.Party),
		candidates:     make(map[int64]entities.Candidate),
		outbox:         make(map[string]outboxRecord),
	}
}

func (s *state) clone() *state {
	next := *s
	next.establishments = cloneMap(s.establishments)
	next.circuits = cloneMap(s.circuits)
	next.registry = cloneMap(s.registry)
	next.authorizations = cloneMap(s.authorizations)
	next.ballots = cloneMap(s.ballots)
	next.elections = cloneMap(s.elections)
	next.parties = cloneMap(s.parties)
	next.candidates = cloneMap(s.candidates)
	next.outbox = cloneMap(s.outbox)
	return &next
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func (s *state) circuitRef(circuitID int64) (entities.CircuitRef, bool) {
	circuit, ok := s.circuits[circuitID]
	if !ok {
		return entities.CircuitRef{}, false
	}
	establishment := s.establishments[circuit.EstablishmentID]
	return entities.CircuitRef{
		CircuitID:         circuit.CircuitID,
		Number:            circuit.Number,
		EstablishmentName: establishment.Name,
		Department:        establishment.Department,
		Address:           establishment.Address,
	}, true
}

func (s *state) circuitByNumber(number string) (entities.Circuit, bool) {
	for _, circuit := range s.circuits {
		if circuit.Number == number {
			return circuit, true
		}
	}
	return entities.Circuit{}, false
}

func (s *state) departmentOf(circuitID int64) string {
	circuit, ok := s.circuits[circuitID]
	if !ok {
		return ""
	}
	return s.establishments[circuit.EstablishmentID].Department
}

func (s *state) activeElection() (entities.Election, bool) {
	for _, election := range s.elections {
		if election.Active {
			return election, true
		}
	}
	return entities.Election{}, false
}

func (s *state) addEstablishment(establishment entities.Establishment) entities.Establishment {
	for _, existing := range s.establishments {
		if existing.Name == establishment.Name &&
			existing.Department == establishment.Department &&
			existing.Address == establishment.Address {
			return existing
		}
	}
	s.lastEstablishmentID++
	establishment.EstablishmentID = s.lastEstablishmentID
	s.establishments[establishment.EstablishmentID] = establishment
	return establishment
}

func (s *state) addCircuit(number string, establishment entities.Establishment) entities.Circuit {
	stored := s.addEstablishment(establishment)
	s.lastCircuitID++
	circuit := entities.Circuit{
		CircuitID:       s.lastCircuitID,
		Number:          number,
		EstablishmentID: stored.EstablishmentID,
	}
	s.circuits[circuit.CircuitID] = circuit
	return circuit
}

func (s *state) partyByName(name string) entities.Party {
	for _, party := range s.parties {
		if party.Name == name {
			return party
		}
	}
	s.lastPartyID++
	party := entities.Party{PartyID: s.lastPartyID, Name: name}
	s.parties[party.PartyID] = party
	return party
}

func (s *state) replaceElection(setup entities.ElectionSetup, createdAt time.Time) entities.Election {
	s.authorizations = make(map[string]entities.AuthorizationRecord)
	s.ballots = make(map[string]entities.Ballot)
	s.candidates = make(map[int64]entities.Candidate)
	s.registry = make(map[registryKey]entities.CredentialRegistryEntry)
	for id, election := range s.elections {
		election.Active = false
		s.elections[id] = election
	}

	s.lastElectionID++
	election := entities.Election{
		ElectionID: s.lastElectionID,
		Year:       setup.Year,
		Name:       setup.Name,
		Active:     true,
		CreatedAt:  createdAt.UTC(),
	}
	s.elections[election.ElectionID] = election

	for _, ticket := range setup.Tickets {
		party := s.partyByName(ticket.PartyName)
		s.addCandidate(entities.Candidate{
			Name:       ticket.Head,
			PartyID:    party.PartyID,
			ElectionID: election.ElectionID,
			IsHead:     true,
			ListNumber: ticket.ListNumber,
			ListOrder:  1,
		})
		if ticket.RunningMate != "" {
			s.addCandidate(entities.Candidate{
				Name:       ticket.RunningMate,
				PartyID:    party.PartyID,
				ElectionID: election.ElectionID,
				ListNumber: ticket.ListNumber,
				ListOrder:  2,
			})
		}
	}
	return election
}

func (s *state) addCandidate(candidate entities.Candidate) {
	s.lastCandidateID++
	candidate.CandidateID = s.lastCandidateID
	s.candidates[candidate.CandidateID] = candidate
}
