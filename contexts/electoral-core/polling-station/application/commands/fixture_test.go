package commands_test

import (
	"context"
	"testing"
	"time"

	"urna/contexts/electoral-core/polling-station/adapters/memory"
	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/queries"
	"urna/contexts/electoral-core/polling-station/domain/entities"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// station bundles the use cases over one in-memory store. Circuits "1", "2",
// "3" and "5" are seeded in that order, so circuits 1-3 get matching ids.
// Ticket heads are candidates 1, 3 and 5; 2 and 4 are running mates.
type station struct {
	store        *memory.Store
	ledger       commands.LedgerUseCase
	casting      commands.CastingUseCase
	adjudication commands.AdjudicationUseCase
	registry     commands.RegistryUseCase
	elections    commands.ElectionUseCase
	tally        queries.TallyUseCase
	circuits     map[string]int64
	election     entities.Election
}

func newStation(t *testing.T) *station {
	t.Helper()
	store := memory.NewStore()
	clock := fixedClock{now: time.Date(2024, 10, 27, 9, 0, 0, 0, time.UTC)}
	s := &station{
		store:        store,
		ledger:       commands.LedgerUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		casting:      commands.CastingUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		adjudication: commands.AdjudicationUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		registry:     commands.RegistryUseCase{UnitOfWork: store, Clock: clock},
		elections:    commands.ElectionUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		tally:        queries.TallyUseCase{Reader: store, Circuits: store},
		circuits:     map[string]int64{},
	}
	for _, seed := range []struct {
		number string
		dept   string
	}{
		{"1", "Montevideo"},
		{"2", "Montevideo"},
		{"3", "Canelones"},
		{"5", "Salto"},
	} {
		circuit := store.SeedCircuit(seed.number, entities.Establishment{
			Name:       "Escuela " + seed.number,
			Department: seed.dept,
			City:       seed.dept,
			Address:    "Calle " + seed.number,
			Kind:       "Escuela",
		})
		s.circuits[seed.number] = circuit.CircuitID
	}

	election, err := s.elections.OpenElection(context.Background(), entities.ElectionSetup{
		Year: 2024,
		Tickets: []entities.Ticket{
			{PartyName: "Partido Azul", ListNumber: 10, Head: "Ana Pereira", RunningMate: "Luis Gomez"},
			{PartyName: "Partido Rojo", ListNumber: 20, Head: "Marta Silva", RunningMate: "Jorge Diaz"},
			{PartyName: "Partido Verde", ListNumber: 30, Head: "Pablo Ruiz"},
		},
	})
	if err != nil {
		t.Fatalf("open election failed: %v", err)
	}
	s.election = election
	return s
}

func (s *station) register(t *testing.T, credential string, circuitNumber string) {
	t.Helper()
	if _, err := s.registry.BulkRegister(context.Background(), []entities.RegistryImportRow{
		{Credential: credential, CircuitNumber: circuitNumber},
	}); err != nil {
		t.Fatalf("register %s at %s failed: %v", credential, circuitNumber, err)
	}
}

func (s *station) authorize(t *testing.T, credential string, circuitNumber string, special bool) entities.AuthorizationRecord {
	t.Helper()
	record, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: credential,
		CircuitID:  s.circuits[circuitNumber],
		ActorID:    "worker-1",
		Special:    special,
	})
	if err != nil {
		t.Fatalf("authorize %s at %s failed: %v", credential, circuitNumber, err)
	}
	return record
}

func (s *station) cast(credential string, selector int64, circuitNumber string) (commands.CastBallotResult, error) {
	return s.casting.CastBallot(context.Background(), commands.CastBallotCommand{
		Credential: credential,
		Selector:   selector,
		CircuitID:  s.circuits[circuitNumber],
	})
}
