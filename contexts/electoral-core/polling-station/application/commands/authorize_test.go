package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
)

func TestAuthorizeRejectsUnregisteredPairWithHomeCircuit(t *testing.T) {
	s := newStation(t)
	s.register(t, "99999999", "5")

	_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: "99999999",
		CircuitID:  s.circuits["2"],
		ActorID:    "worker-1",
	})
	var notRegistered *domainerrors.NotRegisteredError
	if !errors.As(err, &notRegistered) {
		t.Fatalf("expected NotRegisteredError, got %v", err)
	}
	if !errors.Is(err, domainerrors.ErrNotRegisteredForCircuit) {
		t.Fatalf("expected ErrNotRegisteredForCircuit in chain")
	}
	if notRegistered.HomeCircuit == nil || notRegistered.HomeCircuit.Number != "5" {
		t.Fatalf("expected home circuit 5, got %+v", notRegistered.HomeCircuit)
	}
	if notRegistered.HomeCircuit.Department != "Salto" {
		t.Fatalf("expected home department Salto, got %s", notRegistered.HomeCircuit.Department)
	}
	if _, found, _ := s.store.GetAuthorization(context.Background(), "99999999"); found {
		t.Fatalf("rejected authorization must not create a record")
	}
}

func TestAuthorizeUnknownCredentialHasNoHomeCircuit(t *testing.T) {
	s := newStation(t)
	_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: "00000001",
		CircuitID:  s.circuits["1"],
	})
	var notRegistered *domainerrors.NotRegisteredError
	if !errors.As(err, &notRegistered) {
		t.Fatalf("expected NotRegisteredError, got %v", err)
	}
	if notRegistered.HomeCircuit != nil {
		t.Fatalf("expected no home circuit, got %+v", notRegistered.HomeCircuit)
	}
}

func TestAuthorizeIsGloballyUniquePerCredential(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")
	s.authorize(t, "12345678", "1", false)

	_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: "12345678",
		CircuitID:  s.circuits["3"],
		Special:    true,
	})
	if !errors.Is(err, domainerrors.ErrAlreadyAuthorized) {
		t.Fatalf("expected ErrAlreadyAuthorized across circuits, got %v", err)
	}
}

func TestAuthorizeAfterVotingReportsAlreadyVoted(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")
	s.authorize(t, "12345678", "1", false)
	if _, err := s.cast("12345678", 1, "1"); err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: "12345678",
		CircuitID:  s.circuits["1"],
	})
	if !errors.Is(err, domainerrors.ErrAlreadyAuthorized) || !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected AlreadyAuthorized wrapping AlreadyVoted, got %v", err)
	}
	record, _, _ := s.store.GetAuthorization(context.Background(), "12345678")
	if record.State != entities.AuthorizationVoted {
		t.Fatalf("VOTÓ must never regress, got %s", record.State)
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	s := newStation(t)
	_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{Credential: "   ", CircuitID: s.circuits["1"]})
	if !errors.Is(err, domainerrors.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	_, err = s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{Credential: "1", CircuitID: 404, Special: true})
	if !errors.Is(err, domainerrors.ErrCircuitNotFound) {
		t.Fatalf("expected ErrCircuitNotFound, got %v", err)
	}
}

func TestConcurrentAuthorizationsCreateOneRecord(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
				Credential: "12345678",
				CircuitID:  s.circuits["1"],
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domainerrors.ErrAlreadyAuthorized) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted authorization, got %d", accepted)
	}
}

func TestVotedTransitionOnlyThroughCasting(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")
	s.authorize(t, "12345678", "1", false)

	var ledger any = s.ledger
	if _, ok := ledger.(interface {
		MarkVoted(context.Context, string) error
	}); ok {
		t.Fatalf("ledger must not expose a voted transition without a ballot")
	}
	stored, _, _ := s.store.GetAuthorization(context.Background(), "12345678")
	if stored.State != entities.AuthorizationEnabled || stored.VotedAt != nil {
		t.Fatalf("authorization alone must stay HABILITADA, got %+v", stored)
	}

	if _, err := s.cast("12345678", 1, "1"); err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	stored, _, _ = s.store.GetAuthorization(context.Background(), "12345678")
	if stored.State != entities.AuthorizationVoted {
		t.Fatalf("expected VOTÓ after casting, got %s", stored.State)
	}
	if _, err := s.cast("12345678", 1, "1"); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}
