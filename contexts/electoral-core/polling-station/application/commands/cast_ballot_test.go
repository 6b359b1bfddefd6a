package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"urna/contexts/electoral-core/polling-station/adapters/memory"
	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/queries"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/internal/shared/events"

	"golang.org/x/sync/errgroup"
)

func TestCastBallotHappyPathIssuesFirstReceipt(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")
	record := s.authorize(t, "12345678", "1", false)
	if record.State != entities.AuthorizationEnabled {
		t.Fatalf("expected HABILITADA, got %s", record.State)
	}

	result, err := s.cast("12345678", 3, "1")
	if err != nil {
		t.Fatalf("cast ballot failed: %v", err)
	}
	if result.ReceiptID != "C001-00001" {
		t.Fatalf("expected receipt C001-00001, got %s", result.ReceiptID)
	}
	if result.Pending {
		t.Fatalf("ordinary ballot must not be pending")
	}

	stored, found, err := s.store.GetAuthorization(context.Background(), "12345678")
	if err != nil || !found {
		t.Fatalf("load authorization failed: found=%v err=%v", found, err)
	}
	if stored.State != entities.AuthorizationVoted || stored.VotedAt == nil {
		t.Fatalf("expected VOTÓ with voted_at, got %+v", stored)
	}

	ballot, err := s.store.GetBallot(context.Background(), result.BallotID)
	if err != nil {
		t.Fatalf("load ballot failed: %v", err)
	}
	if ballot.ValidationState != entities.ValidationApproved || ballot.CandidateID == nil || *ballot.CandidateID != 3 {
		t.Fatalf("unexpected ballot %+v", ballot)
	}
	if ballot.ElectionID != s.election.ElectionID {
		t.Fatalf("expected election %d, got %d", s.election.ElectionID, ballot.ElectionID)
	}
}

func TestCastBallotTwiceFailsWithAlreadyVoted(t *testing.T) {
	s := newStation(t)
	s.register(t, "12345678", "1")
	s.authorize(t, "12345678", "1", false)
	if _, err := s.cast("12345678", 3, "1"); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	_, err := s.cast("12345678", 3, "1")
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	ballots, _ := s.store.ListBallots(context.Background())
	if len(ballots) != 1 {
		t.Fatalf("expected exactly one ballot, got %d", len(ballots))
	}
}

func TestSpecialAuthorizationProducesPendingBallotUntilApproved(t *testing.T) {
	s := newStation(t)
	s.register(t, "99999999", "5")
	record := s.authorize(t, "99999999", "2", true)
	if !record.Special {
		t.Fatalf("expected special authorization")
	}

	result, err := s.cast("99999999", 1, "2")
	if err != nil {
		t.Fatalf("cast observed ballot failed: %v", err)
	}
	if !result.Pending {
		t.Fatalf("observed ballot must be pending")
	}

	before, err := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if before.TotalApproved != 0 || before.PendingObserved != 1 {
		t.Fatalf("pending ballot must be excluded, got approved=%d pending=%d", before.TotalApproved, before.PendingObserved)
	}

	if _, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
		BallotID: result.BallotID,
		Decision: "approve",
		ActorID:  "presidente-1",
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	after, err := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if err != nil {
		t.Fatalf("tally after resolve failed: %v", err)
	}
	if after.TotalApproved != 1 || after.PendingObserved != 0 {
		t.Fatalf("expected ballot counted once, got approved=%d pending=%d", after.TotalApproved, after.PendingObserved)
	}
	if votesFor(after, 1) != 1 {
		t.Fatalf("expected one vote for candidate 1, got %+v", after.PerCandidate)
	}
}

func TestNullifiedBallotCountsOnlyAsNullified(t *testing.T) {
	s := newStation(t)
	s.register(t, "11111111", "1")
	s.authorize(t, "11111111", "1", false)

	result, err := s.cast("11111111", entities.SelectorNullified, "1")
	if err != nil {
		t.Fatalf("cast nullified failed: %v", err)
	}
	ballot, err := s.store.GetBallot(context.Background(), result.BallotID)
	if err != nil {
		t.Fatalf("load ballot failed: %v", err)
	}
	if !ballot.Nullified || ballot.CandidateID != nil {
		t.Fatalf("expected nullified ballot without candidate, got %+v", ballot)
	}

	tally, err := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Nullified != 1 || tally.Blank != 0 || tally.TotalApproved != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	for _, row := range tally.PerCandidate {
		if row.Votes != 0 {
			t.Fatalf("nullified ballot leaked into candidate %d", row.CandidateID)
		}
	}
}

func TestBlankBallotCountsAsBlank(t *testing.T) {
	s := newStation(t)
	s.register(t, "22222222", "1")
	s.authorize(t, "22222222", "1", false)
	if _, err := s.cast("22222222", entities.SelectorBlank, "1"); err != nil {
		t.Fatalf("cast blank failed: %v", err)
	}
	tally, err := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Blank != 1 || tally.Nullified != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestConcurrentCastsAtOneCircuitGetDistinctReceipts(t *testing.T) {
	s := newStation(t)
	credentials := []string{"30000001", "30000002"}
	for _, credential := range credentials {
		s.register(t, credential, "3")
		s.authorize(t, credential, "3", false)
	}

	var (
		mu       sync.Mutex
		receipts []string
	)
	group, _ := errgroup.WithContext(context.Background())
	for _, credential := range credentials {
		credential := credential
		group.Go(func() error {
			result, err := s.cast(credential, 5, "3")
			if err != nil {
				return err
			}
			mu.Lock()
			receipts = append(receipts, result.ReceiptID)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent casts failed: %v", err)
	}
	sort.Strings(receipts)
	if len(receipts) != 2 || receipts[0] != "C003-00001" || receipts[1] != "C003-00002" {
		t.Fatalf("expected C003-00001 and C003-00002, got %v", receipts)
	}
}

func TestConcurrentCastsForOneCredentialYieldSingleBallot(t *testing.T) {
	s := newStation(t)
	s.register(t, "44444444", "1")
	s.authorize(t, "44444444", "1", false)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.cast("44444444", 1, "1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrAlreadyVoted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || rejected != attempts-1 {
		t.Fatalf("expected 1 success and %d AlreadyVoted, got %d and %d", attempts-1, successes, rejected)
	}
}

func TestReceiptSequencesAreGaplessPerCircuit(t *testing.T) {
	s := newStation(t)
	for i := 1; i <= 3; i++ {
		credential := fmt.Sprintf("5000000%d", i)
		s.register(t, credential, "1")
		s.authorize(t, credential, "1", false)
		result, err := s.cast(credential, entities.SelectorBlank, "1")
		if err != nil {
			t.Fatalf("cast %d failed: %v", i, err)
		}
		if want := entities.FormatReceipt(s.circuits["1"], i); result.ReceiptID != want {
			t.Fatalf("expected %s, got %s", want, result.ReceiptID)
		}
	}
	s.register(t, "60000001", "2")
	s.authorize(t, "60000001", "2", false)
	result, err := s.cast("60000001", entities.SelectorBlank, "2")
	if err != nil {
		t.Fatalf("cast at circuit 2 failed: %v", err)
	}
	if result.ReceiptID != "C002-00001" {
		t.Fatalf("expected independent sequence for circuit 2, got %s", result.ReceiptID)
	}
}

func TestCastBallotRejectsWithoutAuthorization(t *testing.T) {
	s := newStation(t)
	_, err := s.cast("70000000", 1, "1")
	if !errors.Is(err, domainerrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	ballots, _ := s.store.ListBallots(context.Background())
	if len(ballots) != 0 {
		t.Fatalf("expected no ballots, got %d", len(ballots))
	}
}

func TestInvalidCandidateLeavesAuthorizationUntouched(t *testing.T) {
	s := newStation(t)
	s.register(t, "80000000", "1")
	s.authorize(t, "80000000", "1", false)

	for _, selector := range []int64{2, 4, 999, -2} {
		_, err := s.cast("80000000", selector, "1")
		if !errors.Is(err, domainerrors.ErrInvalidCandidate) {
			t.Fatalf("selector %d: expected ErrInvalidCandidate, got %v", selector, err)
		}
	}
	record, _, _ := s.store.GetAuthorization(context.Background(), "80000000")
	if record.State != entities.AuthorizationEnabled {
		t.Fatalf("failed cast must not consume the authorization, got %s", record.State)
	}

	result, err := s.cast("80000000", 1, "1")
	if err != nil {
		t.Fatalf("valid cast after rejections failed: %v", err)
	}
	if result.ReceiptID != "C001-00001" {
		t.Fatalf("rejected casts must not consume receipt numbers, got %s", result.ReceiptID)
	}
}

func TestBallotEventsNeverCarryCredential(t *testing.T) {
	s := newStation(t)
	s.register(t, "90000000", "1")
	s.authorize(t, "90000000", "1", false)
	if _, err := s.cast("90000000", 1, "1"); err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	pending, err := s.store.ListPendingOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	var sawCast, sawVoted bool
	for _, row := range pending {
		var envelope events.Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope failed: %v", err)
		}
		switch envelope.EventType {
		case commands.EventBallotCast:
			sawCast = true
			if strings.Contains(string(envelope.Data), "90000000") || envelope.PartitionKey == "90000000" {
				t.Fatalf("ballot.cast leaks the credential: %s", envelope.Data)
			}
		case commands.EventVoterVoted:
			sawVoted = true
			if strings.Contains(string(envelope.Data), "ballot_id") || strings.Contains(string(envelope.Data), "receipt_id") {
				t.Fatalf("voter.voted links the ballot: %s", envelope.Data)
			}
		}
	}
	if !sawCast || !sawVoted {
		t.Fatalf("expected ballot.cast and voter.voted events, cast=%v voted=%v", sawCast, sawVoted)
	}
}

func TestVotedRecordCannotBeJoinedToBallot(t *testing.T) {
	s := newStation(t)
	s.register(t, "90000001", "1")
	s.authorize(t, "90000001", "1", false)

	castAt := time.Date(2024, 10, 27, 9, 41, 37, 0, time.UTC)
	casting := commands.CastingUseCase{UnitOfWork: s.store, Clock: fixedClock{now: castAt}, IDGen: s.store}
	result, err := casting.CastBallot(context.Background(), commands.CastBallotCommand{
		Credential: "90000001",
		Selector:   1,
		CircuitID:  s.circuits["1"],
	})
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	ballot, _ := s.store.GetBallot(context.Background(), result.BallotID)
	stored, _, _ := s.store.GetAuthorization(context.Background(), "90000001")
	if stored.VotedAt == nil || !stored.VotedAt.Equal(castAt.Truncate(time.Minute)) {
		t.Fatalf("expected voted_at rounded to the minute, got %v", stored.VotedAt)
	}
	if stored.VotedAt.Equal(ballot.CastAt) {
		t.Fatalf("voted_at must differ from the ballot cast_at %v", ballot.CastAt)
	}

	pending, err := s.store.ListPendingOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	var castEvent, votedEvent events.Envelope
	for _, row := range pending {
		var envelope events.Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope failed: %v", err)
		}
		switch envelope.EventType {
		case commands.EventBallotCast:
			castEvent = envelope
		case commands.EventVoterVoted:
			votedEvent = envelope
		}
	}
	if strings.Contains(string(votedEvent.Data), "voted_at") || strings.Contains(string(votedEvent.Data), "cast_at") {
		t.Fatalf("voter.voted must not carry a timestamp: %s", votedEvent.Data)
	}
	if votedEvent.OccurredAt.Equal(castEvent.OccurredAt) {
		t.Fatalf("voter.voted and ballot.cast share occurred_at %v", castEvent.OccurredAt)
	}
}

func TestVotedAtNeverPrecedesAuthorization(t *testing.T) {
	s := newStation(t)
	s.register(t, "90000002", "1")
	authorizedAt := time.Date(2024, 10, 27, 10, 15, 40, 0, time.UTC)
	ledger := commands.LedgerUseCase{UnitOfWork: s.store, Clock: fixedClock{now: authorizedAt}, IDGen: s.store}
	if _, err := ledger.Authorize(context.Background(), commands.AuthorizeVoterCommand{
		Credential: "90000002",
		CircuitID:  s.circuits["1"],
		ActorID:    "worker-1",
	}); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	casting := commands.CastingUseCase{UnitOfWork: s.store, Clock: fixedClock{now: authorizedAt.Add(5 * time.Second)}, IDGen: s.store}
	if _, err := casting.CastBallot(context.Background(), commands.CastBallotCommand{
		Credential: "90000002",
		Selector:   entities.SelectorBlank,
		CircuitID:  s.circuits["1"],
	}); err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	stored, _, _ := s.store.GetAuthorization(context.Background(), "90000002")
	if stored.VotedAt == nil || !stored.VotedAt.Equal(authorizedAt) {
		t.Fatalf("expected voted_at clamped to the authorization time, got %v", stored.VotedAt)
	}
}

func TestCastBallotWithoutActiveElection(t *testing.T) {
	store := memory.NewStore()
	circuit := store.SeedCircuit("1", entities.Establishment{Name: "Escuela 1", Department: "Montevideo"})
	casting := commands.CastingUseCase{UnitOfWork: store, IDGen: store}

	_, err := casting.CastBallot(context.Background(), commands.CastBallotCommand{
		Credential: "12121212",
		Selector:   entities.SelectorBlank,
		CircuitID:  circuit.CircuitID,
	})
	if !errors.Is(err, domainerrors.ErrNoActiveElection) {
		t.Fatalf("expected ErrNoActiveElection, got %v", err)
	}
}

func votesFor(result entities.TallyResult, candidateID int64) int {
	for _, row := range result.PerCandidate {
		if row.CandidateID == candidateID {
			return row.Votes
		}
	}
	return -1
}
