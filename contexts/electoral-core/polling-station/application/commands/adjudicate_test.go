package commands_test

import (
	"context"
	"errors"
	"testing"

	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/queries"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
)

func castObserved(t *testing.T, s *station, credential string, selector int64) commands.CastBallotResult {
	t.Helper()
	s.authorize(t, credential, "2", true)
	result, err := s.cast(credential, selector, "2")
	if err != nil {
		t.Fatalf("cast observed ballot failed: %v", err)
	}
	return result
}

func TestResolveRejectKeepsBallotOutOfTally(t *testing.T) {
	s := newStation(t)
	result := castObserved(t, s, "10000001", 3)

	ballot, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
		BallotID: result.BallotID,
		Decision: "rechazar",
		ActorID:  "presidente-1",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if ballot.ValidationState != entities.ValidationRejected || ballot.ResolvedBy != "presidente-1" || ballot.ResolvedAt == nil {
		t.Fatalf("unexpected resolved ballot %+v", ballot)
	}

	tally, err := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.TotalApproved != 0 || tally.PendingObserved != 0 {
		t.Fatalf("rejected ballot must not count, got %+v", tally)
	}
}

func TestResolveIsTerminal(t *testing.T) {
	s := newStation(t)
	result := castObserved(t, s, "10000002", 1)

	if _, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
		BallotID: result.BallotID,
		Decision: "approve",
	}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	for _, decision := range []string{"approve", "reject"} {
		_, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
			BallotID: result.BallotID,
			Decision: decision,
		})
		if !errors.Is(err, domainerrors.ErrAlreadyResolved) {
			t.Fatalf("second %s: expected ErrAlreadyResolved, got %v", decision, err)
		}
	}

	tally, _ := s.tally.Tally(context.Background(), queries.TallyQuery{})
	if votesFor(tally, 1) != 1 {
		t.Fatalf("approved ballot must count exactly once, got %+v", tally.PerCandidate)
	}
}

func TestResolveRejectsOrdinaryAndUnknownBallots(t *testing.T) {
	s := newStation(t)
	s.register(t, "10000003", "1")
	s.authorize(t, "10000003", "1", false)
	ordinary, err := s.cast("10000003", 1, "1")
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	for _, ballotID := range []string{ordinary.BallotID, "missing-ballot", ""} {
		_, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
			BallotID: ballotID,
			Decision: "approve",
		})
		if !errors.Is(err, domainerrors.ErrAdjudicationNotFound) {
			t.Fatalf("ballot %q: expected ErrAdjudicationNotFound, got %v", ballotID, err)
		}
	}
}

func TestResolveRejectsUnknownDecision(t *testing.T) {
	s := newStation(t)
	result := castObserved(t, s, "10000004", 1)
	_, err := s.adjudication.Resolve(context.Background(), commands.ResolveObservedCommand{
		BallotID: result.BallotID,
		Decision: "maybe",
	})
	if !errors.Is(err, domainerrors.ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
	ballot, _ := s.store.GetBallot(context.Background(), result.BallotID)
	if ballot.ValidationState != entities.ValidationPending {
		t.Fatalf("invalid decision must leave the ballot pending, got %s", ballot.ValidationState)
	}
}
