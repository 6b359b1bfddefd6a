package commands

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "urna/contexts/electoral-core/polling-station/application"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

// CastBallotCommand carries the selector chosen by the voter: a head
// candidate id, SelectorBlank or SelectorNullified. CircuitID is the circuit
// of the station casting the ballot.
type CastBallotCommand struct {
	Credential string
	Selector   int64
	CircuitID  int64
}

// CastBallotResult is the only thing returned to the voter. It does not
// reference the credential.
type CastBallotResult struct {
	BallotID  string
	ReceiptID string
	Pending   bool
}

// CastingUseCase turns an authorization into exactly one ballot.
type CastingUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// CastBallot validates the selector, locks the authorization, allocates the
// next receipt of the casting circuit, stores the ballot and marks the
// credential as voted. All of it commits together or not at all.
func (uc CastingUseCase) CastBallot(ctx context.Context, cmd CastBallotCommand) (CastBallotResult, error) {
	started := time.Now()
	result, observed, err := uc.castBallot(ctx, cmd)
	application.ResolveMetrics(uc.Metrics).ObserveCast(observed, err, time.Since(started))

	logger := application.ResolveLogger(uc.Logger)
	if err != nil {
		logger.Warn("ballot cast rejected",
			"event", "polling_ballot_cast_failed",
			"module", application.ModuleName,
			"layer", "application",
			"circuit_id", cmd.CircuitID,
			"retryable", domainerrors.IsRetryable(err),
			"error", err.Error(),
		)
		return CastBallotResult{}, err
	}
	logger.Info("ballot cast",
		"event", "polling_ballot_cast",
		"module", application.ModuleName,
		"layer", "application",
		"circuit_id", cmd.CircuitID,
		"receipt_id", result.ReceiptID,
		"pending", result.Pending,
	)
	return result, nil
}

func (uc CastingUseCase) castBallot(ctx context.Context, cmd CastBallotCommand) (CastBallotResult, bool, error) {
	credential := strings.TrimSpace(cmd.Credential)
	if credential == "" {
		return CastBallotResult{}, false, domainerrors.ErrInvalidCredential
	}
	if cmd.Selector < entities.SelectorNullified {
		return CastBallotResult{}, false, domainerrors.ErrInvalidCandidate
	}

	now := uc.now()
	var (
		result   CastBallotResult
		observed bool
	)
	err := uc.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		election, active, err := tx.ActiveElection(ctx)
		if err != nil {
			return err
		}
		if !active {
			return domainerrors.ErrNoActiveElection
		}
		if err := uc.validateSelector(ctx, tx, election, cmd.Selector); err != nil {
			return err
		}
		if _, err := tx.GetCircuit(ctx, cmd.CircuitID); err != nil {
			return err
		}

		record, found, err := tx.LockAuthorization(ctx, credential)
		if err != nil {
			return err
		}
		switch {
		case !found:
			return domainerrors.ErrNotAuthorized
		case record.HasVoted():
			return domainerrors.ErrAlreadyVoted
		case !record.CanVote():
			return domainerrors.ErrNotAuthorized
		}

		observed = record.Special
		state := entities.ValidationApproved
		if observed {
			state = entities.ValidationPending
		}

		sequence, err := tx.NextReceiptSequence(ctx, cmd.CircuitID)
		if err != nil {
			return err
		}
		ballotID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		candidateID, nullified := entities.ClassifySelector(cmd.Selector)
		ballot := entities.Ballot{
			BallotID:        ballotID,
			ReceiptID:       entities.FormatReceipt(cmd.CircuitID, sequence),
			Sequence:        sequence,
			CircuitID:       cmd.CircuitID,
			ElectionID:      election.ElectionID,
			CandidateID:     candidateID,
			CastAt:          now,
			Observed:        observed,
			ValidationState: state,
			Nullified:       nullified,
		}
		if err := tx.InsertBallot(ctx, ballot); err != nil {
			return err
		}
		votedAt := votedAtFor(record, now)
		if err := tx.MarkVoted(ctx, credential, votedAt); err != nil {
			return err
		}
		if err := appendBallotCastEvent(ctx, tx, uc.IDGen, ballot); err != nil {
			return err
		}
		if err := appendVotedEvent(ctx, tx, uc.IDGen, record, votedAt); err != nil {
			return err
		}

		result = CastBallotResult{
			BallotID:  ballot.BallotID,
			ReceiptID: ballot.ReceiptID,
			Pending:   observed,
		}
		return nil
	})
	if err != nil {
		return CastBallotResult{}, observed, err
	}
	return result, observed, nil
}

func (uc CastingUseCase) validateSelector(
	ctx context.Context,
	tx ports.ElectionTx,
	election entities.Election,
	selector int64,
) error {
	if selector == entities.SelectorBlank || selector == entities.SelectorNullified {
		return nil
	}
	candidate, found, err := tx.GetCandidate(ctx, selector)
	if err != nil {
		return err
	}
	if !found || !candidate.IsHead || candidate.ElectionID != election.ElectionID {
		return domainerrors.ErrInvalidCandidate
	}
	return nil
}

func (uc CastingUseCase) now() time.Time {
	return nowFrom(uc.Clock)
}

func appendBallotCastEvent(ctx context.Context, tx ports.OutboxWriter, idGen ports.IDGenerator, ballot entities.Ballot) error {
	circuitKey := strconv.FormatInt(ballot.CircuitID, 10)
	data := map[string]any{
		"ballot_id":        ballot.BallotID,
		"receipt_id":       ballot.ReceiptID,
		"circuit_id":       ballot.CircuitID,
		"election_id":      ballot.ElectionID,
		"observed":         ballot.Observed,
		"validation_state": string(ballot.ValidationState),
		"kind":             ballotKind(ballot),
		"cast_at":          ballot.CastAt.Format(time.RFC3339),
	}
	if ballot.CandidateID != nil {
		data["candidate_id"] = *ballot.CandidateID
	}
	return appendEvent(ctx, tx, idGen, EventBallotCast, "circuit_id", circuitKey, ballot.CastAt, data)
}

func ballotKind(ballot entities.Ballot) string {
	switch {
	case ballot.Nullified:
		return "nullified"
	case ballot.IsBlank():
		return "blank"
	default:
		return "candidate"
	}
}
