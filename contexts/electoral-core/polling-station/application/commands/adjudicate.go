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

type ResolveObservedCommand struct {
	BallotID string
	Decision string
	ActorID  string
}

// AdjudicationUseCase resolves observed ballots. Resolution is terminal.
type AdjudicationUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc AdjudicationUseCase) Resolve(ctx context.Context, cmd ResolveObservedCommand) (entities.Ballot, error) {
	logger := application.ResolveLogger(uc.Logger)
	decision, ok := entities.ParseDecision(cmd.Decision)
	if !ok {
		application.ResolveMetrics(uc.Metrics).ObserveResolution("invalid", domainerrors.ErrInvalidDecision)
		return entities.Ballot{}, domainerrors.ErrInvalidDecision
	}
	ballotID := strings.TrimSpace(cmd.BallotID)
	if ballotID == "" {
		return entities.Ballot{}, domainerrors.ErrAdjudicationNotFound
	}
	actor := strings.TrimSpace(cmd.ActorID)

	now := uc.now()
	var resolved entities.Ballot
	err := uc.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		ballot, err := tx.LockBallot(ctx, ballotID)
		if err != nil {
			return err
		}
		if !ballot.Observed {
			return domainerrors.ErrAdjudicationNotFound
		}
		if ballot.ValidationState != entities.ValidationPending {
			return domainerrors.ErrAlreadyResolved
		}
		target := decision.TargetState()
		if err := tx.ResolveBallot(ctx, ballot.BallotID, target, actor, now); err != nil {
			return err
		}
		ballot.ValidationState = target
		ballot.ResolvedBy = actor
		resolvedAt := now
		ballot.ResolvedAt = &resolvedAt

		if err := appendEvent(ctx, tx, uc.IDGen, EventBallotResolved, "circuit_id", strconv.FormatInt(ballot.CircuitID, 10), now, map[string]any{
			"ballot_id":        ballot.BallotID,
			"receipt_id":       ballot.ReceiptID,
			"circuit_id":       ballot.CircuitID,
			"decision":         string(decision),
			"validation_state": string(target),
			"resolved_by":      actor,
			"resolved_at":      now.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		resolved = ballot
		return nil
	})
	application.ResolveMetrics(uc.Metrics).ObserveResolution(string(decision), err)
	if err != nil {
		logger.Warn("observed ballot resolution rejected",
			"event", "polling_ballot_resolve_failed",
			"module", application.ModuleName,
			"layer", "application",
			"ballot_id", ballotID,
			"decision", string(decision),
			"error", err.Error(),
		)
		return entities.Ballot{}, err
	}

	logger.Info("observed ballot resolved",
		"event", "polling_ballot_resolved",
		"module", application.ModuleName,
		"layer", "application",
		"ballot_id", resolved.BallotID,
		"receipt_id", resolved.ReceiptID,
		"validation_state", string(resolved.ValidationState),
		"actor_id", actor,
	)
	return resolved, nil
}

func (uc AdjudicationUseCase) now() time.Time {
	return nowFrom(uc.Clock)
}
