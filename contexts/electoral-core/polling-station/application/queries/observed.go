package queries

import (
	"context"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	"urna/contexts/electoral-core/polling-station/ports"
)

type ObservedUseCase struct {
	Ballots ports.BallotReader
}

// ListPending returns observed ballots of a circuit still awaiting a
// decision, oldest first.
func (uc ObservedUseCase) ListPending(ctx context.Context, circuitID int64) ([]entities.Ballot, error) {
	return uc.Ballots.ListPendingObserved(ctx, circuitID)
}

func (uc ObservedUseCase) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	return uc.Ballots.GetBallot(ctx, ballotID)
}
