package commands

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	application "urna/contexts/electoral-core/polling-station/application"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

// ElectionUseCase is the administrative entry point that starts a new
// election. Opening wipes every per-election record: authorizations,
// ballots, candidates and the credential registry. Establishments and
// circuits survive.
type ElectionUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc ElectionUseCase) OpenElection(ctx context.Context, setup entities.ElectionSetup) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	setup.Name = strings.TrimSpace(setup.Name)
	for i := range setup.Tickets {
		setup.Tickets[i].PartyName = strings.TrimSpace(setup.Tickets[i].PartyName)
		setup.Tickets[i].Head = strings.TrimSpace(setup.Tickets[i].Head)
		setup.Tickets[i].RunningMate = strings.TrimSpace(setup.Tickets[i].RunningMate)
	}
	if !setup.Valid() {
		return entities.Election{}, domainerrors.ErrInvalidElection
	}
	if setup.Name == "" {
		setup.Name = "Elecciones " + strconv.Itoa(setup.Year)
	}

	now := nowFrom(uc.Clock)
	var election entities.Election
	err := uc.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		election, err = tx.ReplaceElection(ctx, setup, now)
		if err != nil {
			return err
		}
		return appendEvent(ctx, tx, uc.IDGen, EventElectionOpened, "election_id", strconv.FormatInt(election.ElectionID, 10), now, map[string]any{
			"election_id": election.ElectionID,
			"year":        election.Year,
			"name":        election.Name,
			"tickets":     len(setup.Tickets),
		})
	})
	if err != nil {
		logger.Error("election open failed",
			"event", "polling_election_open_failed",
			"module", application.ModuleName,
			"layer", "application",
			"year", setup.Year,
			"error", err.Error(),
		)
		return entities.Election{}, err
	}

	logger.Info("election opened",
		"event", "polling_election_opened",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"year", election.Year,
		"tickets", len(setup.Tickets),
	)
	return election, nil
}
