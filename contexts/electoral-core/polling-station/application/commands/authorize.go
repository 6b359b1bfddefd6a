package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "urna/contexts/electoral-core/polling-station/application"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

// AuthorizeVoterCommand enables a credential to vote at a circuit. Special
// authorizations skip the registry check and produce observed ballots.
type AuthorizeVoterCommand struct {
	Credential string
	CircuitID  int64
	ActorID    string
	Special    bool
}

// LedgerUseCase owns the authorization ledger writes.
type LedgerUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// Authorize creates the single authorization record of a credential. Any
// existing record, in any circuit, rejects the request.
func (uc LedgerUseCase) Authorize(ctx context.Context, cmd AuthorizeVoterCommand) (entities.AuthorizationRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	credential := strings.TrimSpace(cmd.Credential)
	if credential == "" {
		return entities.AuthorizationRecord{}, domainerrors.ErrInvalidCredential
	}

	now := uc.now()
	record := entities.AuthorizationRecord{
		Credential:   credential,
		CircuitID:    cmd.CircuitID,
		State:        entities.AuthorizationEnabled,
		AuthorizedBy: strings.TrimSpace(cmd.ActorID),
		AuthorizedAt: now,
		Special:      cmd.Special,
	}
	err := uc.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.GetCircuit(ctx, cmd.CircuitID); err != nil {
			return err
		}
		existing, found, err := tx.LockAuthorization(ctx, credential)
		if err != nil {
			return err
		}
		if found {
			if existing.HasVoted() {
				return fmt.Errorf("%w: %w", domainerrors.ErrAlreadyAuthorized, domainerrors.ErrAlreadyVoted)
			}
			return domainerrors.ErrAlreadyAuthorized
		}
		if !cmd.Special {
			registered, err := tx.IsRegistered(ctx, credential, cmd.CircuitID)
			if err != nil {
				return err
			}
			if !registered {
				return uc.notRegistered(ctx, tx, credential)
			}
		}
		if err := tx.InsertAuthorization(ctx, record); err != nil {
			return err
		}
		return appendEvent(ctx, tx, uc.IDGen, EventVoterAuthorized, "credential", credential, now, map[string]any{
			"credential":    credential,
			"circuit_id":    cmd.CircuitID,
			"special":       cmd.Special,
			"authorized_by": record.AuthorizedBy,
			"authorized_at": now.Format(time.RFC3339),
		})
	})
	application.ResolveMetrics(uc.Metrics).ObserveAuthorization(cmd.Special, err)
	if err != nil {
		logger.Warn("voter authorization rejected",
			"event", "polling_voter_authorize_failed",
			"module", application.ModuleName,
			"layer", "application",
			"circuit_id", cmd.CircuitID,
			"special", cmd.Special,
			"error", err.Error(),
		)
		return entities.AuthorizationRecord{}, err
	}

	logger.Info("voter authorized",
		"event", "polling_voter_authorized",
		"module", application.ModuleName,
		"layer", "application",
		"circuit_id", cmd.CircuitID,
		"special", cmd.Special,
		"actor_id", record.AuthorizedBy,
	)
	return record, nil
}

func (uc LedgerUseCase) notRegistered(ctx context.Context, tx ports.RegistryTx, credential string) error {
	home, found, err := tx.ResolveHomeCircuit(ctx, credential)
	if err != nil {
		return err
	}
	notRegistered := &domainerrors.NotRegisteredError{Credential: credential}
	if found {
		notRegistered.HomeCircuit = &home
	}
	return notRegistered
}

func (uc LedgerUseCase) now() time.Time {
	return nowFrom(uc.Clock)
}

func appendVotedEvent(
	ctx context.Context,
	tx ports.OutboxWriter,
	idGen ports.IDGenerator,
	record entities.AuthorizationRecord,
	votedAt time.Time,
) error {
	return appendEvent(ctx, tx, idGen, EventVoterVoted, "credential", record.Credential, votedAt, map[string]any{
		"credential": record.Credential,
		"circuit_id": record.CircuitID,
	})
}

// votedAtFor rounds the VOTÓ timestamp down to the minute, never before the
// authorization, so it cannot be joined to the ballot's cast_at.
func votedAtFor(record entities.AuthorizationRecord, castAt time.Time) time.Time {
	votedAt := castAt.UTC().Truncate(time.Minute)
	if votedAt.Before(record.AuthorizedAt) {
		return record.AuthorizedAt.UTC()
	}
	return votedAt
}
