package commands

import (
	"context"
	"log/slog"
	"strings"

	application "urna/contexts/electoral-core/polling-station/application"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

type BulkRegisterResult struct {
	Inserted            int
	Skipped             int
	ProvisionedCircuits []string
}

// RegistryUseCase imports the credential registry.
type RegistryUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	Logger     *slog.Logger
}

// BulkRegister inserts registry pairs in one transaction. Pairs already
// present are skipped; circuits that do not exist yet are provisioned with a
// minimal establishment.
func (uc RegistryUseCase) BulkRegister(ctx context.Context, rows []entities.RegistryImportRow) (BulkRegisterResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	normalized := make([]entities.RegistryImportRow, 0, len(rows))
	for _, row := range rows {
		row.Credential = strings.TrimSpace(row.Credential)
		row.CircuitNumber = strings.TrimSpace(row.CircuitNumber)
		if row.Credential == "" || row.CircuitNumber == "" {
			return BulkRegisterResult{}, domainerrors.ErrInvalidRegistryEntry
		}
		normalized = append(normalized, row)
	}

	now := nowFrom(uc.Clock)
	var result BulkRegisterResult
	err := uc.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		result = BulkRegisterResult{}
		circuits := make(map[string]int64)
		for _, row := range normalized {
			circuitID, ok := circuits[row.CircuitNumber]
			if !ok {
				circuit, found, err := tx.GetCircuitByNumber(ctx, row.CircuitNumber)
				if err != nil {
					return err
				}
				if !found {
					circuit, err = tx.CreateCircuit(ctx, row.CircuitNumber, entities.ProvisionedEstablishment(row))
					if err != nil {
						return err
					}
					result.ProvisionedCircuits = append(result.ProvisionedCircuits, row.CircuitNumber)
				}
				circuitID = circuit.CircuitID
				circuits[row.CircuitNumber] = circuitID
			}

			inserted, err := tx.InsertRegistryEntry(ctx, entities.CredentialRegistryEntry{
				Credential: row.Credential,
				CircuitID:  circuitID,
				CreatedAt:  now,
			})
			if err != nil {
				return err
			}
			if inserted {
				result.Inserted++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("credential registry import failed",
			"event", "polling_registry_import_failed",
			"module", application.ModuleName,
			"layer", "application",
			"rows", len(normalized),
			"error", err.Error(),
		)
		return BulkRegisterResult{}, err
	}

	logger.Info("credential registry imported",
		"event", "polling_registry_imported",
		"module", application.ModuleName,
		"layer", "application",
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"provisioned_circuits", len(result.ProvisionedCircuits),
	)
	return result, nil
}
