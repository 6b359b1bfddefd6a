package queries

import (
	"context"
	"strings"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

type VoterUseCase struct {
	Ledger   ports.LedgerReader
	Circuits ports.CircuitReader
}

// ResolveCircuit maps an external circuit number to the stored circuit.
func (uc VoterUseCase) ResolveCircuit(ctx context.Context, circuitNumber string) (entities.Circuit, error) {
	circuit, found, err := uc.Circuits.GetCircuitByNumber(ctx, strings.TrimSpace(circuitNumber))
	if err != nil {
		return entities.Circuit{}, err
	}
	if !found {
		return entities.Circuit{}, domainerrors.ErrCircuitNotFound
	}
	return circuit, nil
}

// VoterStatus looks up the authorization record of a credential together
// with the circuit where it was granted.
func (uc VoterUseCase) VoterStatus(ctx context.Context, credential string) (entities.VoterStatus, bool, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return entities.VoterStatus{}, false, domainerrors.ErrInvalidCredential
	}
	record, found, err := uc.Ledger.GetAuthorization(ctx, credential)
	if err != nil || !found {
		return entities.VoterStatus{}, false, err
	}
	ref, err := uc.Circuits.GetCircuitRef(ctx, record.CircuitID)
	if err != nil {
		return entities.VoterStatus{}, false, err
	}
	return entities.VoterStatus{Record: record, Circuit: ref}, true, nil
}

func (uc VoterUseCase) ListVotersByCircuit(ctx context.Context, circuitNumber string) ([]entities.AuthorizationRecord, error) {
	circuit, err := uc.ResolveCircuit(ctx, circuitNumber)
	if err != nil {
		return nil, err
	}
	return uc.Ledger.ListAuthorizationsByCircuit(ctx, circuit.CircuitID)
}

func (uc VoterUseCase) ListRegisteredCredentials(ctx context.Context, circuitNumber string) ([]entities.CredentialRegistryEntry, error) {
	circuit, err := uc.ResolveCircuit(ctx, circuitNumber)
	if err != nil {
		return nil, err
	}
	return uc.Ledger.ListRegistryByCircuit(ctx, circuit.CircuitID)
}
