package queries

import (
	"context"
	"strings"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"
)

const (
	circuitSearchAll   = "ALL"
	circuitSearchLimit = 10
)

type TallyQuery struct {
	// ElectionID selects a past or current election; zero means the active one.
	ElectionID int64
	Department string
}

// TallyUseCase aggregates approved ballots. It reads committed state only and
// keeps nothing between calls.
type TallyUseCase struct {
	Reader   ports.TallyReader
	Circuits ports.CircuitReader
}

func (uc TallyUseCase) Tally(ctx context.Context, query TallyQuery) (entities.TallyResult, error) {
	department := strings.TrimSpace(query.Department)
	election, found, err := uc.resolveElection(ctx, query.ElectionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	if !found {
		return entities.TallyResult{Department: department, PerCandidate: []entities.CandidateCount{}}, nil
	}

	roster, err := uc.Reader.ListHeadCandidates(ctx, election.ElectionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	counts, err := uc.Reader.CountBallots(ctx, entities.BallotFilter{
		ElectionID: election.ElectionID,
		Department: department,
	})
	if err != nil {
		return entities.TallyResult{}, err
	}
	authorized, err := uc.Reader.CountAuthorizations(ctx, entities.AuthorizationScope{Department: department})
	if err != nil {
		return entities.TallyResult{}, err
	}

	result := entities.BuildTally(roster, counts, authorized)
	result.ElectionID = election.ElectionID
	result.ElectionYear = election.Year
	result.Department = department
	return result, nil
}

// CircuitTally restricts the tally to ballots cast at one circuit since the
// active election opened.
func (uc TallyUseCase) CircuitTally(ctx context.Context, circuitNumber string) (entities.CircuitTallyResult, error) {
	circuit, found, err := uc.Circuits.GetCircuitByNumber(ctx, strings.TrimSpace(circuitNumber))
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}
	if !found {
		return entities.CircuitTallyResult{}, domainerrors.ErrCircuitNotFound
	}
	ref, err := uc.Circuits.GetCircuitRef(ctx, circuit.CircuitID)
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}

	election, active, err := uc.Reader.GetActiveElection(ctx)
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}
	if !active {
		return entities.CircuitTallyResult{
			Circuit:     ref,
			TallyResult: entities.TallyResult{PerCandidate: []entities.CandidateCount{}},
		}, nil
	}

	roster, err := uc.Reader.ListHeadCandidates(ctx, election.ElectionID)
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}
	counts, err := uc.Reader.CountBallots(ctx, entities.BallotFilter{
		ElectionID: election.ElectionID,
		CircuitID:  circuit.CircuitID,
		CastSince:  election.CreatedAt,
	})
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}
	authorized, err := uc.Reader.CountAuthorizations(ctx, entities.AuthorizationScope{CircuitID: circuit.CircuitID})
	if err != nil {
		return entities.CircuitTallyResult{}, err
	}

	result := entities.BuildTally(roster, counts, authorized)
	result.ElectionID = election.ElectionID
	result.ElectionYear = election.Year
	result.Department = ref.Department
	return entities.CircuitTallyResult{Circuit: ref, TallyResult: result}, nil
}

func (uc TallyUseCase) ActiveElection(ctx context.Context) (entities.Election, bool, error) {
	return uc.Reader.GetActiveElection(ctx)
}

func (uc TallyUseCase) Departments(ctx context.Context) ([]string, error) {
	return uc.Circuits.ListDepartments(ctx)
}

// CandidateRoster lists the party tickets of the active election. It is
// empty when no election is open.
func (uc TallyUseCase) CandidateRoster(ctx context.Context) (entities.Election, []entities.RosterParty, error) {
	election, found, err := uc.Reader.GetActiveElection(ctx)
	if err != nil {
		return entities.Election{}, nil, err
	}
	if !found {
		return entities.Election{}, []entities.RosterParty{}, nil
	}
	candidates, err := uc.Reader.ListCandidates(ctx, election.ElectionID)
	if err != nil {
		return entities.Election{}, nil, err
	}
	return election, entities.BuildRoster(candidates), nil
}

// SearchCircuits matches circuit numbers containing term, at most
// circuitSearchLimit of them. "ALL" lists every circuit.
func (uc TallyUseCase) SearchCircuits(ctx context.Context, term string) ([]entities.CircuitRef, error) {
	term = strings.TrimSpace(term)
	if strings.EqualFold(term, circuitSearchAll) {
		return uc.Circuits.SearchCircuits(ctx, "", 0)
	}
	return uc.Circuits.SearchCircuits(ctx, term, circuitSearchLimit)
}

func (uc TallyUseCase) resolveElection(ctx context.Context, electionID int64) (entities.Election, bool, error) {
	if electionID > 0 {
		return uc.Reader.GetElection(ctx, electionID)
	}
	return uc.Reader.GetActiveElection(ctx)
}
