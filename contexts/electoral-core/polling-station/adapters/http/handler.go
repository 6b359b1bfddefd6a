package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/queries"
	"urna/contexts/electoral-core/polling-station/domain/entities"
	httptransport "urna/contexts/electoral-core/polling-station/transport/http"
)

type Handler struct {
	Ledger       commands.LedgerUseCase
	Casting      commands.CastingUseCase
	Adjudication commands.AdjudicationUseCase
	Registry     commands.RegistryUseCase
	Elections    commands.ElectionUseCase
	Tally        queries.TallyUseCase
	Observed     queries.ObservedUseCase
	Voters       queries.VoterUseCase
	Logger       *slog.Logger
}

// AuthorizeVoterHandler godoc
// @Summary Authorize a voter at a circuit
// @Description Creates the single authorization record of a credential.
// @Tags polling-station
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Poll worker id"
// @Param request body httptransport.AuthorizeVoterRequest true "Authorization request"
// @Success 201 {object} httptransport.AuthorizationResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/v1/voters/authorize [post]
func (h Handler) AuthorizeVoterHandler(
	ctx context.Context,
	actorID string,
	req httptransport.AuthorizeVoterRequest,
) (httptransport.AuthorizationResponse, error) {
	circuit, err := h.Voters.ResolveCircuit(ctx, req.CircuitNumber)
	if err != nil {
		return httptransport.AuthorizationResponse{}, err
	}
	record, err := h.Ledger.Authorize(ctx, commands.AuthorizeVoterCommand{
		Credential: req.Credential,
		CircuitID:  circuit.CircuitID,
		ActorID:    actorID,
		Special:    req.Special,
	})
	if err != nil {
		return httptransport.AuthorizationResponse{}, err
	}
	return mapAuthorization(record), nil
}

func (h Handler) VoterStatusHandler(ctx context.Context, credential string) (httptransport.VoterStatusResponse, bool, error) {
	status, found, err := h.Voters.VoterStatus(ctx, credential)
	if err != nil || !found {
		return httptransport.VoterStatusResponse{}, found, err
	}
	return httptransport.VoterStatusResponse{
		Authorization: mapAuthorization(status.Record),
		Circuit:       MapCircuitRef(status.Circuit),
	}, true, nil
}

func (h Handler) CircuitVotersHandler(ctx context.Context, circuitNumber string) (httptransport.VoterListResponse, error) {
	records, err := h.Voters.ListVotersByCircuit(ctx, circuitNumber)
	if err != nil {
		return httptransport.VoterListResponse{}, err
	}
	items := make([]httptransport.AuthorizationResponse, 0, len(records))
	for _, record := range records {
		items = append(items, mapAuthorization(record))
	}
	return httptransport.VoterListResponse{CircuitNumber: circuitNumber, Items: items}, nil
}

func (h Handler) CircuitRegistryHandler(ctx context.Context, circuitNumber string) (httptransport.RegistryListResponse, error) {
	entries, err := h.Voters.ListRegisteredCredentials(ctx, circuitNumber)
	if err != nil {
		return httptransport.RegistryListResponse{}, err
	}
	credentials := make([]string, 0, len(entries))
	for _, entry := range entries {
		credentials = append(credentials, entry.Credential)
	}
	return httptransport.RegistryListResponse{CircuitNumber: circuitNumber, Credentials: credentials}, nil
}

// CastBallotHandler godoc
// @Summary Cast a ballot at the station circuit
// @Description Casts at the circuit the polling station is bound to, never at one named in the body.
// @Tags polling-station
// @Accept json
// @Produce json
// @Param X-Circuit-Number header string true "Circuit number the station is bound to"
// @Param request body httptransport.CastBallotRequest true "Ballot"
// @Success 201 {object} httptransport.CastBallotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/ballots [post]
func (h Handler) CastBallotHandler(
	ctx context.Context,
	stationCircuitNumber string,
	req httptransport.CastBallotRequest,
) (httptransport.CastBallotResponse, error) {
	circuit, err := h.Voters.ResolveCircuit(ctx, stationCircuitNumber)
	if err != nil {
		return httptransport.CastBallotResponse{}, err
	}
	result, err := h.Casting.CastBallot(ctx, commands.CastBallotCommand{
		Credential: req.Credential,
		Selector:   req.Selector,
		CircuitID:  circuit.CircuitID,
	})
	if err != nil {
		return httptransport.CastBallotResponse{}, err
	}
	return httptransport.CastBallotResponse{
		BallotID:  result.BallotID,
		ReceiptID: result.ReceiptID,
		Pending:   result.Pending,
	}, nil
}

func (h Handler) ObservedBallotsHandler(ctx context.Context, circuitNumber string) (httptransport.ObservedListResponse, error) {
	circuit, err := h.Voters.ResolveCircuit(ctx, circuitNumber)
	if err != nil {
		return httptransport.ObservedListResponse{}, err
	}
	ballots, err := h.Observed.ListPending(ctx, circuit.CircuitID)
	if err != nil {
		return httptransport.ObservedListResponse{}, err
	}
	items := make([]httptransport.ObservedBallotResponse, 0, len(ballots))
	for _, ballot := range ballots {
		items = append(items, httptransport.ObservedBallotResponse{
			BallotID:    ballot.BallotID,
			ReceiptID:   ballot.ReceiptID,
			CircuitID:   ballot.CircuitID,
			Kind:        ballotKind(ballot),
			CandidateID: ballot.CandidateID,
			CastAt:      ballot.CastAt.Format(time.RFC3339),
		})
	}
	return httptransport.ObservedListResponse{CircuitNumber: circuitNumber, Items: items}, nil
}

// ResolveBallotHandler godoc
// @Summary Approve or reject an observed ballot
// @Tags polling-station
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Adjudicator id"
// @Param ballot_id path string true "Ballot id"
// @Param request body httptransport.ResolveBallotRequest true "Decision"
// @Success 200 {object} httptransport.ResolveBallotResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/ballots/{ballot_id}/resolution [post]
func (h Handler) ResolveBallotHandler(
	ctx context.Context,
	actorID string,
	ballotID string,
	req httptransport.ResolveBallotRequest,
) (httptransport.ResolveBallotResponse, error) {
	ballot, err := h.Adjudication.Resolve(ctx, commands.ResolveObservedCommand{
		BallotID: ballotID,
		Decision: req.Decision,
		ActorID:  actorID,
	})
	if err != nil {
		return httptransport.ResolveBallotResponse{}, err
	}
	response := httptransport.ResolveBallotResponse{
		BallotID:        ballot.BallotID,
		ReceiptID:       ballot.ReceiptID,
		ValidationState: string(ballot.ValidationState),
		ResolvedBy:      ballot.ResolvedBy,
	}
	if ballot.ResolvedAt != nil {
		response.ResolvedAt = ballot.ResolvedAt.Format(time.RFC3339)
	}
	return response, nil
}

// ResultsHandler godoc
// @Summary Aggregate approved ballots
// @Tags results
// @Produce json
// @Param election_id query int false "Election id, defaults to the active election"
// @Param department query string false "Department filter"
// @Success 200 {object} httptransport.TallyResponse
// @Router /api/v1/results [get]
func (h Handler) ResultsHandler(ctx context.Context, electionID int64, department string) (httptransport.TallyResponse, error) {
	result, err := h.Tally.Tally(ctx, queries.TallyQuery{ElectionID: electionID, Department: department})
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return mapTally(result), nil
}

func (h Handler) CircuitResultsHandler(ctx context.Context, circuitNumber string) (httptransport.CircuitTallyResponse, error) {
	result, err := h.Tally.CircuitTally(ctx, circuitNumber)
	if err != nil {
		return httptransport.CircuitTallyResponse{}, err
	}
	return httptransport.CircuitTallyResponse{
		Circuit: MapCircuitRef(result.Circuit),
		Results: mapTally(result.TallyResult),
	}, nil
}

func (h Handler) DepartmentsHandler(ctx context.Context) (httptransport.DepartmentsResponse, error) {
	departments, err := h.Tally.Departments(ctx)
	if err != nil {
		return httptransport.DepartmentsResponse{}, err
	}
	if departments == nil {
		departments = []string{}
	}
	return httptransport.DepartmentsResponse{Items: departments}, nil
}

// CandidatesHandler godoc
// @Summary List the candidates of the active election
// @Description Party tickets with head and running mate ids. Public.
// @Tags candidates
// @Produce json
// @Success 200 {object} httptransport.CandidateRosterResponse
// @Router /api/v1/candidates [get]
func (h Handler) CandidatesHandler(ctx context.Context) (httptransport.CandidateRosterResponse, error) {
	election, roster, err := h.Tally.CandidateRoster(ctx)
	if err != nil {
		return httptransport.CandidateRosterResponse{}, err
	}
	parties := make([]httptransport.RosterPartyResponse, 0, len(roster))
	for _, party := range roster {
		tickets := make([]httptransport.RosterTicketResponse, 0, len(party.Tickets))
		for _, ticket := range party.Tickets {
			tickets = append(tickets, httptransport.RosterTicketResponse{
				ListNumber:    ticket.ListNumber,
				HeadID:        ticket.HeadID,
				Head:          ticket.HeadName,
				RunningMateID: ticket.RunningMateID,
				RunningMate:   ticket.RunningMateName,
			})
		}
		parties = append(parties, httptransport.RosterPartyResponse{Party: party.PartyName, Tickets: tickets})
	}
	return httptransport.CandidateRosterResponse{ElectionYear: election.Year, Parties: parties}, nil
}

// SearchCircuitsHandler godoc
// @Summary Search circuits by number
// @Description Up to 10 circuits whose number contains q; q=ALL lists every circuit.
// @Tags results
// @Produce json
// @Param q query string true "Circuit number fragment"
// @Success 200 {object} httptransport.CircuitSearchResponse
// @Router /api/v1/circuits/search [get]
func (h Handler) SearchCircuitsHandler(ctx context.Context, term string) (httptransport.CircuitSearchResponse, error) {
	refs, err := h.Tally.SearchCircuits(ctx, term)
	if err != nil {
		return httptransport.CircuitSearchResponse{}, err
	}
	items := make([]httptransport.CircuitRefResponse, 0, len(refs))
	for _, ref := range refs {
		items = append(items, MapCircuitRef(ref))
	}
	return httptransport.CircuitSearchResponse{Items: items}, nil
}

func (h Handler) ActiveElectionHandler(ctx context.Context) (httptransport.ElectionResponse, bool, error) {
	election, found, err := h.Tally.ActiveElection(ctx)
	if err != nil || !found {
		return httptransport.ElectionResponse{}, found, err
	}
	return mapElection(election), true, nil
}

func (h Handler) ImportRegistryHandler(
	ctx context.Context,
	req httptransport.RegistryImportRequest,
) (httptransport.RegistryImportResponse, error) {
	rows := make([]entities.RegistryImportRow, 0, len(req.Entries))
	for _, entry := range req.Entries {
		rows = append(rows, entities.RegistryImportRow{
			Credential:        entry.Credential,
			CircuitNumber:     entry.CircuitNumber,
			EstablishmentName: entry.EstablishmentName,
			Department:        entry.Department,
			City:              entry.City,
			Address:           entry.Address,
		})
	}
	result, err := h.Registry.BulkRegister(ctx, rows)
	if err != nil {
		return httptransport.RegistryImportResponse{}, err
	}
	provisioned := result.ProvisionedCircuits
	if provisioned == nil {
		provisioned = []string{}
	}
	return httptransport.RegistryImportResponse{
		Inserted:            result.Inserted,
		Skipped:             result.Skipped,
		ProvisionedCircuits: provisioned,
	}, nil
}

func (h Handler) OpenElectionHandler(ctx context.Context, req httptransport.OpenElectionRequest) (httptransport.ElectionResponse, error) {
	tickets := make([]entities.Ticket, 0, len(req.Tickets))
	for _, ticket := range req.Tickets {
		tickets = append(tickets, entities.Ticket{
			PartyName:   ticket.Party,
			ListNumber:  ticket.ListNumber,
			Head:        ticket.Head,
			RunningMate: ticket.RunningMate,
		})
	}
	election, err := h.Elections.OpenElection(ctx, entities.ElectionSetup{
		Year:    req.Year,
		Name:    req.Name,
		Tickets: tickets,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func MapCircuitRef(ref entities.CircuitRef) httptransport.CircuitRefResponse {
	return httptransport.CircuitRefResponse{
		CircuitID:     ref.CircuitID,
		CircuitNumber: ref.Number,
		Establishment: ref.EstablishmentName,
		Department:    ref.Department,
		Address:       ref.Address,
	}
}

func mapAuthorization(record entities.AuthorizationRecord) httptransport.AuthorizationResponse {
	response := httptransport.AuthorizationResponse{
		Credential:   record.Credential,
		CircuitID:    record.CircuitID,
		State:        string(record.State),
		Special:      record.Special,
		AuthorizedBy: record.AuthorizedBy,
		AuthorizedAt: record.AuthorizedAt.Format(time.RFC3339),
	}
	if record.VotedAt != nil {
		response.VotedAt = record.VotedAt.Format(time.RFC3339)
	}
	return response
}

func mapTally(result entities.TallyResult) httptransport.TallyResponse {
	candidates := make([]httptransport.CandidateCountResponse, 0, len(result.PerCandidate))
	for _, row := range result.PerCandidate {
		candidates = append(candidates, httptransport.CandidateCountResponse{
			CandidateID: row.CandidateID,
			Candidate:   row.Candidate,
			Party:       row.Party,
			ListNumber:  row.ListNumber,
			Votes:       row.Votes,
		})
	}
	return httptransport.TallyResponse{
		ElectionID:      result.ElectionID,
		ElectionYear:    result.ElectionYear,
		Department:      result.Department,
		Candidates:      candidates,
		Blank:           result.Blank,
		Nullified:       result.Nullified,
		TotalApproved:   result.TotalApproved,
		TotalAuthorized: result.TotalAuthorized,
		Participation:   result.Participation,
		PendingObserved: result.PendingObserved,
	}
}

func mapElection(election entities.Election) httptransport.ElectionResponse {
	return httptransport.ElectionResponse{
		ElectionID: election.ElectionID,
		Year:       election.Year,
		Name:       election.Name,
		Active:     election.Active,
		CreatedAt:  election.CreatedAt.Format(time.RFC3339),
	}
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
