package http

type ErrorResponse struct {
	Code        string              `json:"code"`
	Message     string              `json:"message"`
	HomeCircuit *CircuitRefResponse `json:"home_circuit,omitempty"`
}

type CircuitRefResponse struct {
	CircuitID     int64  `json:"circuit_id"`
	CircuitNumber string `json:"circuit_number"`
	Establishment string `json:"establishment"`
	Department    string `json:"department"`
	Address       string `json:"address,omitempty"`
}

type AuthorizeVoterRequest struct {
	Credential    string `json:"credential"`
	CircuitNumber string `json:"circuit_number"`
	Special       bool   `json:"special"`
}

type AuthorizationResponse struct {
	Credential   string `json:"credential"`
	CircuitID    int64  `json:"circuit_id"`
	State        string `json:"state"`
	Special      bool   `json:"special"`
	AuthorizedBy string `json:"authorized_by"`
	AuthorizedAt string `json:"authorized_at"`
	VotedAt      string `json:"voted_at,omitempty"`
}

type VoterStatusResponse struct {
	Authorization AuthorizationResponse `json:"authorization"`
	Circuit       CircuitRefResponse    `json:"circuit"`
}

type VoterListResponse struct {
	CircuitNumber string                  `json:"circuit_number"`
	Items         []AuthorizationResponse `json:"items"`
}

type RegistryListResponse struct {
	CircuitNumber string   `json:"circuit_number"`
	Credentials   []string `json:"credentials"`
}

type CastBallotRequest struct {
	Credential string `json:"credential"`
	// Selector is a head candidate id, 0 for blank or -1 for nullified.
	Selector int64 `json:"selector"`
}

type CastBallotResponse struct {
	BallotID  string `json:"ballot_id"`
	ReceiptID string `json:"receipt_id"`
	Pending   bool   `json:"pending"`
}

type ObservedBallotResponse struct {
	BallotID    string `json:"ballot_id"`
	ReceiptID   string `json:"receipt_id"`
	CircuitID   int64  `json:"circuit_id"`
	Kind        string `json:"kind"`
	CandidateID *int64 `json:"candidate_id,omitempty"`
	CastAt      string `json:"cast_at"`
}

type ObservedListResponse struct {
	CircuitNumber string                   `json:"circuit_number"`
	Items         []ObservedBallotResponse `json:"items"`
}

type ResolveBallotRequest struct {
	Decision string `json:"decision"`
}

type ResolveBallotResponse struct {
	BallotID        string `json:"ballot_id"`
	ReceiptID       string `json:"receipt_id"`
	ValidationState string `json:"validation_state"`
	ResolvedBy      string `json:"resolved_by"`
	ResolvedAt      string `json:"resolved_at"`
}

type CandidateCountResponse struct {
	CandidateID int64  `json:"candidate_id"`
	Candidate   string `json:"candidate"`
	Party       string `json:"party"`
	ListNumber  int    `json:"list_number"`
	Votes       int    `json:"votes"`
}

type TallyResponse struct {
	ElectionID      int64                    `json:"election_id"`
	ElectionYear    int                      `json:"election_year"`
	Department      string                   `json:"department,omitempty"`
	Candidates      []CandidateCountResponse `json:"candidates"`
	Blank           int                      `json:"blank"`
	Nullified       int                      `json:"nullified"`
	TotalApproved   int                      `json:"total_approved"`
	TotalAuthorized int                      `json:"total_authorized"`
	Participation   float64                  `json:"participation"`
	PendingObserved int                      `json:"pending_observed"`
}

type CircuitTallyResponse struct {
	Circuit CircuitRefResponse `json:"circuit"`
	Results TallyResponse      `json:"results"`
}

type DepartmentsResponse struct {
	Items []string `json:"items"`
}

type CircuitSearchResponse struct {
	Items []CircuitRefResponse `json:"items"`
}

type RosterTicketResponse struct {
	ListNumber    int    `json:"list_number"`
	HeadID        int64  `json:"head_id"`
	Head          string `json:"head"`
	RunningMateID int64  `json:"running_mate_id,omitempty"`
	RunningMate   string `json:"running_mate,omitempty"`
}

type RosterPartyResponse struct {
	Party   string                 `json:"party"`
	Tickets []RosterTicketResponse `json:"tickets"`
}

type CandidateRosterResponse struct {
	ElectionYear int                   `json:"election_year,omitempty"`
	Parties      []RosterPartyResponse `json:"parties"`
}

type ElectionResponse struct {
	ElectionID int64  `json:"election_id"`
	Year       int    `json:"year"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
}

type RegistryImportEntry struct {
	Credential        string `json:"credential"`
	CircuitNumber     string `json:"circuit_number"`
	EstablishmentName string `json:"establishment_name,omitempty"`
	Department        string `json:"department,omitempty"`
	City              string `json:"city,omitempty"`
	Address           string `json:"address,omitempty"`
}

type RegistryImportRequest struct {
	Entries []RegistryImportEntry `json:"entries"`
}

type RegistryImportResponse struct {
	Inserted            int      `json:"inserted"`
	Skipped             int      `json:"skipped"`
	ProvisionedCircuits []string `json:"provisioned_circuits"`
}

type TicketRequest struct {
	Party       string `json:"party"`
	ListNumber  int    `json:"list_number"`
	Head        string `json:"head"`
	RunningMate string `json:"running_mate,omitempty"`
}

type OpenElectionRequest struct {
	Year    int             `json:"year"`
	Name    string          `json:"name,omitempty"`
	Tickets []TicketRequest `json:"tickets"`
}
