package entities

import "time"

type AuthorizationState string

const (
	AuthorizationEnabled AuthorizationState = "HABILITADA"
	AuthorizationVoted   AuthorizationState = "VOTÓ"
)

// AuthorizationRecord is unique per credential across every circuit.
// Special marks an observed authorization granted outside the registry.
type AuthorizationRecord struct {
	Credential   string
	CircuitID    int64
	State        AuthorizationState
	AuthorizedBy string
	AuthorizedAt time.Time
	VotedAt      *time.Time
	Special      bool
}

func (r AuthorizationRecord) CanVote() bool {
	return r.State == AuthorizationEnabled
}

func (r AuthorizationRecord) HasVoted() bool {
	return r.State == AuthorizationVoted
}

type CredentialRegistryEntry struct {
	Credential string
	CircuitID  int64
	CreatedAt  time.Time
}

// RegistryImportRow is one line of the external bulk import. Circuit is the
// external circuit number; the establishment fields are only used when the
// circuit has to be provisioned.
type RegistryImportRow struct {
	Credential        string
	CircuitNumber     string
	EstablishmentName string
	Department        string
	City              string
	Address           string
}

// VoterStatus is the read model shown to the polling-station operator.
type VoterStatus struct {
	Record  AuthorizationRecord
	Circuit CircuitRef
}
