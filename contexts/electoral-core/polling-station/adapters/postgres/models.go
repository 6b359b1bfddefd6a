package postgresadapter

import (
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
)

type establishmentModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	Name       string `gorm:"column:name;not null"`
	Department string `gorm:"column:department;not null;index"`
	City       string `gorm:"column:city;not null"`
	Address    string `gorm:"column:address;not null"`
	Kind       string `gorm:"column:kind;not null"`
	Accessible bool   `gorm:"column:accessible;not null"`
}

func (establishmentModel) TableName() string {
	return "establishments"
}

type circuitModel struct {
	ID              int64  `gorm:"column:id;primaryKey"`
	Number          string `gorm:"column:number;not null;uniqueIndex"`
	EstablishmentID int64  `gorm:"column:establishment_id;not null;index"`
}

func (circuitModel) TableName() string {
	return "circuits"
}

func (m circuitModel) toEntity() entities.Circuit {
	return entities.Circuit{
		CircuitID:       m.ID,
		Number:          m.Number,
		EstablishmentID: m.EstablishmentID,
	}
}

type circuitRefRow struct {
	CircuitID         int64
	Number            string
	EstablishmentName string
	Department        string
	Address           string
}

func (r circuitRefRow) toEntity() entities.CircuitRef {
	return entities.CircuitRef{
		CircuitID:         r.CircuitID,
		Number:            r.Number,
		EstablishmentName: r.EstablishmentName,
		Department:        r.Department,
		Address:           r.Address,
	}
}

type registryModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	Credential string    `gorm:"column:credential;not null;uniqueIndex:idx_credential_registry_pair,priority:1"`
	CircuitID  int64     `gorm:"column:circuit_id;not null;uniqueIndex:idx_credential_registry_pair,priority:2;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (registryModel) TableName() string {
	return "credential_registry"
}

func (m registryModel) toEntity() entities.CredentialRegistryEntry {
	return entities.CredentialRegistryEntry{
		Credential: m.Credential,
		CircuitID:  m.CircuitID,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type authorizationModel struct {
	Credential   string     `gorm:"column:credential;primaryKey"`
	CircuitID    int64      `gorm:"column:circuit_id;not null;index"`
	State        string     `gorm:"column:state;not null"`
	AuthorizedBy string     `gorm:"column:authorized_by;not null"`
	AuthorizedAt time.Time  `gorm:"column:authorized_at;not null"`
	VotedAt      *time.Time `gorm:"column:voted_at"`
	Special      bool       `gorm:"column:special;not null"`
}

func (authorizationModel) TableName() string {
	return "authorizations"
}

func authorizationModelFromEntity(record entities.AuthorizationRecord) authorizationModel {
	return authorizationModel{
		Credential:   record.Credential,
		CircuitID:    record.CircuitID,
		State:        string(record.State),
		AuthorizedBy: record.AuthorizedBy,
		AuthorizedAt: record.AuthorizedAt.UTC(),
		VotedAt:      normalizeOptionalTime(record.VotedAt),
		Special:      record.Special,
	}
}

func (m authorizationModel) toEntity() entities.AuthorizationRecord {
	return entities.AuthorizationRecord{
		Credential:   m.Credential,
		CircuitID:    m.CircuitID,
		State:        entities.AuthorizationState(m.State),
		AuthorizedBy: m.AuthorizedBy,
		AuthorizedAt: m.AuthorizedAt.UTC(),
		VotedAt:      normalizeOptionalTime(m.VotedAt),
		Special:      m.Special,
	}
}

type ballotModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	ReceiptID       string     `gorm:"column:receipt_id;not null;uniqueIndex:idx_ballots_circuit_receipt,priority:2"`
	Sequence        int        `gorm:"column:sequence;not null;uniqueIndex:idx_ballots_circuit_sequence,priority:2"`
	CircuitID       int64      `gorm:"column:circuit_id;not null;uniqueIndex:idx_ballots_circuit_receipt,priority:1;uniqueIndex:idx_ballots_circuit_sequence,priority:1"`
	ElectionID      int64      `gorm:"column:election_id;not null;index"`
	CandidateID     *int64     `gorm:"column:candidate_id"`
	CastAt          time.Time  `gorm:"column:cast_at;not null"`
	Observed        bool       `gorm:"column:observed;not null"`
	ValidationState string     `gorm:"column:validation_state;not null;index"`
	Nullified       bool       `gorm:"column:nullified;not null"`
	ResolvedBy      string     `gorm:"column:resolved_by"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	return ballotModel{
		ID:              ballot.BallotID,
		ReceiptID:       ballot.ReceiptID,
		Sequence:        ballot.Sequence,
		CircuitID:       ballot.CircuitID,
		ElectionID:      ballot.ElectionID,
		CandidateID:     ballot.CandidateID,
		CastAt:          ballot.CastAt.UTC(),
		Observed:        ballot.Observed,
		ValidationState: string(ballot.ValidationState),
		Nullified:       ballot.Nullified,
		ResolvedBy:      ballot.ResolvedBy,
		ResolvedAt:      normalizeOptionalTime(ballot.ResolvedAt),
	}
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:        m.ID,
		ReceiptID:       m.ReceiptID,
		Sequence:        m.Sequence,
		CircuitID:       m.CircuitID,
		ElectionID:      m.ElectionID,
		CandidateID:     m.CandidateID,
		CastAt:          m.CastAt.UTC(),
		Observed:        m.Observed,
		ValidationState: entities.ValidationState(m.ValidationState),
		Nullified:       m.Nullified,
		ResolvedBy:      m.ResolvedBy,
		ResolvedAt:      normalizeOptionalTime(m.ResolvedAt),
	}
}

type electionModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Year      int       `gorm:"column:year;not null"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (electionModel) TableName() string {
	return "elections"
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ElectionID: m.ID,
		Year:       m.Year,
		Name:       m.Name,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type partyModel struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name;not null;uniqueIndex"`
}

func (partyModel) TableName() string {
	return "parties"
}

type candidateModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	Name       string `gorm:"column:name;not null"`
	PartyID    int64  `gorm:"column:party_id;not null;index"`
	ElectionID int64  `gorm:"column:election_id;not null;index"`
	IsHead     bool   `gorm:"column:is_head;not null"`
	ListNumber int    `gorm:"column:list_number;not null"`
	ListOrder  int    `gorm:"column:list_order;not null"`
}

func (candidateModel) TableName() string {
	return "candidates"
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.ID,
		Name:        m.Name,
		PartyID:     m.PartyID,
		ElectionID:  m.ElectionID,
		IsHead:      m.IsHead,
		ListNumber:  m.ListNumber,
		ListOrder:   m.ListOrder,
	}
}

type headCandidateRow struct {
	CandidateID int64
	Name        string
	PartyName   string
	ListNumber  int
}

type candidateListingRow struct {
	candidateModel
	PartyName string
}

func (r candidateListingRow) toEntity() entities.CandidateListing {
	return entities.CandidateListing{
		Candidate: r.candidateModel.toEntity(),
		PartyName: r.PartyName,
	}
}

type ballotCountRow struct {
	CandidateID     *int64
	Nullified       bool
	Observed        bool
	ValidationState string
	Total           int
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key;not null"`
	Payload      []byte     `gorm:"column:payload;not null"`
	Status       string     `gorm:"column:status;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "polling_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (eventDedupModel) TableName() string {
	return "polling_event_dedup"
}

type auditModel struct {
	EntryID    string    `gorm:"column:entry_id;primaryKey"`
	EventID    string    `gorm:"column:event_id;not null;uniqueIndex"`
	EventType  string    `gorm:"column:event_type;not null"`
	BallotID   string    `gorm:"column:ballot_id;not null;index"`
	ReceiptID  string    `gorm:"column:receipt_id;not null"`
	CircuitID  int64     `gorm:"column:circuit_id;not null"`
	Detail     []byte    `gorm:"column:detail"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null"`
}

func (auditModel) TableName() string {
	return "ballot_audit_log"
}

func (m auditModel) toEntity() entities.AuditEntry {
	return entities.AuditEntry{
		EntryID:    m.EntryID,
		EventID:    m.EventID,
		EventType:  m.EventType,
		BallotID:   m.BallotID,
		ReceiptID:  m.ReceiptID,
		CircuitID:  m.CircuitID,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt.UTC(),
		RecordedAt: m.RecordedAt.UTC(),
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}

// Models lists every table owned by the polling station, in dependency
// order.
func Models() []any {
	return []any{
		&establishmentModel{},
		&circuitModel{},
		&registryModel{},
		&authorizationModel{},
		&electionModel{},
		&partyModel{},
		&candidateModel{},
		&ballotModel{},
		&outboxModel{},
		&eventDedupModel{},
		&auditModel{},
	}
}
