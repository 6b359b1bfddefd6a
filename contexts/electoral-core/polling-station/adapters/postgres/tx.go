package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// electionLockKey serializes concurrent election openings on PostgreSQL.
const electionLockKey int64 = 0x75726e61

// gormTx scopes every statement to the surrounding transaction. It must not
// fall back to repo.db, which would run outside the transaction.
type gormTx struct {
	db   *gorm.DB
	repo *Repository
}

var _ ports.Tx = (*gormTx)(nil)

func (t *gormTx) forUpdate(ctx context.Context) *gorm.DB {
	query := t.db.WithContext(ctx)
	if t.repo.isPostgres() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (t *gormTx) GetCircuit(ctx context.Context, circuitID int64) (entities.Circuit, error) {
	var row circuitModel
	err := t.db.WithContext(ctx).Where("id = ?", circuitID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Circuit{}, domainerrors.ErrCircuitNotFound
		}
		return entities.Circuit{}, t.repo.logError("polling_repo_get_circuit_failed", err, "circuit_id", circuitID)
	}
	return row.toEntity(), nil
}

func (t *gormTx) GetCircuitByNumber(ctx context.Context, number string) (entities.Circuit, bool, error) {
	return findCircuitByNumber(ctx, t.db, t.repo, number)
}

func (t *gormTx) CreateCircuit(ctx context.Context, number string, establishment entities.Establishment) (entities.Circuit, error) {
	place := establishmentModel{
		Name:       establishment.Name,
		Department: establishment.Department,
		City:       establishment.City,
		Address:    establishment.Address,
		Kind:       establishment.Kind,
		Accessible: establishment.Accessible,
	}
	if err := t.db.WithContext(ctx).
		Where("name = ? AND department = ? AND address = ?", place.Name, place.Department, place.Address).
		FirstOrCreate(&place).Error; err != nil {
		return entities.Circuit{}, t.repo.logError("polling_repo_provision_establishment_failed", err,
			"circuit_number", number,
		)
	}

	row := circuitModel{
		Number:          strings.TrimSpace(number),
		EstablishmentID: place.ID,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.Circuit{}, domainerrors.ErrConflict
		}
		return entities.Circuit{}, t.repo.logError("polling_repo_create_circuit_failed", err,
			"circuit_number", number,
		)
	}
	return row.toEntity(), nil
}

func (t *gormTx) IsRegistered(ctx context.Context, credential string, circuitID int64) (bool, error) {
	var total int64
	if err := t.db.WithContext(ctx).
		Model(&registryModel{}).
		Where("credential = ? AND circuit_id = ?", credential, circuitID).
		Count(&total).Error; err != nil {
		return false, t.repo.logError("polling_repo_is_registered_failed", err, "circuit_id", circuitID)
	}
	return total > 0, nil
}

func (t *gormTx) ResolveHomeCircuit(ctx context.Context, credential string) (entities.CircuitRef, bool, error) {
	var entry registryModel
	err := t.db.WithContext(ctx).
		Where("credential = ?", credential).
		Order("circuit_id ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CircuitRef{}, false, nil
		}
		return entities.CircuitRef{}, false, t.repo.logError("polling_repo_resolve_home_circuit_failed", err)
	}
	ref, found, err := loadCircuitRef(ctx, t.db, entry.CircuitID)
	if err != nil {
		return entities.CircuitRef{}, false, t.repo.logError("polling_repo_resolve_home_circuit_failed", err,
			"circuit_id", entry.CircuitID,
		)
	}
	return ref, found, nil
}

func (t *gormTx) InsertRegistryEntry(ctx context.Context, entry entities.CredentialRegistryEntry) (bool, error) {
	row := registryModel{
		Credential: entry.Credential,
		CircuitID:  entry.CircuitID,
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	create := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential"}, {Name: "circuit_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, t.repo.logError("polling_repo_insert_registry_failed", create.Error,
			"circuit_id", entry.CircuitID,
		)
	}
	return create.RowsAffected > 0, nil
}

func (t *gormTx) LockAuthorization(ctx context.Context, credential string) (entities.AuthorizationRecord, bool, error) {
	var rows []authorizationModel
	if err := t.forUpdate(ctx).
		Where("credential = ?", credential).
		Limit(1).
		Find(&rows).Error; err != nil {
		return entities.AuthorizationRecord{}, false, t.repo.logError("polling_repo_lock_authorization_failed", err)
	}
	if len(rows) == 0 {
		return entities.AuthorizationRecord{}, false, nil
	}
	return rows[0].toEntity(), true, nil
}

func (t *gormTx) InsertAuthorization(ctx context.Context, record entities.AuthorizationRecord) error {
	row := authorizationModelFromEntity(record)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyAuthorized
		}
		return t.repo.logError("polling_repo_insert_authorization_failed", err, "circuit_id", record.CircuitID)
	}
	return nil
}

// MarkVoted is a conditional update; zero rows affected means the record is
// missing or no longer enabled.
func (t *gormTx) MarkVoted(ctx context.Context, credential string, votedAt time.Time) error {
	result := t.db.WithContext(ctx).
		Model(&authorizationModel{}).
		Where("credential = ? AND state = ?", credential, string(entities.AuthorizationEnabled)).
		Updates(map[string]any{
			"state":    string(entities.AuthorizationVoted),
			"voted_at": votedAt.UTC(),
		})
	if result.Error != nil {
		return t.repo.logError("polling_repo_mark_voted_failed", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var rows []authorizationModel
	if err := t.db.WithContext(ctx).Where("credential = ?", credential).Limit(1).Find(&rows).Error; err != nil {
		return t.repo.logError("polling_repo_mark_voted_reload_failed", err)
	}
	if len(rows) == 1 && rows[0].State == string(entities.AuthorizationVoted) {
		return domainerrors.ErrAlreadyVoted
	}
	return domainerrors.ErrNotAuthorized
}

// NextReceiptSequence locks the circuit row so concurrent casts at the same
// circuit allocate strictly increasing sequences.
func (t *gormTx) NextReceiptSequence(ctx context.Context, circuitID int64) (int, error) {
	var circuits []circuitModel
	if err := t.forUpdate(ctx).Where("id = ?", circuitID).Limit(1).Find(&circuits).Error; err != nil {
		return 0, t.repo.logError("polling_repo_lock_circuit_failed", err, "circuit_id", circuitID)
	}
	if len(circuits) == 0 {
		return 0, domainerrors.ErrCircuitNotFound
	}

	var maxSequence int
	if err := t.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("circuit_id = ?", circuitID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSequence).Error; err != nil {
		return 0, t.repo.logError("polling_repo_max_sequence_failed", err, "circuit_id", circuitID)
	}
	return maxSequence + 1, nil
}

func (t *gormTx) InsertBallot(ctx context.Context, ballot entities.Ballot) error {
	row := ballotModelFromEntity(ballot)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return t.repo.logError("polling_repo_insert_ballot_failed", err,
			"circuit_id", ballot.CircuitID,
			"receipt_id", ballot.ReceiptID,
		)
	}
	return nil
}

func (t *gormTx) LockBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var rows []ballotModel
	if err := t.forUpdate(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		Limit(1).
		Find(&rows).Error; err != nil {
		return entities.Ballot{}, t.repo.logError("polling_repo_lock_ballot_failed", err, "ballot_id", ballotID)
	}
	if len(rows) == 0 {
		return entities.Ballot{}, domainerrors.ErrAdjudicationNotFound
	}
	return rows[0].toEntity(), nil
}

func (t *gormTx) ResolveBallot(
	ctx context.Context,
	ballotID string,
	target entities.ValidationState,
	actor string,
	resolvedAt time.Time,
) error {
	result := t.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("id = ? AND validation_state = ?", ballotID, string(entities.ValidationPending)).
		Updates(map[string]any{
			"validation_state": string(target),
			"resolved_by":      actor,
			"resolved_at":      resolvedAt.UTC(),
		})
	if result.Error != nil {
		return t.repo.logError("polling_repo_resolve_ballot_failed", result.Error, "ballot_id", ballotID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyResolved
	}
	return nil
}

func (t *gormTx) ActiveElection(ctx context.Context) (entities.Election, bool, error) {
	election, found, err := loadActiveElection(ctx, t.db)
	if err != nil {
		return entities.Election{}, false, t.repo.logError("polling_repo_get_active_election_failed", err)
	}
	return election, found, nil
}

func (t *gormTx) GetCandidate(ctx context.Context, candidateID int64) (entities.Candidate, bool, error) {
	var rows []candidateModel
	if err := t.db.WithContext(ctx).Where("id = ?", candidateID).Limit(1).Find(&rows).Error; err != nil {
		return entities.Candidate{}, false, t.repo.logError("polling_repo_get_candidate_failed", err,
			"candidate_id", candidateID,
		)
	}
	if len(rows) == 0 {
		return entities.Candidate{}, false, nil
	}
	return rows[0].toEntity(), true, nil
}

// ReplaceElection wipes per-election state and activates a new election
// with its tickets. Establishments, circuits and parties are kept.
func (t *gormTx) ReplaceElection(ctx context.Context, setup entities.ElectionSetup, createdAt time.Time) (entities.Election, error) {
	db := t.db.WithContext(ctx)
	if t.repo.isPostgres() {
		if err := db.Exec("SELECT pg_advisory_xact_lock(?)", electionLockKey).Error; err != nil {
			return entities.Election{}, t.repo.logError("polling_repo_election_lock_failed", err)
		}
	}
	for _, model := range []any{&authorizationModel{}, &ballotModel{}, &candidateModel{}, &registryModel{}} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			return entities.Election{}, t.repo.logError("polling_repo_election_wipe_failed", err)
		}
	}
	if err := db.Model(&electionModel{}).
		Where("active = ?", true).
		Update("active", false).Error; err != nil {
		return entities.Election{}, t.repo.logError("polling_repo_election_deactivate_failed", err)
	}

	election := electionModel{
		Year:      setup.Year,
		Name:      setup.Name,
		Active:    true,
		CreatedAt: createdAt.UTC(),
	}
	if err := db.Create(&election).Error; err != nil {
		return entities.Election{}, t.repo.logError("polling_repo_election_create_failed", err, "year", setup.Year)
	}

	for _, ticket := range setup.Tickets {
		party := partyModel{Name: ticket.PartyName}
		if err := db.Where("name = ?", ticket.PartyName).FirstOrCreate(&party).Error; err != nil {
			return entities.Election{}, t.repo.logError("polling_repo_party_upsert_failed", err,
				"list_number", ticket.ListNumber,
			)
		}
		candidates := []candidateModel{{
			Name:       ticket.Head,
			PartyID:    party.ID,
			ElectionID: election.ID,
			IsHead:     true,
			ListNumber: ticket.ListNumber,
			ListOrder:  1,
		}}
		if ticket.RunningMate != "" {
			candidates = append(candidates, candidateModel{
				Name:       ticket.RunningMate,
				PartyID:    party.ID,
				ElectionID: election.ID,
				ListNumber: ticket.ListNumber,
				ListOrder:  2,
			})
		}
		if err := db.Create(&candidates).Error; err != nil {
			return entities.Election{}, t.repo.logError("polling_repo_candidate_create_failed", err,
				"list_number", ticket.ListNumber,
			)
		}
	}
	return election.toEntity(), nil
}

func (t *gormTx) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return t.repo.logError("polling_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return t.repo.logError("polling_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := t.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return t.repo.logError("polling_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}
