package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"urna/contexts/electoral-core/polling-station/domain/entities"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	"urna/contexts/electoral-core/polling-station/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Repository is the gorm-backed store. Row locks and lock_timeout are only
// issued on PostgreSQL; SQLite serializes writers on its own.
type Repository struct {
	db          *gorm.DB
	logger      *slog.Logger
	lockTimeout time.Duration
}

func NewRepository(db *gorm.DB, logger *slog.Logger, lockTimeout time.Duration) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:          db,
		logger:      logger,
		lockTimeout: lockTimeout,
	}
}

func (r *Repository) isPostgres() bool {
	return r.db.Dialector.Name() == "postgres"
}

// WithinTx runs fn in one database transaction. Lock waits are bounded by
// the configured timeout and surface as ErrTransient.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.isPostgres() && r.lockTimeout > 0 {
			// SET does not accept bind parameters.
			statement := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(statement).Error; err != nil {
				return r.logError("polling_repo_set_lock_timeout_failed", err)
			}
		}
		return fn(ctx, &gormTx{db: tx, repo: r})
	})
	return classifyTxError(err)
}

func (r *Repository) GetCircuitByNumber(ctx context.Context, number string) (entities.Circuit, bool, error) {
	return findCircuitByNumber(ctx, r.db, r, number)
}

func (r *Repository) GetCircuitRef(ctx context.Context, circuitID int64) (entities.CircuitRef, error) {
	ref, found, err := loadCircuitRef(ctx, r.db, circuitID)
	if err != nil {
		return entities.CircuitRef{}, r.logError("polling_repo_get_circuit_ref_failed", err, "circuit_id", circuitID)
	}
	if !found {
		return entities.CircuitRef{}, domainerrors.ErrCircuitNotFound
	}
	return ref, nil
}

func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	var departments []string
	if err := r.db.WithContext(ctx).
		Table("establishments AS e").
		Joins("JOIN circuits c ON c.establishment_id = e.id").
		Where("e.department <> ''").
		Order("e.department ASC").
		Distinct().
		Pluck("e.department", &departments).Error; err != nil {
		return nil, r.logError("polling_repo_list_departments_failed", err)
	}
	return departments, nil
}

func (r *Repository) SearchCircuits(ctx context.Context, term string, limit int) ([]entities.CircuitRef, error) {
	query := r.db.WithContext(ctx).
		Table("circuits AS c").
		Select("c.id AS circuit_id, c.number AS number, e.name AS establishment_name, e.department AS department, e.address AS address").
		Joins("JOIN establishments e ON e.id = c.establishment_id")
	if term = strings.TrimSpace(term); term != "" {
		query = query.Where("c.number LIKE ? ESCAPE '\\'", "%"+likeEscaper.Replace(term)+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []circuitRefRow
	if err := query.
		Order("LENGTH(c.number) ASC").
		Order("c.number ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_search_circuits_failed", err, "term", term)
	}
	items := make([]entities.CircuitRef, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetAuthorization(ctx context.Context, credential string) (entities.AuthorizationRecord, bool, error) {
	var row authorizationModel
	err := r.db.WithContext(ctx).
		Where("credential = ?", strings.TrimSpace(credential)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AuthorizationRecord{}, false, nil
		}
		return entities.AuthorizationRecord{}, false, r.logError("polling_repo_get_authorization_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListAuthorizationsByCircuit(ctx context.Context, circuitID int64) ([]entities.AuthorizationRecord, error) {
	var rows []authorizationModel
	if err := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Order("authorized_at ASC").
		Order("credential ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_authorizations_failed", err, "circuit_id", circuitID)
	}
	items := make([]entities.AuthorizationRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListRegistryByCircuit(ctx context.Context, circuitID int64) ([]entities.CredentialRegistryEntry, error) {
	var rows []registryModel
	if err := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Order("credential ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_registry_failed", err, "circuit_id", circuitID)
	}
	items := make([]entities.CredentialRegistryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrAdjudicationNotFound
		}
		return entities.Ballot{}, r.logError("polling_repo_get_ballot_failed", err, "ballot_id", strings.TrimSpace(ballotID))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPendingObserved(ctx context.Context, circuitID int64) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("circuit_id = ?", circuitID).
		Where("observed = ?", true).
		Where("validation_state = ?", string(entities.ValidationPending)).
		Order("cast_at ASC").
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_pending_observed_failed", err, "circuit_id", circuitID)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetActiveElection(ctx context.Context) (entities.Election, bool, error) {
	election, found, err := loadActiveElection(ctx, r.db)
	if err != nil {
		return entities.Election{}, false, r.logError("polling_repo_get_active_election_failed", err)
	}
	return election, found, nil
}

func (r *Repository) GetElection(ctx context.Context, electionID int64) (entities.Election, bool, error) {
	var row electionModel
	err := r.db.WithContext(ctx).Where("id = ?", electionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, false, nil
		}
		return entities.Election{}, false, r.logError("polling_repo_get_election_failed", err, "election_id", electionID)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListHeadCandidates(ctx context.Context, electionID int64) ([]entities.HeadCandidate, error) {
	var rows []headCandidateRow
	if err := r.db.WithContext(ctx).
		Table("candidates AS c").
		Select("c.id AS candidate_id, c.name AS name, p.name AS party_name, c.list_number AS list_number").
		Joins("JOIN parties p ON p.id = c.party_id").
		Where("c.election_id = ?", electionID).
		Where("c.is_head = ?", true).
		Order("c.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_head_candidates_failed", err, "election_id", electionID)
	}
	items := make([]entities.HeadCandidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.HeadCandidate{
			CandidateID: row.CandidateID,
			Name:        row.Name,
			PartyName:   row.PartyName,
			ListNumber:  row.ListNumber,
		})
	}
	return items, nil
}

func (r *Repository) ListCandidates(ctx context.Context, electionID int64) ([]entities.CandidateListing, error) {
	var rows []candidateListingRow
	if err := r.db.WithContext(ctx).
		Table("candidates AS c").
		Select("c.*, p.name AS party_name").
		Joins("JOIN parties p ON p.id = c.party_id").
		Where("c.election_id = ?", electionID).
		Order("c.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_candidates_failed", err, "election_id", electionID)
	}
	items := make([]entities.CandidateListing, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CountBallots groups matching ballots by outcome in one query and folds the
// groups into counters.
func (r *Repository) CountBallots(ctx context.Context, filter entities.BallotFilter) (entities.BallotCounts, error) {
	query := r.db.WithContext(ctx).
		Table("ballots AS b").
		Select("b.candidate_id AS candidate_id, b.nullified AS nullified, b.observed AS observed, b.validation_state AS validation_state, COUNT(*) AS total")
	if filter.ElectionID > 0 {
		query = query.Where("b.election_id = ?", filter.ElectionID)
	}
	if filter.CircuitID > 0 {
		query = query.Where("b.circuit_id = ?", filter.CircuitID)
	}
	if department := strings.TrimSpace(filter.Department); department != "" {
		query = query.
			Joins("JOIN circuits c ON c.id = b.circuit_id").
			Joins("JOIN establishments e ON e.id = c.establishment_id").
			Where("e.department = ?", department)
	}
	if !filter.CastSince.IsZero() {
		query = query.Where("b.cast_at >= ?", filter.CastSince.UTC())
	}

	var rows []ballotCountRow
	if err := query.
		Group("b.candidate_id, b.nullified, b.observed, b.validation_state").
		Scan(&rows).Error; err != nil {
		return entities.BallotCounts{}, r.logError("polling_repo_count_ballots_failed", err,
			"election_id", filter.ElectionID,
			"circuit_id", filter.CircuitID,
		)
	}

	counts := entities.BallotCounts{ApprovedByCandidate: make(map[int64]int)}
	for _, row := range rows {
		switch entities.ValidationState(row.ValidationState) {
		case entities.ValidationApproved:
			switch {
			case row.Nullified:
				counts.ApprovedNullified += row.Total
			case row.CandidateID == nil:
				counts.ApprovedBlank += row.Total
			default:
				counts.ApprovedByCandidate[*row.CandidateID] += row.Total
			}
		case entities.ValidationPending:
			if row.Observed {
				counts.PendingObserved += row.Total
			}
		}
	}
	return counts, nil
}

func (r *Repository) CountAuthorizations(ctx context.Context, scope entities.AuthorizationScope) (int, error) {
	query := r.db.WithContext(ctx).Table("authorizations AS a")
	if scope.CircuitID > 0 {
		query = query.Where("a.circuit_id = ?", scope.CircuitID)
	}
	if department := strings.TrimSpace(scope.Department); department != "" {
		query = query.
			Joins("JOIN circuits c ON c.id = a.circuit_id").
			Joins("JOIN establishments e ON e.id = c.establishment_id").
			Where("e.department = ?", department)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, r.logError("polling_repo_count_authorizations_failed", err,
			"circuit_id", scope.CircuitID,
			"department", scope.Department,
		)
	}
	return int(total), nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("polling_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("polling_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("polling_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).Error; err != nil {
		return r.logError("polling_repo_release_event_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	return nil
}

func (r *Repository) AppendAudit(ctx context.Context, entry entities.AuditEntry) error {
	row := auditModel{
		EntryID:    entry.EntryID,
		EventID:    entry.EventID,
		EventType:  entry.EventType,
		BallotID:   entry.BallotID,
		ReceiptID:  entry.ReceiptID,
		CircuitID:  entry.CircuitID,
		Detail:     entry.Detail,
		OccurredAt: entry.OccurredAt.UTC(),
		RecordedAt: entry.RecordedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return r.logError("polling_repo_append_audit_failed", err,
			"event_id", entry.EventID,
			"ballot_id", entry.BallotID,
		)
	}
	return nil
}

func (r *Repository) ListAudit(ctx context.Context) ([]entities.AuditEntry, error) {
	var rows []auditModel
	if err := r.db.WithContext(ctx).
		Order("recorded_at ASC").
		Order("entry_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("polling_repo_list_audit_failed", err)
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "electoral-core/polling-station",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("polling repository operation failed", fields...)
	return err
}

func findCircuitByNumber(ctx context.Context, db *gorm.DB, r *Repository, number string) (entities.Circuit, bool, error) {
	var row circuitModel
	err := db.WithContext(ctx).
		Where("number = ?", strings.TrimSpace(number)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Circuit{}, false, nil
		}
		return entities.Circuit{}, false, r.logError("polling_repo_get_circuit_by_number_failed", err,
			"circuit_number", strings.TrimSpace(number),
		)
	}
	return row.toEntity(), true, nil
}

func loadCircuitRef(ctx context.Context, db *gorm.DB, circuitID int64) (entities.CircuitRef, bool, error) {
	var rows []circuitRefRow
	err := db.WithContext(ctx).
		Table("circuits AS c").
		Select("c.id AS circuit_id, c.number AS number, e.name AS establishment_name, e.department AS department, e.address AS address").
		Joins("JOIN establishments e ON e.id = c.establishment_id").
		Where("c.id = ?", circuitID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return entities.CircuitRef{}, false, err
	}
	if len(rows) == 0 {
		return entities.CircuitRef{}, false, nil
	}
	return rows[0].toEntity(), true, nil
}

func loadActiveElection(ctx context.Context, db *gorm.DB) (entities.Election, bool, error) {
	var row electionModel
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, false, nil
		}
		return entities.Election{}, false, err
	}
	return row.toEntity(), true, nil
}

var _ ports.UnitOfWork = (*Repository)(nil)
var _ ports.Repository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
var _ ports.AuditLog = (*Repository)(nil)
