package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/complyops/decision-engine/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sla_statuses (
	file_id     TEXT PRIMARY KEY,
	intake_date TIMESTAMPTZ NOT NULL,
	deadline    TIMESTAMPTZ NOT NULL,
	level       TEXT NOT NULL DEFAULT 'none',
	breached    BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS review_cases (
	id          TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	annotations JSONB,
	status      TEXT NOT NULL DEFAULT 'pending',
	reviewer_id TEXT,
	notes       TEXT,
	overrides   JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	decided_at  TIMESTAMPTZ,
	UNIQUE(file_id, reason)
);

CREATE TABLE IF NOT EXISTS person_identities (
	canonical_id TEXT PRIMARY KEY,
	file_id      TEXT NOT NULL,
	identifier   TEXT,
	payload      JSONB NOT NULL,
	state        TEXT NOT NULL DEFAULT 'active',
	confidence   DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unified_records (
	file_id    TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_events (
	id             TEXT PRIMARY KEY,
	actor          TEXT NOT NULL,
	action         TEXT NOT NULL,
	target_id      TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	detail         TEXT,
	ts             TIMESTAMPTZ NOT NULL,
	UNIQUE(correlation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_review_cases_file_id ON review_cases(file_id);
CREATE INDEX IF NOT EXISTS idx_review_cases_status ON review_cases(status);
CREATE INDEX IF NOT EXISTS idx_person_identities_file_id ON person_identities(file_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_correlation ON audit_events(correlation_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertSLAStatus(ctx context.Context, status model.SLAStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sla_statuses (file_id, intake_date, deadline, level, breached, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_id) DO UPDATE SET
			intake_date = EXCLUDED.intake_date,
			deadline    = EXCLUDED.deadline,
			level       = EXCLUDED.level,
			breached    = EXCLUDED.breached,
			updated_at  = EXCLUDED.updated_at`,
		status.FileID, status.IntakeDate.UTC(), status.Deadline.UTC(),
		status.Level.String(), status.Breached, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert sla status %s", status.FileID)
}

func (s *PostgresStore) GetSLAStatus(ctx context.Context, fileID string) (*model.SLAStatus, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT file_id, intake_date, deadline, level, breached, updated_at
		FROM sla_statuses WHERE file_id = $1`, fileID)

	var st model.SLAStatus
	var level string
	err := row.Scan(&st.FileID, &st.IntakeDate, &st.Deadline, &level, &st.Breached, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sla status %s", fileID)
	}
	st.Level = model.ParseEscalationLevel(level)
	return &st, nil
}

func (s *PostgresStore) ListSLAStatuses(ctx context.Context) ([]model.SLAStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_id, intake_date, deadline, level, breached, updated_at
		FROM sla_statuses ORDER BY deadline ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sla statuses")
	}
	defer rows.Close()

	var statuses []model.SLAStatus
	for rows.Next() {
		var st model.SLAStatus
		var level string
		if err := rows.Scan(&st.FileID, &st.IntakeDate, &st.Deadline, &level, &st.Breached, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sla status")
		}
		st.Level = model.ParseEscalationLevel(level)
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "postgres: iterate sla statuses")
}

// CreateReviewCase relies on the (file_id, reason) unique constraint for an
// atomic check-then-create. A losing racer re-reads the winner's row.
func (s *PostgresStore) CreateReviewCase(ctx context.Context, rc model.ReviewCase) (*model.ReviewCase, bool, error) {
	annotations, err := json.Marshal(rc.Annotations)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal annotations")
	}
	overrides, err := json.Marshal(rc.Overrides)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal overrides")
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO review_cases (id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (file_id, reason) DO NOTHING`,
		rc.ID, rc.FileID, string(rc.Reason), annotations, string(rc.Status),
		rc.ReviewerID, rc.Notes, overrides, rc.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert review case %s", rc.ID)
	}
	if tag.RowsAffected() > 0 {
		return &rc, true, nil
	}

	existing, err := s.getReviewCaseByTrigger(ctx, rc.FileID, rc.Reason)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

const reviewCaseColumns = `id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at, decided_at`

func (s *PostgresStore) GetReviewCase(ctx context.Context, caseID string) (*model.ReviewCase, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewCaseColumns+` FROM review_cases WHERE id = $1`, caseID)
	return scanPgReviewCase(row)
}

func (s *PostgresStore) getReviewCaseByTrigger(ctx context.Context, fileID string, reason model.TriggerReason) (*model.ReviewCase, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewCaseColumns+` FROM review_cases WHERE file_id = $1 AND reason = $2`,
		fileID, string(reason))
	return scanPgReviewCase(row)
}

func (s *PostgresStore) UpdateReviewDecision(ctx context.Context, rc model.ReviewCase) error {
	overrides, err := json.Marshal(rc.Overrides)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal overrides")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE review_cases
		SET status = $1, reviewer_id = $2, notes = $3, overrides = $4, decided_at = $5
		WHERE id = $6`,
		string(rc.Status), rc.ReviewerID, rc.Notes, overrides, rc.DecidedAt, rc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update review case %s", rc.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPendingReviewCases(ctx context.Context, limit int) ([]model.ReviewCase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewCaseColumns+` FROM review_cases WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending review cases")
	}
	defer rows.Close()

	var cases []model.ReviewCase
	for rows.Next() {
		rc, err := scanPgReviewCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *rc)
	}
	return cases, eris.Wrap(rows.Err(), "postgres: iterate review cases")
}

func (s *PostgresStore) ListIdentities(ctx context.Context, fileID string) ([]model.PersonIdentity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM person_identities WHERE file_id = $1 ORDER BY created_at ASC`, fileID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list identities %s", fileID)
	}
	defer rows.Close()

	var identities []model.PersonIdentity
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity")
		}
		var p model.PersonIdentity
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal identity")
		}
		identities = append(identities, p)
	}
	return identities, eris.Wrap(rows.Err(), "postgres: iterate identities")
}

func (s *PostgresStore) UpsertIdentity(ctx context.Context, identity model.PersonIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal identity")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO person_identities (canonical_id, file_id, identifier, payload, state, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (canonical_id) DO UPDATE SET
			identifier = EXCLUDED.identifier,
			payload    = EXCLUDED.payload,
			state      = EXCLUDED.state,
			confidence = EXCLUDED.confidence`,
		identity.CanonicalID, identity.FileID, identity.Identifier, payload,
		string(identity.State), identity.Confidence, identity.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert identity %s", identity.CanonicalID)
}

func (s *PostgresStore) SaveUnifiedRecord(ctx context.Context, record model.UnifiedRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unified record")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO unified_records (file_id, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id) DO UPDATE SET
			payload    = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		record.FileID, payload, record.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save unified record %s", record.FileID)
}

func (s *PostgresStore) GetUnifiedRecord(ctx context.Context, fileID string) (*model.UnifiedRecord, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM unified_records WHERE file_id = $1`, fileID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get unified record %s", fileID)
	}
	var record model.UnifiedRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal unified record")
	}
	return &record, nil
}

// AppendAuditEvent assigns the per-correlation sequence number in a single
// statement so concurrent appenders cannot interleave the same seq.
func (s *PostgresStore) AppendAuditEvent(ctx context.Context, event model.AuditEvent) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_events (id, actor, action, target_id, correlation_id, seq, outcome, detail, ts)
		SELECT $1, $2, $3, $4, $5, COALESCE(MAX(seq), 0) + 1, $6, $7, $8
		FROM audit_events WHERE correlation_id = $5
		RETURNING seq`,
		event.ID, event.Actor, event.Action, event.TargetID, event.CorrelationID,
		event.Outcome, event.Detail, event.Timestamp.UTC(),
	).Scan(&seq)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append audit event")
	}
	return seq, nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, correlationID string) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, target_id, correlation_id, seq, outcome, detail, ts
		FROM audit_events WHERE correlation_id = $1 ORDER BY seq ASC`, correlationID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var detail *string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TargetID, &e.CorrelationID,
			&e.Seq, &e.Outcome, &detail, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		if detail != nil {
			e.Detail = *detail
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate audit events")
}

func scanPgReviewCase(row pgx.Row) (*model.ReviewCase, error) {
	var rc model.ReviewCase
	var reason, status string
	var annotations, overrides []byte
	var reviewerID, notes *string
	var decidedAt *time.Time
	err := row.Scan(&rc.ID, &rc.FileID, &reason, &annotations, &status,
		&reviewerID, &notes, &overrides, &rc.CreatedAt, &decidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan review case")
	}

	rc.Reason = model.TriggerReason(reason)
	rc.Status = model.ReviewStatus(status)
	if reviewerID != nil {
		rc.ReviewerID = *reviewerID
	}
	if notes != nil {
		rc.Notes = *notes
	}
	rc.DecidedAt = decidedAt
	if len(annotations) > 0 && string(annotations) != "null" {
		if err := json.Unmarshal(annotations, &rc.Annotations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal annotations")
		}
	}
	if len(overrides) > 0 && string(overrides) != "null" {
		if err := json.Unmarshal(overrides, &rc.Overrides); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal overrides")
		}
	}
	return &rc, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
