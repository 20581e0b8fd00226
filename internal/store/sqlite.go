package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/complyops/decision-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sla_statuses (
	file_id     TEXT PRIMARY KEY,
	intake_date DATETIME NOT NULL,
	deadline    DATETIME NOT NULL,
	level       TEXT NOT NULL DEFAULT 'none',
	breached    INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS review_cases (
	id          TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	annotations TEXT,
	status      TEXT NOT NULL DEFAULT 'pending',
	reviewer_id TEXT,
	notes       TEXT,
	overrides   TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	decided_at  DATETIME,
	UNIQUE(file_id, reason)
);

CREATE TABLE IF NOT EXISTS person_identities (
	canonical_id TEXT PRIMARY KEY,
	file_id      TEXT NOT NULL,
	identifier   TEXT,
	payload      TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT 'active',
	confidence   REAL NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS unified_records (
	file_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	ts             DATETIME NOT NULL,
	UNIQUE(correlation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_review_cases_file_id ON review_cases(file_id);
CREATE INDEX IF NOT EXISTS idx_review_cases_status ON review_cases(status);
CREATE INDEX IF NOT EXISTS idx_person_identities_file_id ON person_identities(file_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_correlation ON audit_events(correlation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSLAStatus(ctx context.Context, status model.SLAStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sla_statuses (file_id, intake_date, deadline, level, breached, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			intake_date = excluded.intake_date,
			deadline    = excluded.deadline,
			level       = excluded.level,
			breached    = excluded.breached,
			updated_at  = excluded.updated_at`,
		status.FileID, status.IntakeDate.UTC(), status.Deadline.UTC(),
		status.Level.String(), boolToInt(status.Breached), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert sla status %s", status.FileID)
}

func (s *SQLiteStore) GetSLAStatus(ctx context.Context, fileID string) (*model.SLAStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_id, intake_date, deadline, level, breached, updated_at
		FROM sla_statuses WHERE file_id = ?`, fileID)
	return scanSLAStatus(row)
}

func (s *SQLiteStore) ListSLAStatuses(ctx context.Context) ([]model.SLAStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, intake_date, deadline, level, breached, updated_at
		FROM sla_statuses ORDER BY deadline ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sla statuses")
	}
	defer rows.Close()

	var statuses []model.SLAStatus
	for rows.Next() {
		st, err := scanSLAStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *st)
	}
	return statuses, eris.Wrap(rows.Err(), "sqlite: iterate sla statuses")
}

// CreateReviewCase inserts the case unless one already exists for the same
// (file id, trigger reason). The UNIQUE constraint makes the check-then-create
// atomic; a losing racer re-reads and returns the winner's case.
func (s *SQLiteStore) CreateReviewCase(ctx context.Context, rc model.ReviewCase) (*model.ReviewCase, bool, error) {
	annotations, err := json.Marshal(rc.Annotations)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal annotations")
	}
	overrides, err := json.Marshal(rc.Overrides)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal overrides")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO review_cases (id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, reason) DO NOTHING`,
		rc.ID, rc.FileID, string(rc.Reason), string(annotations), string(rc.Status),
		rc.ReviewerID, rc.Notes, string(overrides), rc.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert review case %s", rc.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}
	if affected > 0 {
		return &rc, true, nil
	}

	existing, err := s.getReviewCaseByTrigger(ctx, rc.FileID, rc.Reason)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *SQLiteStore) GetReviewCase(ctx context.Context, caseID string) (*model.ReviewCase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at, decided_at
		FROM review_cases WHERE id = ?`, caseID)
	return scanReviewCase(row)
}

func (s *SQLiteStore) getReviewCaseByTrigger(ctx context.Context, fileID string, reason model.TriggerReason) (*model.ReviewCase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at, decided_at
		FROM review_cases WHERE file_id = ? AND reason = ?`, fileID, string(reason))
	return scanReviewCase(row)
}

func (s *SQLiteStore) UpdateReviewDecision(ctx context.Context, rc model.ReviewCase) error {
	overrides, err := json.Marshal(rc.Overrides)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal overrides")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_cases
		SET status = ?, reviewer_id = ?, notes = ?, overrides = ?, decided_at = ?
		WHERE id = ?`,
		string(rc.Status), rc.ReviewerID, rc.Notes, string(overrides), rc.DecidedAt, rc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update review case %s", rc.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListPendingReviewCases(ctx context.Context, limit int) ([]model.ReviewCase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, reason, annotations, status, reviewer_id, notes, overrides, created_at, decided_at
		FROM review_cases WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending review cases")
	}
	defer rows.Close()

	var cases []model.ReviewCase
	for rows.Next() {
		rc, err := scanReviewCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *rc)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: iterate review cases")
}

func (s *SQLiteStore) ListIdentities(ctx context.Context, fileID string) ([]model.PersonIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM person_identities WHERE file_id = ? ORDER BY created_at ASC`, fileID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list identities %s", fileID)
	}
	defer rows.Close()

	var identities []model.PersonIdentity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		var p model.PersonIdentity
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal identity")
		}
		identities = append(identities, p)
	}
	return identities, eris.Wrap(rows.Err(), "sqlite: iterate identities")
}

func (s *SQLiteStore) UpsertIdentity(ctx context.Context, identity model.PersonIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal identity")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO person_identities (canonical_id, file_id, identifier, payload, state, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_id) DO UPDATE SET
			identifier = excluded.identifier,
			payload    = excluded.payload,
			state      = excluded.state,
			confidence = excluded.confidence`,
		identity.CanonicalID, identity.FileID, identity.Identifier, string(payload),
		string(identity.State), identity.Confidence, identity.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert identity %s", identity.CanonicalID)
}

func (s *SQLiteStore) SaveUnifiedRecord(ctx context.Context, record model.UnifiedRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unified record")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO unified_records (file_id, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			payload    = excluded.payload,
			created_at = excluded.created_at`,
		record.FileID, string(payload), record.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save unified record %s", record.FileID)
}

func (s *SQLiteStore) GetUnifiedRecord(ctx context.Context, fileID string) (*model.UnifiedRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM unified_records WHERE file_id = ?`, fileID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get unified record %s", fileID)
	}
	var record model.UnifiedRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal unified record")
	}
	return &record, nil
}

// AppendAuditEvent assigns the next per-correlation sequence number inside
// a transaction, so events for a case stay strictly ordered.
func (s *SQLiteStore) AppendAuditEvent(ctx context.Context, event model.AuditEvent) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin audit tx")
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_events WHERE correlation_id = ?`,
		event.CorrelationID,
	).Scan(&seq)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next audit seq")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, action, target_id, correlation_id, seq, outcome, detail, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Actor, event.Action, event.TargetID, event.CorrelationID,
		seq, event.Outcome, event.Detail, event.Timestamp.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert audit event")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit audit tx")
	}
	return seq, nil
}

func (s *SQLiteStore) ListAuditEvents(ctx context.Context, correlationID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, target_id, correlation_id, seq, outcome, detail, ts
		FROM audit_events WHERE correlation_id = ? ORDER BY seq ASC`, correlationID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TargetID, &e.CorrelationID,
			&e.Seq, &e.Outcome, &detail, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate audit events")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSLAStatus(row rowScanner) (*model.SLAStatus, error) {
	var st model.SLAStatus
	var level string
	var breached int
	err := row.Scan(&st.FileID, &st.IntakeDate, &st.Deadline, &level, &breached, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan sla status")
	}
	st.Level = model.ParseEscalationLevel(level)
	st.Breached = breached != 0
	return &st, nil
}

func scanReviewCase(row rowScanner) (*model.ReviewCase, error) {
	var rc model.ReviewCase
	var reason, status string
	var annotations, overrides, reviewerID, notes sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(&rc.ID, &rc.FileID, &reason, &annotations, &status,
		&reviewerID, &notes, &overrides, &rc.CreatedAt, &decidedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan review case")
	}

	rc.Reason = model.TriggerReason(reason)
	rc.Status = model.ReviewStatus(status)
	rc.ReviewerID = reviewerID.String
	rc.Notes = notes.String
	if decidedAt.Valid {
		t := decidedAt.Time
		rc.DecidedAt = &t
	}
	if annotations.Valid && annotations.String != "" && annotations.String != "null" {
		if err := json.Unmarshal([]byte(annotations.String), &rc.Annotations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal annotations")
		}
	}
	if overrides.Valid && overrides.String != "" && overrides.String != "null" {
		if err := json.Unmarshal([]byte(overrides.String), &rc.Overrides); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal overrides")
		}
	}
	return &rc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
