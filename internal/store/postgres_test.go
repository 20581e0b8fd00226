package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/model"
)

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock treats an expectation
// without WithArgs as expecting zero arguments, so unchecked args must be
// matched explicitly.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_GetSLAStatus(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT file_id, intake_date, deadline, level, breached, updated_at`).
		WithArgs("file-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"file_id", "intake_date", "deadline", "level", "breached", "updated_at"},
		).AddRow("file-1", now, now.Add(48*time.Hour), "warning", false, now))

	got, err := st.GetSLAStatus(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationWarning, got.Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSLAStatus_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT file_id, intake_date, deadline, level, breached, updated_at`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(
			[]string{"file_id", "intake_date", "deadline", "level", "breached", "updated_at"},
		))

	_, err := st.GetSLAStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateReviewCase_ConflictReturnsExisting(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	rc := model.ReviewCase{
		ID: "new-id", FileID: "file-1", Reason: model.TriggerFieldConflict,
		Status: model.ReviewPending, CreatedAt: now,
	}

	// Insert hits the unique constraint and affects no rows.
	mock.ExpectExec(`INSERT INTO review_cases`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	// The existing winner's row is read back instead.
	mock.ExpectQuery(`SELECT id, file_id, reason, annotations, status`).
		WithArgs("file-1", string(model.TriggerFieldConflict)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "file_id", "reason", "annotations", "status", "reviewer_id", "notes", "overrides", "created_at", "decided_at"},
		).AddRow("existing-id", "file-1", string(model.TriggerFieldConflict),
			[]byte(`[]`), "pending", (*string)(nil), (*string)(nil), []byte(`null`), now, (*time.Time)(nil)))

	saved, created, err := st.CreateReviewCase(context.Background(), rc)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing-id", saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateReviewDecision_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE review_cases`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateReviewDecision(context.Background(), model.ReviewCase{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendAuditEvent_ReturnsAssignedSeq(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO audit_events`).
		WithArgs(anyArgs(8)...).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(4))

	seq, err := st.AppendAuditEvent(context.Background(), model.AuditEvent{
		ID: "e1", Actor: "engine", Action: "stage_fields_merged",
		TargetID: "file-1", CorrelationID: "file-1", Outcome: "success",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
