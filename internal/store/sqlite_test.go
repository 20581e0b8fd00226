package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SLAStatusRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	_, err := st.GetSLAStatus(ctx, "file-1")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	status := model.SLAStatus{
		FileID:     "file-1",
		IntakeDate: now,
		Deadline:   now.Add(48 * time.Hour),
		Level:      model.EscalationWarning,
		Breached:   false,
		UpdatedAt:  now,
	}
	require.NoError(t, st.UpsertSLAStatus(ctx, status))

	got, err := st.GetSLAStatus(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationWarning, got.Level)
	assert.Equal(t, status.Deadline.Unix(), got.Deadline.Unix())

	// Upsert replaces in place.
	status.Level = model.EscalationBreached
	status.Breached = true
	require.NoError(t, st.UpsertSLAStatus(ctx, status))

	got, err = st.GetSLAStatus(ctx, "file-1")
	require.NoError(t, err)
	assert.True(t, got.Breached)

	list, err := st.ListSLAStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLite_CreateReviewCaseIsIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	rc := model.ReviewCase{
		ID:     uuid.New().String(),
		FileID: "file-1",
		Reason: model.TriggerFieldConflict,
		Annotations: []model.FieldAnnotation{
			{Field: model.FieldCaseNumber, Winner: "EXP-1", Confidence: 0.55, Threshold: 0.8, Gap: 0.25},
		},
		Status:    model.ReviewPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	saved, created, err := st.CreateReviewCase(ctx, rc)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rc.ID, saved.ID)

	// Same (file id, reason) returns the existing case.
	dup := rc
	dup.ID = uuid.New().String()
	saved2, created2, err := st.CreateReviewCase(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, rc.ID, saved2.ID)

	// A different reason for the same file is a new case.
	other := rc
	other.ID = uuid.New().String()
	other.Reason = model.TriggerDirectiveUnknown
	_, created3, err := st.CreateReviewCase(ctx, other)
	require.NoError(t, err)
	assert.True(t, created3)

	pending, err := st.ListPendingReviewCases(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSQLite_ReviewDecisionRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	rc := model.ReviewCase{
		ID: uuid.New().String(), FileID: "file-1", Reason: model.TriggerFieldConflict,
		Status: model.ReviewPending, CreatedAt: time.Now().UTC(),
	}
	_, _, err := st.CreateReviewCase(ctx, rc)
	require.NoError(t, err)

	decided := time.Now().UTC().Truncate(time.Second)
	rc.Status = model.ReviewApproved
	rc.ReviewerID = "rev-1"
	rc.Notes = "verified against the registry"
	rc.Overrides = map[model.FieldKey]string{model.FieldCaseNumber: "EXP-9"}
	rc.DecidedAt = &decided
	require.NoError(t, st.UpdateReviewDecision(ctx, rc))

	got, err := st.GetReviewCase(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.Status)
	assert.Equal(t, "rev-1", got.ReviewerID)
	assert.Equal(t, "EXP-9", got.Overrides[model.FieldCaseNumber])
	require.NotNil(t, got.DecidedAt)

	// Updating a missing case reports not found.
	missing := rc
	missing.ID = uuid.New().String()
	assert.ErrorIs(t, st.UpdateReviewDecision(ctx, missing), ErrNotFound)
}

func TestSQLite_IdentityRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	p := model.PersonIdentity{
		CanonicalID: uuid.New().String(),
		FileID:      "file-1",
		Identifier:  "ID-100",
		Names:       []string{"Juan Perez"},
		Variants: []model.IdentityVariant{
			{Value: "1D-100", Kind: model.VariantNearIdentifier, DocumentID: "d2", Penalty: 0.15},
		},
		Records:    []model.RawPersonRecord{{Name: "Juan Perez", Identifier: "ID-100", DocumentID: "d1"}},
		Confidence: 0.85,
		State:      model.IdentityActive,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.UpsertIdentity(ctx, p))

	// Upsert with the same canonical id replaces the payload.
	p.Confidence = 0.70
	require.NoError(t, st.UpsertIdentity(ctx, p))

	identities, err := st.ListIdentities(ctx, "file-1")
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, 0.70, identities[0].Confidence)
	require.Len(t, identities[0].Variants, 1)
	assert.Equal(t, model.VariantNearIdentifier, identities[0].Variants[0].Kind)
}

func TestSQLite_UnifiedRecordRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	_, err := st.GetUnifiedRecord(ctx, "file-1")
	assert.ErrorIs(t, err, ErrNotFound)

	record := model.UnifiedRecord{
		FileID: "file-1",
		Fields: map[model.FieldKey]model.MergedField{
			model.FieldCaseNumber: {Value: "EXP-1", Present: true, Confidence: 0.9, Agreement: true},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.SaveUnifiedRecord(ctx, record))

	got, err := st.GetUnifiedRecord(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "EXP-1", got.Field(model.FieldCaseNumber).Value)
}

func TestSQLite_AuditEventsOrderedPerCorrelation(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seq, err := st.AppendAuditEvent(ctx, model.AuditEvent{
			ID:            uuid.New().String(),
			Actor:         "engine",
			Action:        "stage_fields_merged",
			TargetID:      "file-1",
			CorrelationID: "file-1",
			Outcome:       "success",
			Timestamp:     time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, seq)
	}

	seq, err := st.AppendAuditEvent(ctx, model.AuditEvent{
		ID:            uuid.New().String(),
		Actor:         "engine",
		Action:        "stage_fields_merged",
		TargetID:      "file-2",
		CorrelationID: "file-2",
		Outcome:       "success",
		Timestamp:     time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	events, err := st.ListAuditEvents(ctx, "file-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Seq)
	}
}
