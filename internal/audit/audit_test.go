package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/model"
)

func TestRecorder_StampsEventFields(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink, "engine")

	err := r.Record(context.Background(), "corr-1", "stage_fields_merged", "file-1", "success", "8 fields")
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "engine", e.Actor)
	assert.Equal(t, "stage_fields_merged", e.Action)
	assert.Equal(t, "file-1", e.TargetID)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, 1, e.Seq)
	assert.False(t, e.Timestamp.IsZero())
}

func TestMemorySink_SequencesPerCorrelation(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := sink.Append(ctx, model.AuditEvent{CorrelationID: "a"})
		require.NoError(t, err)
	}
	seq, err := sink.Append(ctx, model.AuditEvent{CorrelationID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	a := sink.ByCorrelation("a")
	require.Len(t, a, 3)
	for i, e := range a {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestWithActor(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink, "engine")

	require.NoError(t, r.WithActor("reviewer-7").Record(context.Background(), "c", "review_approved", "case-1", "success", ""))
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "reviewer-7", events[0].Actor)
}
