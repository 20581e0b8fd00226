package sla

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *audit.MemorySink) {
	t.Helper()
	st := store.NewMemory()
	sink := audit.NewMemorySink()
	svc := NewService(st, audit.NewRecorder(sink, "test"), WeekendOnly{})
	return svc, st, sink
}

func TestIntake_PersistsStatusAndAudits(t *testing.T) {
	svc, st, sink := newTestService(t)

	intake := time.Now().UTC()
	status, err := svc.Intake(context.Background(), "file-1", intake, 5, "file-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationNone, status.Level)
	assert.True(t, status.Deadline.After(intake))

	stored, err := st.GetSLAStatus(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, status.Deadline, stored.Deadline)

	events := sink.ByCorrelation("file-1")
	require.Len(t, events, 1)
	assert.Equal(t, "sla_intake", events[0].Action)
}

func TestIntake_RequiresFileID(t *testing.T) {
	svc, _, sink := newTestService(t)

	_, err := svc.Intake(context.Background(), "", time.Now(), 5, "corr")
	assert.Error(t, err)
	assert.Empty(t, sink.Events())
}

func TestEvaluate_TransitionEmitsOneAuditEvent(t *testing.T) {
	svc, _, sink := newTestService(t)

	now := time.Now().UTC()
	st := model.SLAStatus{
		FileID:   "file-1",
		Deadline: now.Add(2 * time.Hour),
		Level:    model.EscalationWarning,
	}

	updated, changed, err := svc.Evaluate(context.Background(), st, now, "file-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.EscalationCritical, updated.Level)

	events := sink.ByCorrelation("file-1")
	require.Len(t, events, 1)
	assert.Equal(t, "sla_escalation", events[0].Action)
}

func TestEvaluate_NoTransitionIsSilent(t *testing.T) {
	svc, _, sink := newTestService(t)

	now := time.Now().UTC()
	st := model.SLAStatus{
		FileID:   "file-1",
		Deadline: now.Add(72 * time.Hour),
		Level:    model.EscalationNone,
	}

	_, changed, err := svc.Evaluate(context.Background(), st, now, "file-1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, sink.Events())
}

func TestEvaluate_NeverDeEscalates(t *testing.T) {
	svc, _, _ := newTestService(t)

	now := time.Now().UTC()
	st := model.SLAStatus{
		FileID:   "file-1",
		Deadline: now.Add(72 * time.Hour),
		Level:    model.EscalationCritical,
	}

	updated, changed, err := svc.Evaluate(context.Background(), st, now, "file-1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.EscalationCritical, updated.Level)
}

func TestReset_IsTheOnlyDeEscalationPath(t *testing.T) {
	svc, st, sink := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID:   "file-1",
		Deadline: now.Add(-time.Hour),
		Level:    model.EscalationBreached,
		Breached: true,
	}))

	status, err := svc.Reset(ctx, "file-1", now.Add(7*24*time.Hour), "file-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationNone, status.Level)
	assert.False(t, status.Breached)

	events := sink.ByCorrelation("file-1")
	require.Len(t, events, 1)
	assert.Equal(t, "sla_reset", events[0].Action)
}

func TestChecker_CheckOnceAppliesTransitions(t *testing.T) {
	svc, st, sink := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID: "warm", Deadline: now.Add(12 * time.Hour), Level: model.EscalationNone,
	}))
	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID: "calm", Deadline: now.Add(96 * time.Hour), Level: model.EscalationNone,
	}))
	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID: "gone", Deadline: now.Add(-time.Hour), Level: model.EscalationBreached, Breached: true,
	}))

	checker := NewChecker(svc, st, CheckerConfig{EvaluationsPerSecond: 1000})
	transitions := checker.CheckOnce(ctx, now)
	assert.Equal(t, 1, transitions)

	warm, err := st.GetSLAStatus(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationWarning, warm.Level)

	events := sink.ByCorrelation("warm")
	require.Len(t, events, 1)

	// A second pass with the same clock is a no-op.
	assert.Zero(t, checker.CheckOnce(ctx, now))
}
