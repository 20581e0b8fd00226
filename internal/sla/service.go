package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/store"
)

// Service owns SLA status lifecycle: intake, re-evaluation, and explicit
// resets. Every level transition persists the new snapshot and emits
// exactly one audit event.
type Service struct {
	store    store.Store
	recorder *audit.Recorder
	calendar Calendar
}

// NewService creates an SLA service.
func NewService(st store.Store, recorder *audit.Recorder, cal Calendar) *Service {
	if cal == nil {
		cal = WeekendOnly{}
	}
	return &Service{store: st, recorder: recorder, calendar: cal}
}

// Intake creates (or idempotently refreshes) the SLA status for a file.
func (s *Service) Intake(ctx context.Context, fileID string, intakeDate time.Time, requiredBusinessDays int, correlationID string) (*model.SLAStatus, error) {
	if fileID == "" {
		return nil, eris.New("sla: file id is required")
	}

	deadline, err := CalculateDeadline(intakeDate, requiredBusinessDays, s.calendar)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	level := DetermineEscalationLevel(deadline, now)
	status := model.SLAStatus{
		FileID:     fileID,
		IntakeDate: intakeDate.UTC(),
		Deadline:   deadline.UTC(),
		Level:      level,
		Breached:   level == model.EscalationBreached,
		UpdatedAt:  now,
	}

	if err := s.store.UpsertSLAStatus(ctx, status); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, correlationID, "sla_intake", fileID, "success",
		fmt.Sprintf("deadline=%s level=%s", deadline.Format(time.RFC3339), level)); err != nil {
		return nil, err
	}
	return &status, nil
}

// Evaluate recomputes the escalation level for one status snapshot and
// applies the monotonic transition rule. Returns the (possibly updated)
// status and whether a transition happened.
func (s *Service) Evaluate(ctx context.Context, st model.SLAStatus, now time.Time, correlationID string) (model.SLAStatus, bool, error) {
	computed := DetermineEscalationLevel(st.Deadline, now)
	next := NextLevel(st.Level, computed)
	if next == st.Level {
		return st, false, nil
	}

	st.Level = next
	st.Breached = next == model.EscalationBreached
	st.UpdatedAt = now.UTC()

	if err := s.store.UpsertSLAStatus(ctx, st); err != nil {
		return st, false, err
	}
	if err := s.recorder.Record(ctx, correlationID, "sla_escalation", st.FileID, "success",
		fmt.Sprintf("level=%s remaining=%s", next, st.Remaining(now).Round(time.Minute))); err != nil {
		return st, true, err
	}

	zap.L().Info("sla: escalation transition",
		zap.String("file_id", st.FileID),
		zap.String("level", next.String()),
		zap.Duration("remaining", st.Remaining(now)),
	)
	return st, true, nil
}

// Reset is the only de-escalation path: it replaces the deadline (e.g.
// after an extension is granted) and recomputes the level from scratch.
func (s *Service) Reset(ctx context.Context, fileID string, newDeadline time.Time, correlationID string) (*model.SLAStatus, error) {
	existing, err := s.store.GetSLAStatus(ctx, fileID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	level := DetermineEscalationLevel(newDeadline, now)
	existing.Deadline = newDeadline.UTC()
	existing.Level = level
	existing.Breached = level == model.EscalationBreached
	existing.UpdatedAt = now

	if err := s.store.UpsertSLAStatus(ctx, *existing); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, correlationID, "sla_reset", fileID, "success",
		fmt.Sprintf("deadline=%s level=%s", newDeadline.Format(time.RFC3339), level)); err != nil {
		return nil, err
	}
	return existing, nil
}

// Status returns the stored snapshot for one file.
func (s *Service) Status(ctx context.Context, fileID string) (*model.SLAStatus, error) {
	return s.store.GetSLAStatus(ctx, fileID)
}

// AtRisk returns snapshots with positive remaining time at or under
// threshold.
func (s *Service) AtRisk(ctx context.Context, threshold time.Duration, now time.Time) ([]model.SLAStatus, error) {
	statuses, err := s.store.ListSLAStatuses(ctx)
	if err != nil {
		return nil, err
	}
	return GetAtRiskCases(statuses, threshold, now), nil
}

// Breached returns snapshots already past their deadline.
func (s *Service) Breached(ctx context.Context, now time.Time) ([]model.SLAStatus, error) {
	statuses, err := s.store.ListSLAStatuses(ctx)
	if err != nil {
		return nil, err
	}
	return GetBreachedCases(statuses, now), nil
}
