// Package review decides when a file needs a human in the loop, opens
// review cases idempotently, and applies reviewer verdicts.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/outcome"
	"github.com/complyops/decision-engine/internal/store"
)

// Config holds the auto-resolution thresholds. A field or identity below
// its threshold routes the file to manual review instead of failing.
type Config struct {
	// FieldConfidenceThreshold: a conflicted field below this confidence
	// triggers a field_conflict case. Default 0.80.
	FieldConfidenceThreshold float64
	// IdentityConfidenceThreshold: an identity resolution below this
	// confidence triggers an identity_confidence case. Default 0.70.
	IdentityConfidenceThreshold float64
}

func (c Config) withDefaults() Config {
	if c.FieldConfidenceThreshold <= 0 {
		c.FieldConfidenceThreshold = 0.80
	}
	if c.IdentityConfidenceThreshold <= 0 {
		c.IdentityConfidenceThreshold = 0.70
	}
	return c
}

// Router owns the manual-review gate.
type Router struct {
	store    store.Store
	recorder *audit.Recorder
	cfg      Config
}

// NewRouter creates a review router with defaulted thresholds.
func NewRouter(st store.Store, recorder *audit.Recorder, cfg Config) *Router {
	return &Router{store: st, recorder: recorder, cfg: cfg.withDefaults()}
}

// Triggers evaluates the four gate conditions against one processing pass.
// The returned order is stable: field conflicts, identity confidence,
// unknown directive, escalation conflict.
func (r *Router) Triggers(record *model.UnifiedRecord, identity model.IdentityResult, directive model.LegalDirective, sla *model.SLAStatus) []model.TriggerReason {
	var reasons []model.TriggerReason

	conflicted := len(r.conflictedFields(record)) > 0
	if conflicted {
		reasons = append(reasons, model.TriggerFieldConflict)
	}
	if len(identity.Identities) > 0 && (identity.Partial || identity.Confidence < r.cfg.IdentityConfidenceThreshold) {
		reasons = append(reasons, model.TriggerIdentityConfidence)
	}
	if directive.Unclassified() {
		reasons = append(reasons, model.TriggerDirectiveUnknown)
	}
	// An escalated deadline over still-contested field data is its own
	// trigger: the reviewer queue must surface urgency on the conflict.
	if sla != nil && sla.Level >= model.EscalationCritical && conflicted {
		reasons = append(reasons, model.TriggerEscalationConflict)
	}
	return reasons
}

// conflictedFields returns the merged fields that disagreed across sources
// and landed below the auto-resolution threshold.
func (r *Router) conflictedFields(record *model.UnifiedRecord) []model.FieldAnnotation {
	if record == nil {
		return nil
	}
	var out []model.FieldAnnotation
	for _, key := range model.KnownFieldKeys {
		f := record.Field(key)
		if !f.Present || f.Agreement || f.Confidence >= r.cfg.FieldConfidenceThreshold {
			continue
		}
		ann := model.FieldAnnotation{
			Field:      key,
			Winner:     f.Value,
			Confidence: f.Confidence,
			Threshold:  r.cfg.FieldConfidenceThreshold,
			Gap:        r.cfg.FieldConfidenceThreshold - f.Confidence,
		}
		for _, c := range f.Conflicts {
			ann.Competing = append(ann.Competing, c.Value)
		}
		out = append(out, ann)
	}
	return out
}

// Route opens one review case per trigger reason. Creation is idempotent on
// (file id, reason): re-routing the same file returns the existing cases
// without duplicating them or their audit events.
func (r *Router) Route(ctx context.Context, fileID string, record *model.UnifiedRecord, identity model.IdentityResult, directive model.LegalDirective, sla *model.SLAStatus, correlationID string) ([]model.ReviewCase, error) {
	reasons := r.Triggers(record, identity, directive, sla)
	if len(reasons) == 0 {
		return nil, nil
	}

	annotations := r.conflictedFields(record)
	cases := make([]model.ReviewCase, 0, len(reasons))
	for _, reason := range reasons {
		rc := model.ReviewCase{
			ID:        uuid.New().String(),
			FileID:    fileID,
			Reason:    reason,
			Status:    model.ReviewPending,
			CreatedAt: time.Now().UTC(),
		}
		if reason == model.TriggerFieldConflict {
			rc.Annotations = annotations
		}

		saved, created, err := r.store.CreateReviewCase(ctx, rc)
		if err != nil {
			return cases, eris.Wrapf(err, "review: create case for %s/%s", fileID, reason)
		}
		cases = append(cases, *saved)

		if !created {
			continue
		}
		if err := r.recorder.Record(ctx, correlationID, "review_case_opened", saved.ID, "success",
			fmt.Sprintf("file_id=%s reason=%s", fileID, reason)); err != nil {
			return cases, err
		}
		zap.L().Info("review: case opened",
			zap.String("file_id", fileID),
			zap.String("case_id", saved.ID),
			zap.String("reason", string(reason)),
		)
	}
	return cases, nil
}

// DecisionRequest is a reviewer verdict on one pending case.
type DecisionRequest struct {
	CaseID     string               `json:"case_id"`
	Decision   model.ReviewDecision `json:"decision"`
	ReviewerID string               `json:"reviewer_id"`
	// Notes carries the rationale. Required for rejections.
	Notes string `json:"notes,omitempty"`
	// Overrides are reviewer-supplied field values, applied to the unified
	// record only on approval.
	Overrides map[model.FieldKey]string `json:"overrides,omitempty"`
}

// ProcessDecision validates and applies a reviewer verdict. All validation
// happens before any mutation: a rejected request leaves both the case and
// the unified record untouched and emits no audit event. A valid decision
// emits exactly one, correlated on the case's file id.
func (r *Router) ProcessDecision(ctx context.Context, req DecisionRequest) outcome.Outcome[model.ReviewCase] {
	if req.CaseID == "" {
		return outcome.Validation[model.ReviewCase]("case id is required")
	}
	if req.ReviewerID == "" {
		return outcome.Validation[model.ReviewCase]("reviewer id is required")
	}
	switch req.Decision {
	case model.DecisionApprove, model.DecisionReject:
	default:
		return outcome.Validation[model.ReviewCase](fmt.Sprintf("unknown decision %q", req.Decision))
	}
	if req.Decision == model.DecisionReject && req.Notes == "" {
		return outcome.Validation[model.ReviewCase]("rejection requires a rationale")
	}
	for key := range req.Overrides {
		if !key.Valid() {
			return outcome.Validation[model.ReviewCase](fmt.Sprintf("unknown override field %q", key))
		}
	}

	rc, err := r.store.GetReviewCase(ctx, req.CaseID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return outcome.Fail[model.ReviewCase](outcome.FailNotFound,
				fmt.Sprintf("review case %s not found", req.CaseID), err)
		}
		return outcome.FromErr[model.ReviewCase](err, "load review case")
	}
	if rc.Status != model.ReviewPending {
		return outcome.Fail[model.ReviewCase](outcome.FailConflict,
			fmt.Sprintf("review case %s already %s", rc.ID, rc.Status), nil)
	}

	now := time.Now().UTC()
	rc.ReviewerID = req.ReviewerID
	rc.Notes = req.Notes
	rc.DecidedAt = &now

	action := "review_rejected"
	if req.Decision == model.DecisionApprove {
		action = "review_approved"
		rc.Status = model.ReviewApproved
		rc.Overrides = req.Overrides
		if len(req.Overrides) > 0 {
			if err := r.applyOverrides(ctx, rc.FileID, req.ReviewerID, req.Overrides); err != nil {
				return outcome.FromErr[model.ReviewCase](err, "apply field overrides")
			}
		}
	} else {
		rc.Status = model.ReviewRejected
	}

	if err := r.store.UpdateReviewDecision(ctx, *rc); err != nil {
		return outcome.FromErr[model.ReviewCase](err, "persist review decision")
	}
	if err := r.recorder.WithActor(req.ReviewerID).Record(ctx, rc.FileID, action, rc.ID, "success",
		fmt.Sprintf("file_id=%s reason=%s overrides=%d", rc.FileID, rc.Reason, len(req.Overrides))); err != nil {
		return outcome.FromErr[model.ReviewCase](err, "record review decision")
	}
	return outcome.OK(*rc)
}

// applyOverrides writes reviewer-chosen values into the unified record at
// full confidence, with the manual source winning over every extraction.
func (r *Router) applyOverrides(ctx context.Context, fileID, reviewerID string, overrides map[model.FieldKey]string) error {
	record, err := r.store.GetUnifiedRecord(ctx, fileID)
	if err != nil {
		return eris.Wrapf(err, "review: load unified record %s", fileID)
	}
	if record.Fields == nil {
		record.Fields = make(map[model.FieldKey]model.MergedField)
	}
	for key, value := range overrides {
		record.Fields[key] = model.MergedField{
			Value:      value,
			Present:    true,
			Confidence: 1.0,
			Agreement:  true,
			Sources:    []model.SourceType{model.SourceManual},
		}
	}
	if err := r.store.SaveUnifiedRecord(ctx, *record); err != nil {
		return eris.Wrapf(err, "review: save unified record %s", fileID)
	}
	zap.L().Info("review: overrides applied",
		zap.String("file_id", fileID),
		zap.String("reviewer_id", reviewerID),
		zap.Int("fields", len(overrides)),
	)
	return nil
}

// Pending lists open review cases, oldest first.
func (r *Router) Pending(ctx context.Context, limit int) ([]model.ReviewCase, error) {
	return r.store.ListPendingReviewCases(ctx, limit)
}
