// Package engine orchestrates the decision pipeline for one regulatory
// file: merge extracted fields, resolve person identities, classify the
// legal directive, evaluate the response deadline, and route to manual
// review when confidence falls short.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/directive"
	"github.com/complyops/decision-engine/internal/identity"
	"github.com/complyops/decision-engine/internal/merge"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/outcome"
	"github.com/complyops/decision-engine/internal/review"
	"github.com/complyops/decision-engine/internal/sla"
	"github.com/complyops/decision-engine/internal/store"
)

// Config holds the orchestrator's tunables alongside the per-stage configs.
type Config struct {
	Merge    merge.Config
	Identity identity.Config
	Review   review.Config
	// DefaultResponseDays applies when no due-days field survives the
	// merge. Default 10 business days.
	DefaultResponseDays int
	// AtRiskThreshold bounds the GetAtRiskCases window. Default 24h.
	AtRiskThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultResponseDays <= 0 {
		c.DefaultResponseDays = 10
	}
	if c.AtRiskThreshold <= 0 {
		c.AtRiskThreshold = 24 * time.Hour
	}
	return c
}

// Input is one processing request: everything extraction produced for a file.
type Input struct {
	FileID        string                  `json:"file_id"`
	Candidates    []model.FieldCandidate  `json:"candidates"`
	PersonRecords []model.RawPersonRecord `json:"person_records,omitempty"`
	Signals       directive.Signals       `json:"signals"`
	// IntakeDate anchors the deadline calculation. Zero means now.
	IntakeDate time.Time `json:"intake_date,omitempty"`
}

// DecisionResult aggregates everything one pass produced. A halted pass
// still carries every stage completed before the halt.
type DecisionResult struct {
	FileID      string               `json:"file_id"`
	State       model.CaseState      `json:"state"`
	Record      *model.UnifiedRecord `json:"record,omitempty"`
	Identity    model.IdentityResult `json:"identity"`
	Directive   model.LegalDirective `json:"directive"`
	SLA         *model.SLAStatus     `json:"sla,omitempty"`
	ReviewCases []model.ReviewCase   `json:"review_cases,omitempty"`
	Stages      []model.StageResult  `json:"stages"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// Engine wires the stages together over one store and one audit trail.
type Engine struct {
	cfg      Config
	store    store.Store
	recorder *audit.Recorder
	resolver *identity.Resolver
	router   *review.Router
	sla      *sla.Service
	// inflight serializes processing per file id: concurrent calls for the
	// same file share a single pass instead of racing their writes.
	inflight singleflight.Group
}

// New creates an Engine with defaulted config.
func New(cfg Config, st store.Store, recorder *audit.Recorder, slaSvc *sla.Service) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		store:    st,
		recorder: recorder,
		resolver: identity.NewResolver(cfg.Identity),
		router:   review.NewRouter(st, recorder, cfg.Review),
		sla:      slaSvc,
	}
}

// ProcessDecisionLogic runs the full pipeline for one file. Concurrent calls
// with the same file id join the in-flight pass and share its result.
// Cancellation yields a cancelled outcome whose value holds all partial
// progress; a dependency failure likewise returns the stages completed
// before the failure.
func (e *Engine) ProcessDecisionLogic(ctx context.Context, input Input) outcome.Outcome[*DecisionResult] {
	if input.FileID == "" {
		return outcome.Validation[*DecisionResult]("file id is required")
	}
	if len(input.Candidates) == 0 {
		return outcome.Validation[*DecisionResult]("at least one field candidate is required")
	}

	v, err, shared := e.inflight.Do(input.FileID, func() (any, error) {
		return e.process(ctx, input), nil
	})
	if err != nil {
		return outcome.FromErr[*DecisionResult](err, "process decision")
	}
	out := v.(outcome.Outcome[*DecisionResult])
	if shared {
		zap.L().Debug("engine: joined in-flight pass", zap.String("file_id", input.FileID))
	}
	return out
}

func (e *Engine) process(ctx context.Context, input Input) outcome.Outcome[*DecisionResult] {
	log := zap.L().With(zap.String("file_id", input.FileID))
	log.Info("engine: starting decision pass")

	result := &DecisionResult{FileID: input.FileID, State: model.StateIntake}

	// trackStage runs one stage, records its result and audit event, and
	// reports whether the pipeline should continue. A cancelled context is
	// checked before the stage body runs, so a cancel signal between stages
	// never starts more work.
	trackStage := func(name model.CaseState, fn func() (model.StageStatus, error)) bool {
		if ctx.Err() != nil {
			result.Stages = append(result.Stages, model.StageResult{
				Name:   name,
				Status: model.StageCancelled,
			})
			e.audit(ctx, input.FileID, name, "cancelled", "cancelled before stage start")
			return false
		}

		start := time.Now()
		status, stageErr := fn()
		duration := time.Since(start).Milliseconds()

		sr := model.StageResult{Name: name, Status: status, Duration: duration}
		if stageErr != nil {
			sr.Error = stageErr.Error()
			log.Error("engine: stage failed",
				zap.String("stage", string(name)),
				zap.Int64("duration_ms", duration),
				zap.Error(stageErr),
			)
		} else {
			log.Info("engine: stage complete",
				zap.String("stage", string(name)),
				zap.String("status", string(status)),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Stages = append(result.Stages, sr)
		result.State = name
		e.audit(ctx, input.FileID, name, string(status), sr.Error)
		return status == model.StageSuccess || status == model.StagePartial
	}

	// Stage 1: field merge.
	if !trackStage(model.StateFieldsMerged, func() (model.StageStatus, error) {
		record, warnings := merge.Merge(input.FileID, input.Candidates, e.cfg.Merge)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("excluded candidate %s/%s: %s", w.Candidate.Field, w.Candidate.DocumentID, w.Reason))
		}
		if err := e.store.SaveUnifiedRecord(ctx, record); err != nil {
			return model.StageFailed, err
		}
		result.Record = &record
		return model.StageSuccess, nil
	}) {
		return e.finish(ctx, result)
	}

	// Stage 2: identity resolution. A mid-batch cancel still persists the
	// identities resolved so far as a partial stage.
	if !trackStage(model.StateIdentityResolved, func() (model.StageStatus, error) {
		existing, err := e.store.ListIdentities(ctx, input.FileID)
		if err != nil {
			return model.StageFailed, err
		}
		res := e.resolver.Resolve(ctx, input.FileID, input.PersonRecords, existing)
		for _, p := range res.Identities {
			if err := e.store.UpsertIdentity(ctx, p); err != nil {
				return model.StageFailed, err
			}
		}
		result.Identity = res
		if res.Partial {
			return model.StagePartial, nil
		}
		return model.StageSuccess, nil
	}) {
		return e.finish(ctx, result)
	}

	// Stage 3: directive classification. Unknown is a valid outcome here;
	// the review gate decides what to do with it.
	if !trackStage(model.StateDirectiveClassified, func() (model.StageStatus, error) {
		result.Directive = directive.Classify(input.Signals, result.Record)
		return model.StageSuccess, nil
	}) {
		return e.finish(ctx, result)
	}

	// Stage 4: deadline evaluation.
	if !trackStage(model.StateSlaEvaluated, func() (model.StageStatus, error) {
		intake := input.IntakeDate
		if intake.IsZero() {
			intake = time.Now().UTC()
		}
		status, err := e.sla.Intake(ctx, input.FileID, intake, e.responseDays(result.Record), input.FileID)
		if err != nil {
			return model.StageFailed, err
		}
		result.SLA = status
		return model.StageSuccess, nil
	}) {
		return e.finish(ctx, result)
	}

	// Stage 5: review gate. No triggers means the case auto-resolves.
	gateState := model.StateAutoResolved
	cases, routeErr := e.router.Route(ctx, input.FileID, result.Record, result.Identity, result.Directive, result.SLA, input.FileID)
	if len(cases) > 0 {
		gateState = model.StatePendingReview
	}
	result.ReviewCases = cases
	if !trackStage(gateState, func() (model.StageStatus, error) {
		if routeErr != nil {
			return model.StageFailed, routeErr
		}
		return model.StageSuccess, nil
	}) {
		return e.finish(ctx, result)
	}

	return e.finish(ctx, result)
}

// finish classifies the aggregate pass into an outcome: any cancelled stage
// makes the whole pass cancelled (partial value attached), any failed stage
// a dependency failure, otherwise success.
func (e *Engine) finish(ctx context.Context, result *DecisionResult) outcome.Outcome[*DecisionResult] {
	for _, s := range result.Stages {
		switch s.Status {
		case model.StageCancelled:
			return outcome.Cancelled(result, fmt.Sprintf("cancelled during %s", s.Name))
		case model.StageFailed:
			o := outcome.Fail[*DecisionResult](outcome.FailDependency,
				fmt.Sprintf("stage %s failed: %s", s.Name, s.Error), nil)
			o.Value = result
			return o
		}
	}

	// A pass that pauses for review finalizes later, once the last pending
	// case is decided. Everything else finalizes here.
	if result.State != model.StatePendingReview {
		e.audit(ctx, result.FileID, model.StateFinalized, "success",
			fmt.Sprintf("state=%s stages=%d reviews=%d", result.State, len(result.Stages), len(result.ReviewCases)))
	}

	zap.L().Info("engine: decision pass complete",
		zap.String("file_id", result.FileID),
		zap.String("state", string(result.State)),
		zap.Int("review_cases", len(result.ReviewCases)),
	)
	return outcome.OK(result)
}

// responseDays reads the merged due-days field, falling back to the
// configured default when it is absent, conflicted, or unparseable.
func (e *Engine) responseDays(record *model.UnifiedRecord) int {
	f := record.Field(model.FieldDueDays)
	if !f.Present || !f.Agreement {
		return e.cfg.DefaultResponseDays
	}
	days, err := strconv.Atoi(f.Value)
	if err != nil || days < 0 {
		return e.cfg.DefaultResponseDays
	}
	return days
}

// audit records a stage transition, logging but not propagating sink
// failures so audit trouble never masks the stage's own status.
func (e *Engine) audit(ctx context.Context, fileID string, state model.CaseState, status, detail string) {
	if err := e.recorder.Record(ctx, fileID, "stage_"+string(state), fileID, status, detail); err != nil {
		zap.L().Warn("engine: audit record failed",
			zap.String("file_id", fileID),
			zap.String("stage", string(state)),
			zap.Error(err),
		)
	}
}

// SubmitReviewDecision applies a reviewer verdict to a pending case and
// advances the file's state machine: the decision transition immediately,
// finalization once no pending cases remain for the file.
func (e *Engine) SubmitReviewDecision(ctx context.Context, req review.DecisionRequest) outcome.Outcome[model.ReviewCase] {
	out := e.router.ProcessDecision(ctx, req)
	if !out.Success() {
		return out
	}
	rc := out.Value
	e.audit(ctx, rc.FileID, model.StateReviewDecided, "success",
		fmt.Sprintf("case=%s status=%s", rc.ID, rc.Status))

	pending, err := e.store.ListPendingReviewCases(ctx, 0)
	if err != nil {
		zap.L().Warn("engine: list pending after decision",
			zap.String("file_id", rc.FileID), zap.Error(err))
		return out
	}
	for _, p := range pending {
		if p.FileID == rc.FileID {
			return out
		}
	}
	e.audit(ctx, rc.FileID, model.StateFinalized, "success",
		fmt.Sprintf("last case=%s", rc.ID))
	return out
}

// GetSlaStatus returns the deadline snapshot for one file.
func (e *Engine) GetSlaStatus(ctx context.Context, fileID string) outcome.Outcome[model.SLAStatus] {
	if fileID == "" {
		return outcome.Validation[model.SLAStatus]("file id is required")
	}
	status, err := e.sla.Status(ctx, fileID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return outcome.Fail[model.SLAStatus](outcome.FailNotFound,
				fmt.Sprintf("no sla status for file %s", fileID), err)
		}
		return outcome.FromErr[model.SLAStatus](err, "load sla status")
	}
	return outcome.OK(*status)
}

// GetAtRiskCases lists files whose remaining time is inside the at-risk
// window. A non-positive threshold falls back to the configured default.
func (e *Engine) GetAtRiskCases(ctx context.Context, threshold time.Duration) outcome.Outcome[[]model.SLAStatus] {
	if threshold <= 0 {
		threshold = e.cfg.AtRiskThreshold
	}
	statuses, err := e.sla.AtRisk(ctx, threshold, time.Now().UTC())
	if err != nil {
		return outcome.FromErr[[]model.SLAStatus](err, "list at-risk cases")
	}
	return outcome.OK(statuses)
}

// PendingReviews lists open review cases, oldest first.
func (e *Engine) PendingReviews(ctx context.Context, limit int) outcome.Outcome[[]model.ReviewCase] {
	cases, err := e.router.Pending(ctx, limit)
	if err != nil {
		return outcome.FromErr[[]model.ReviewCase](err, "list pending reviews")
	}
	return outcome.OK(cases)
}
