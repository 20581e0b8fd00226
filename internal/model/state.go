package model

// CaseState is the orchestrator's per-case state machine position.
type CaseState string

const (
	StateIntake              CaseState = "intake"
	StateFieldsMerged        CaseState = "fields_merged"
	StateIdentityResolved    CaseState = "identity_resolved"
	StateDirectiveClassified CaseState = "directive_classified"
	StateSlaEvaluated        CaseState = "sla_evaluated"
	StateAutoResolved        CaseState = "auto_resolved"
	StatePendingReview       CaseState = "pending_review"
	StateReviewDecided       CaseState = "review_decided"
	StateFinalized           CaseState = "finalized"
)

// StageStatus is the per-stage result tag. A cancelled stage is distinct
// from a failed one.
type StageStatus string

const (
	StageSuccess   StageStatus = "success"
	StagePartial   StageStatus = "partial"
	StageFailed    StageStatus = "failed"
	StageCancelled StageStatus = "cancelled"
)

// StageResult records what one pipeline stage produced. The orchestrator
// returns every stage result computed so far even when a later stage halts.
type StageResult struct {
	Name     CaseState   `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
}
