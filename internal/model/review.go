package model

import "time"

// TriggerReason enumerates why a file was routed to manual review. ReviewCase
// creation is keyed by (file id, trigger reason), so reasons must be stable.
type TriggerReason string

const (
	TriggerFieldConflict      TriggerReason = "field_conflict"
	TriggerIdentityConfidence TriggerReason = "identity_confidence"
	TriggerDirectiveUnknown   TriggerReason = "directive_unknown"
	TriggerEscalationConflict TriggerReason = "escalation_conflict"
)

// ReviewStatus is the lifecycle state of a review case.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewDecision is a reviewer's verdict on a case.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// FieldAnnotation explains one disagreed field to the reviewer: the winning
// value, what it beat, and how far below threshold the merge landed.
type FieldAnnotation struct {
	Field      FieldKey `json:"field"`
	Winner     string   `json:"winner"`
	Competing  []string `json:"competing,omitempty"`
	Confidence float64  `json:"confidence"`
	Threshold  float64  `json:"threshold"`
	// Gap is threshold - confidence when positive; how much confidence
	// was missing for auto-resolution.
	Gap float64 `json:"gap"`
}

// ReviewCase is a unit of work routed to a human reviewer.
type ReviewCase struct {
	ID          string            `json:"id"`
	FileID      string            `json:"file_id"`
	Reason      TriggerReason     `json:"reason"`
	Annotations []FieldAnnotation `json:"annotations,omitempty"`
	Status      ReviewStatus      `json:"status"`
	ReviewerID  string            `json:"reviewer_id,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	// Overrides holds reviewer-supplied field values applied on approval.
	Overrides map[FieldKey]string `json:"overrides,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	DecidedAt *time.Time          `json:"decided_at,omitempty"`
}
