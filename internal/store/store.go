// Package store persists the engine's durable entities: SLA statuses,
// review cases, person identities, unified records, and audit events.
package store

import (
	"context"
	"errors"

	"github.com/complyops/decision-engine/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for the decision engine.
//
// CreateReviewCase must be an atomic check-then-create keyed by (file id,
// trigger reason): under a duplicate-creation race it returns the existing
// case with created=false, never an error and never a second case.
// UpsertIdentity and UpsertSLAStatus are idempotent by primary key.
// AppendAuditEvent assigns the next per-correlation sequence number; events
// are append-only.
type Store interface {
	// SLA statuses
	UpsertSLAStatus(ctx context.Context, status model.SLAStatus) error
	GetSLAStatus(ctx context.Context, fileID string) (*model.SLAStatus, error)
	ListSLAStatuses(ctx context.Context) ([]model.SLAStatus, error)

	// Review cases
	CreateReviewCase(ctx context.Context, rc model.ReviewCase) (saved *model.ReviewCase, created bool, err error)
	GetReviewCase(ctx context.Context, caseID string) (*model.ReviewCase, error)
	UpdateReviewDecision(ctx context.Context, rc model.ReviewCase) error
	ListPendingReviewCases(ctx context.Context, limit int) ([]model.ReviewCase, error)

	// Person identities
	ListIdentities(ctx context.Context, fileID string) ([]model.PersonIdentity, error)
	UpsertIdentity(ctx context.Context, identity model.PersonIdentity) error

	// Unified records
	SaveUnifiedRecord(ctx context.Context, record model.UnifiedRecord) error
	GetUnifiedRecord(ctx context.Context, fileID string) (*model.UnifiedRecord, error)

	// Audit events
	AppendAuditEvent(ctx context.Context, event model.AuditEvent) (seq int, err error)
	ListAuditEvents(ctx context.Context, correlationID string) ([]model.AuditEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
