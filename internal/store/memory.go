package store

import (
	"context"
	"sort"
	"sync"

	"github.com/complyops/decision-engine/internal/model"
)

// MemoryStore is an in-memory Store for tests and local experimentation.
// It honors the same idempotency and atomicity contracts as the SQL
// backends: review-case creation is check-then-create under one lock, and
// audit sequence numbers are assigned atomically per correlation id.
type MemoryStore struct {
	mu          sync.Mutex
	slaStatuses map[string]model.SLAStatus
	reviewCases map[string]model.ReviewCase
	// triggerIndex maps file_id|reason to a case id, enforcing the
	// (file id, trigger reason) uniqueness the SQL backends get from a
	// constraint.
	triggerIndex map[string]string
	identities   map[string]model.PersonIdentity
	records      map[string]model.UnifiedRecord
	auditEvents  []model.AuditEvent
	auditSeq     map[string]int
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		slaStatuses:  make(map[string]model.SLAStatus),
		reviewCases:  make(map[string]model.ReviewCase),
		triggerIndex: make(map[string]string),
		identities:   make(map[string]model.PersonIdentity),
		records:      make(map[string]model.UnifiedRecord),
		auditSeq:     make(map[string]int),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) UpsertSLAStatus(_ context.Context, status model.SLAStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaStatuses[status.FileID] = status
	return nil
}

func (s *MemoryStore) GetSLAStatus(_ context.Context, fileID string) (*model.SLAStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slaStatuses[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *MemoryStore) ListSLAStatuses(context.Context) ([]model.SLAStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SLAStatus, 0, len(s.slaStatuses))
	for _, st := range s.slaStatuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *MemoryStore) CreateReviewCase(_ context.Context, rc model.ReviewCase) (*model.ReviewCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rc.FileID + "|" + string(rc.Reason)
	if existingID, ok := s.triggerIndex[key]; ok {
		existing := s.reviewCases[existingID]
		return &existing, false, nil
	}
	s.reviewCases[rc.ID] = rc
	s.triggerIndex[key] = rc.ID
	return &rc, true, nil
}

func (s *MemoryStore) GetReviewCase(_ context.Context, caseID string) (*model.ReviewCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.reviewCases[caseID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rc, nil
}

func (s *MemoryStore) UpdateReviewDecision(_ context.Context, rc model.ReviewCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reviewCases[rc.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = rc.Status
	existing.ReviewerID = rc.ReviewerID
	existing.Notes = rc.Notes
	existing.Overrides = rc.Overrides
	existing.DecidedAt = rc.DecidedAt
	s.reviewCases[rc.ID] = existing
	return nil
}

func (s *MemoryStore) ListPendingReviewCases(_ context.Context, limit int) ([]model.ReviewCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []model.ReviewCase
	for _, rc := range s.reviewCases {
		if rc.Status == model.ReviewPending {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListIdentities(_ context.Context, fileID string) ([]model.PersonIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PersonIdentity
	for _, p := range s.identities {
		if p.FileID == fileID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CanonicalID < out[j].CanonicalID
	})
	return out, nil
}

func (s *MemoryStore) UpsertIdentity(_ context.Context, identity model.PersonIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.CanonicalID] = identity
	return nil
}

func (s *MemoryStore) SaveUnifiedRecord(_ context.Context, record model.UnifiedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.FileID] = record
	return nil
}

func (s *MemoryStore) GetUnifiedRecord(_ context.Context, fileID string) (*model.UnifiedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryStore) AppendAuditEvent(_ context.Context, event model.AuditEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSeq[event.CorrelationID]++
	event.Seq = s.auditSeq[event.CorrelationID]
	s.auditEvents = append(s.auditEvents, event)
	return event.Seq, nil
}

func (s *MemoryStore) ListAuditEvents(_ context.Context, correlationID string) ([]model.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEvent
	for _, e := range s.auditEvents {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
