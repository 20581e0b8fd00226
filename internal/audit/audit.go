// Package audit records one append-only event per state transition. Events
// are never mutated or deleted; ordering within a case is by the sequence
// number the sink assigns.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/model"
)

// Sink accepts append-only audit events and assigns each a per-correlation
// sequence number.
type Sink interface {
	Append(ctx context.Context, event model.AuditEvent) (seq int, err error)
}

// Recorder stamps actor, id, and timestamp onto events before appending.
type Recorder struct {
	sink  Sink
	actor string
}

// NewRecorder creates a Recorder writing on behalf of actor (a system
// component name or a reviewer identity).
func NewRecorder(sink Sink, actor string) *Recorder {
	return &Recorder{sink: sink, actor: actor}
}

// Record appends one event for a state transition. Failures are returned to
// the caller but also logged, because a lost audit event is an operational
// problem even when the business operation succeeded.
func (r *Recorder) Record(ctx context.Context, correlationID, action, targetID, outcome, detail string) error {
	event := model.AuditEvent{
		ID:            uuid.New().String(),
		Actor:         r.actor,
		Action:        action,
		TargetID:      targetID,
		CorrelationID: correlationID,
		Outcome:       outcome,
		Detail:        detail,
		Timestamp:     time.Now().UTC(),
	}
	if _, err := r.sink.Append(ctx, event); err != nil {
		zap.L().Error("audit: append failed",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return eris.Wrap(err, "audit: append event")
	}
	return nil
}

// WithActor returns a Recorder writing to the same sink as a different actor.
func (r *Recorder) WithActor(actor string) *Recorder {
	return &Recorder{sink: r.sink, actor: actor}
}

// MemorySink is an in-memory Sink for tests and the default wiring when no
// store is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []model.AuditEvent
	seq    map[string]int
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seq: make(map[string]int)}
}

// Append stores the event with the next sequence number for its correlation.
func (s *MemorySink) Append(_ context.Context, event model.AuditEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[event.CorrelationID]++
	event.Seq = s.seq[event.CorrelationID]
	s.events = append(s.events, event)
	return event.Seq, nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByCorrelation returns the ordered events for one correlation id.
func (s *MemorySink) ByCorrelation(correlationID string) []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEvent
	for _, e := range s.events {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out
}
