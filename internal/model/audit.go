package model

import "time"

// AuditEvent is one append-only record of a state transition. Events for a
// single case share a correlation id and are strictly ordered by Seq.
type AuditEvent struct {
	ID            string    `json:"id"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"`
	TargetID      string    `json:"target_id"`
	CorrelationID string    `json:"correlation_id"`
	Seq           int       `json:"seq"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
