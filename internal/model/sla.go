package model

import "time"

// EscalationLevel is the categorical urgency derived from time remaining to
// a deadline. Levels are ordered so monotonicity checks are plain integer
// comparisons.
type EscalationLevel int

const (
	EscalationNone EscalationLevel = iota
	EscalationWarning
	EscalationCritical
	EscalationBreached
)

func (l EscalationLevel) String() string {
	switch l {
	case EscalationNone:
		return "none"
	case EscalationWarning:
		return "warning"
	case EscalationCritical:
		return "critical"
	case EscalationBreached:
		return "breached"
	default:
		return "unknown"
	}
}

// ParseEscalationLevel converts a stored string back to a level.
func ParseEscalationLevel(s string) EscalationLevel {
	switch s {
	case "warning":
		return EscalationWarning
	case "critical":
		return EscalationCritical
	case "breached":
		return EscalationBreached
	default:
		return EscalationNone
	}
}

// SLAStatus tracks the statutory response deadline for one file.
type SLAStatus struct {
	FileID     string          `json:"file_id"`
	IntakeDate time.Time       `json:"intake_date"`
	Deadline   time.Time       `json:"deadline"`
	Level      EscalationLevel `json:"level"`
	Breached   bool            `json:"breached"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Remaining returns the time left until the deadline at now.
func (s SLAStatus) Remaining(now time.Time) time.Duration {
	return s.Deadline.Sub(now)
}
