// Package sla computes statutory response deadlines with business-day
// arithmetic and derives escalation levels from time remaining.
package sla

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/complyops/decision-engine/internal/model"
)

// Escalation bands, evaluated tightest-first so Critical always wins over
// Warning when both could apply.
const (
	criticalWindow = 4 * time.Hour
	warningWindow  = 24 * time.Hour
)

// CalculateDeadline advances intakeDate by requiredBusinessDays, skipping
// weekends and calendar holidays. The time of day is preserved: Friday
// 10:00 plus two business days is Tuesday 10:00.
func CalculateDeadline(intakeDate time.Time, requiredBusinessDays int, cal Calendar) (time.Time, error) {
	if requiredBusinessDays < 0 {
		return time.Time{}, eris.Errorf("sla: required business days must be >= 0, got %d", requiredBusinessDays)
	}
	if cal == nil {
		cal = WeekendOnly{}
	}

	deadline := intakeDate
	for remaining := requiredBusinessDays; remaining > 0; {
		deadline = deadline.AddDate(0, 0, 1)
		if isBusinessDay(deadline, cal) {
			remaining--
		}
	}
	return deadline, nil
}

// DetermineEscalationLevel is a pure function of (deadline - now):
// remaining <= 0 is Breached, <= 4h Critical, <= 24h Warning, else None.
func DetermineEscalationLevel(deadline, now time.Time) model.EscalationLevel {
	remaining := deadline.Sub(now)
	switch {
	case remaining <= 0:
		return model.EscalationBreached
	case remaining <= criticalWindow:
		return model.EscalationCritical
	case remaining <= warningWindow:
		return model.EscalationWarning
	default:
		return model.EscalationNone
	}
}

// NextLevel applies the monotonicity rule for one evaluation pass: a level
// never goes down without an explicit reset.
func NextLevel(current, computed model.EscalationLevel) model.EscalationLevel {
	if computed > current {
		return computed
	}
	return current
}

// GetAtRiskCases filters snapshots whose remaining time is positive but at
// or under threshold. It never recomputes deadlines.
func GetAtRiskCases(statuses []model.SLAStatus, threshold time.Duration, now time.Time) []model.SLAStatus {
	var out []model.SLAStatus
	for _, st := range statuses {
		remaining := st.Remaining(now)
		if remaining > 0 && remaining <= threshold {
			out = append(out, st)
		}
	}
	return out
}

// GetBreachedCases filters snapshots already past their deadline.
func GetBreachedCases(statuses []model.SLAStatus, now time.Time) []model.SLAStatus {
	var out []model.SLAStatus
	for _, st := range statuses {
		if st.Breached || st.Remaining(now) <= 0 {
			out = append(out, st)
		}
	}
	return out
}
