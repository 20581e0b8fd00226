package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/model"
)

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestCalculateDeadline_SkipsWeekend(t *testing.T) {
	// Friday 10:00 plus two business days lands on Tuesday 10:00.
	friday := date(2026, time.August, 21, 10)

	deadline, err := CalculateDeadline(friday, 2, WeekendOnly{})
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.August, 25, 10), deadline)
	assert.Equal(t, time.Tuesday, deadline.Weekday())
}

func TestCalculateDeadline_SkipsHolidays(t *testing.T) {
	friday := date(2026, time.August, 21, 10)
	cal := NewFileCalendar(date(2026, time.August, 24, 0)) // Monday holiday

	deadline, err := CalculateDeadline(friday, 2, cal)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.August, 26, 10), deadline)
}

func TestCalculateDeadline_ZeroDaysIsIntake(t *testing.T) {
	intake := date(2026, time.August, 21, 10)
	deadline, err := CalculateDeadline(intake, 0, WeekendOnly{})
	require.NoError(t, err)
	assert.Equal(t, intake, deadline)
}

func TestCalculateDeadline_NegativeDaysRejected(t *testing.T) {
	_, err := CalculateDeadline(date(2026, time.August, 21, 10), -1, WeekendOnly{})
	assert.Error(t, err)
}

func TestDetermineEscalationLevel_Bands(t *testing.T) {
	deadline := date(2026, time.September, 1, 12)

	cases := []struct {
		name string
		now  time.Time
		want model.EscalationLevel
	}{
		{"25h out", deadline.Add(-25 * time.Hour), model.EscalationNone},
		{"exactly 24h", deadline.Add(-24 * time.Hour), model.EscalationWarning},
		{"5h out", deadline.Add(-5 * time.Hour), model.EscalationWarning},
		{"exactly 4h", deadline.Add(-4 * time.Hour), model.EscalationCritical},
		{"1h out", deadline.Add(-time.Hour), model.EscalationCritical},
		{"at deadline", deadline, model.EscalationBreached},
		{"1h past", deadline.Add(time.Hour), model.EscalationBreached},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetermineEscalationLevel(deadline, tc.now), tc.name)
	}
}

func TestNextLevel_NeverDeEscalates(t *testing.T) {
	assert.Equal(t, model.EscalationCritical, NextLevel(model.EscalationWarning, model.EscalationCritical))
	assert.Equal(t, model.EscalationCritical, NextLevel(model.EscalationCritical, model.EscalationWarning))
	assert.Equal(t, model.EscalationBreached, NextLevel(model.EscalationBreached, model.EscalationNone))
	assert.Equal(t, model.EscalationNone, NextLevel(model.EscalationNone, model.EscalationNone))
}

func TestGetAtRiskCases_WindowIsExclusiveOfBreached(t *testing.T) {
	now := date(2026, time.September, 1, 12)
	statuses := []model.SLAStatus{
		{FileID: "far", Deadline: now.Add(48 * time.Hour)},
		{FileID: "close", Deadline: now.Add(6 * time.Hour)},
		{FileID: "past", Deadline: now.Add(-time.Hour)},
	}

	atRisk := GetAtRiskCases(statuses, 24*time.Hour, now)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "close", atRisk[0].FileID)
}

func TestGetBreachedCases(t *testing.T) {
	now := date(2026, time.September, 1, 12)
	statuses := []model.SLAStatus{
		{FileID: "ok", Deadline: now.Add(48 * time.Hour)},
		{FileID: "past", Deadline: now.Add(-time.Hour)},
		{FileID: "flagged", Deadline: now.Add(time.Hour), Breached: true},
	}

	breached := GetBreachedCases(statuses, now)
	require.Len(t, breached, 2)
	assert.Equal(t, "past", breached[0].FileID)
	assert.Equal(t, "flagged", breached[1].FileID)
}

func TestLoadCalendar_MissingFileFallsBackToWeekends(t *testing.T) {
	cal, err := LoadCalendar("testdata/does-not-exist.yaml")
	require.NoError(t, err)
	assert.IsType(t, WeekendOnly{}, cal)
}

func TestFileCalendar_IsHoliday(t *testing.T) {
	cal := NewFileCalendar(date(2026, time.September, 16, 0))
	assert.True(t, cal.IsHoliday(date(2026, time.September, 16, 15)))
	assert.False(t, cal.IsHoliday(date(2026, time.September, 17, 15)))
}
