package sla

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Calendar supplies the holiday schedule for business-day arithmetic.
// Weekends are always excluded; holidays come from the collaborator, the
// evaluator never computes them.
type Calendar interface {
	IsHoliday(day time.Time) bool
}

// WeekendOnly is a Calendar with no holidays.
type WeekendOnly struct{}

func (WeekendOnly) IsHoliday(time.Time) bool { return false }

// FileCalendar loads holidays from a YAML file of ISO dates:
//
//	holidays:
//	  - 2026-01-01
//	  - 2026-09-16
type FileCalendar struct {
	holidays map[string]bool
}

type calendarFile struct {
	Holidays []string `yaml:"holidays"`
}

// LoadCalendar reads a holiday calendar file. A missing path yields a
// weekend-only calendar rather than an error.
func LoadCalendar(path string) (Calendar, error) {
	if path == "" {
		return WeekendOnly{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WeekendOnly{}, nil
		}
		return nil, eris.Wrapf(err, "sla: read calendar %s", path)
	}

	var parsed calendarFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, eris.Wrapf(err, "sla: parse calendar %s", path)
	}

	cal := &FileCalendar{holidays: make(map[string]bool, len(parsed.Holidays))}
	for _, d := range parsed.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, eris.Wrapf(err, "sla: invalid holiday date %q", d)
		}
		cal.holidays[d] = true
	}
	return cal, nil
}

// NewFileCalendar builds a FileCalendar from already-parsed dates. Used by
// tests and by callers that source holidays elsewhere.
func NewFileCalendar(days ...time.Time) *FileCalendar {
	cal := &FileCalendar{holidays: make(map[string]bool, len(days))}
	for _, d := range days {
		cal.holidays[d.Format("2006-01-02")] = true
	}
	return cal
}

func (c *FileCalendar) IsHoliday(day time.Time) bool {
	return c.holidays[day.Format("2006-01-02")]
}

// isBusinessDay reports whether day is a weekday and not a holiday.
func isBusinessDay(day time.Time, cal Calendar) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !cal.IsHoliday(day)
}
