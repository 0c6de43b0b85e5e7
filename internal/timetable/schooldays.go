package timetable

import (
	"sort"
	"time"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// SchoolDays is the set of school days of a term: every date in [First, Last]
// falling on a school weekday, adjusted by per-date overrides.
type SchoolDays struct {
	ID    string
	First time.Time
	Last  time.Time

	weekdays  [7]bool
	overrides map[string]bool
}

// NewSchoolDays builds a term. Dates are taken by their calendar date.
func NewSchoolDays(id string, first, last time.Time, weekdays ...time.Weekday) (*SchoolDays, error) {
	first, last = dateOnly(first), dateOnly(last)
	if last.Before(first) {
		return nil, appErrors.Clonef(appErrors.ErrInvalidInterval, "term %s ends %s before it starts %s",
			id, calendar.DateKey(last), calendar.DateKey(first))
	}
	s := &SchoolDays{ID: id, First: first, Last: last, overrides: make(map[string]bool)}
	s.AddWeekdays(weekdays...)
	return s, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Contains reports whether date lies within the term.
func (s *SchoolDays) Contains(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(s.First) && !d.After(s.Last)
}

// IsSchoolDay reports whether date is a school day. Dates outside the term
// never are.
func (s *SchoolDays) IsSchoolDay(date time.Time) bool {
	if !s.Contains(date) {
		return false
	}
	if school, ok := s.overrides[calendar.DateKey(dateOnly(date))]; ok {
		return school
	}
	return s.weekdays[date.Weekday()]
}

// AddWeekdays makes every listed weekday a school day.
func (s *SchoolDays) AddWeekdays(weekdays ...time.Weekday) {
	for _, wd := range weekdays {
		if wd >= time.Sunday && wd <= time.Saturday {
			s.weekdays[wd] = true
		}
	}
}

// RemoveWeekdays makes every listed weekday a holiday.
func (s *SchoolDays) RemoveWeekdays(weekdays ...time.Weekday) {
	for _, wd := range weekdays {
		if wd >= time.Sunday && wd <= time.Saturday {
			s.weekdays[wd] = false
		}
	}
}

// Weekdays returns the school weekdays, Sunday first.
func (s *SchoolDays) Weekdays() []time.Weekday {
	var out []time.Weekday
	for wd, on := range s.weekdays {
		if on {
			out = append(out, time.Weekday(wd))
		}
	}
	return out
}

// Add marks date as a school day regardless of its weekday.
func (s *SchoolDays) Add(date time.Time) error {
	return s.SetOverride(date, true)
}

// Remove marks date as a holiday.
func (s *SchoolDays) Remove(date time.Time) error {
	return s.SetOverride(date, false)
}

// SetOverride pins date to a school day or a holiday.
func (s *SchoolDays) SetOverride(date time.Time, school bool) error {
	if !s.Contains(date) {
		return appErrors.Clonef(appErrors.ErrValidation, "%s is outside term %s", calendar.DateKey(dateOnly(date)), s.ID)
	}
	s.overrides[calendar.DateKey(dateOnly(date))] = school
	return nil
}

// Overrides returns a copy of the per-date overrides keyed by YYYY-MM-DD.
func (s *SchoolDays) Overrides() map[string]bool {
	out := make(map[string]bool, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}

// Holidays returns the dates explicitly removed from the term, in order.
func (s *SchoolDays) Holidays() []time.Time {
	var out []time.Time
	for key, school := range s.overrides {
		if school {
			continue
		}
		if d, err := time.Parse("2006-01-02", key); err == nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Dates returns every date of the term in order, school day or not.
func (s *SchoolDays) Dates() []time.Time {
	var out []time.Time
	for d := s.First; !d.After(s.Last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// SchoolDates returns the school days of the term in order.
func (s *SchoolDays) SchoolDates() []time.Time {
	var out []time.Time
	for _, d := range s.Dates() {
		if s.IsSchoolDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// TermForDate returns the first term containing date.
func TermForDate(terms []*SchoolDays, date time.Time) (*SchoolDays, bool) {
	for _, term := range terms {
		if term != nil && term.Contains(date) {
			return term, true
		}
	}
	return nil, false
}
