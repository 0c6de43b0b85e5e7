// Package calendar holds the time arithmetic behind school calendars:
// half-open periods, recurrence expansion, events, the multi-calendar
// aggregator and the day grid layout.
//
// All instants are normalised to UTC on the way in; the viewer's location is
// only used to pick day boundaries and display values.
package calendar

import (
	"time"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// Period is the half-open interval [Start, Start+Duration).
type Period struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// NewPeriod validates the duration and normalises start to UTC.
func NewPeriod(start time.Time, duration time.Duration) (Period, error) {
	if duration < 0 {
		return Period{}, appErrors.Clonef(appErrors.ErrInvalidInterval, "duration %s must not be negative", duration)
	}
	return Period{Start: start.UTC(), Duration: duration}, nil
}

// NewPeriodBetween builds the period [start, end).
func NewPeriodBetween(start, end time.Time) (Period, error) {
	return NewPeriod(start, end.Sub(start))
}

// End returns the first instant after the period.
func (p Period) End() time.Time {
	return p.Start.Add(p.Duration)
}

// Empty reports whether the period covers no time at all.
func (p Period) Empty() bool {
	return p.Duration <= 0
}

// Overlaps reports whether the two periods share at least one instant.
// Periods that only touch (a.End == b.Start) do not overlap.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End()) && other.Start.Before(p.End())
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End())
}

// Intersect returns the common part of both periods.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End()
	if other.End().Before(end) {
		end = other.End()
	}
	return Period{Start: start, Duration: end.Sub(start)}, true
}

// Overlaps is the free-function form of Period.Overlaps.
func Overlaps(a, b Period) bool {
	return a.Overlaps(b)
}

// DateOf truncates t to midnight of its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDate reports whether a and b fall on the same calendar date in UTC.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DateKey renders the UTC calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
