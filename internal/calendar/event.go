package calendar

import (
	"sort"
	"time"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// Privacy controls who may see an event's details.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
	PrivacyHidden  Privacy = "hidden"
)

// Event is a calendar entry, optionally repeating.
//
// CalendarID names the calendar the event lives in. Booked resources list the
// event in their own calendars too, but CalendarID still points home; the
// aggregator relies on it to avoid showing a booking twice.
type Event struct {
	ID         string          `json:"id"`
	CalendarID string          `json:"calendar_id"`
	Title      string          `json:"title"`
	Start      time.Time       `json:"start"`
	Duration   time.Duration   `json:"duration"`
	Owner      string          `json:"owner,omitempty"`
	Location   string          `json:"location,omitempty"`
	Resources  []string        `json:"resources,omitempty"`
	AllDay     bool            `json:"all_day"`
	Privacy    Privacy         `json:"privacy,omitempty"`
	Recurrence *RecurrenceRule `json:"-"`
}

// NewEvent validates the duration and normalises the start to UTC.
func NewEvent(id, title string, start time.Time, duration time.Duration) (*Event, error) {
	if _, err := NewPeriod(start, duration); err != nil {
		return nil, err
	}
	return &Event{ID: id, Title: title, Start: start.UTC(), Duration: duration, Privacy: PrivacyPublic}, nil
}

// NewAllDayEvent creates an event covering whole days starting at date.
func NewAllDayEvent(id, title string, date time.Time, days int) (*Event, error) {
	if days < 1 {
		return nil, appErrors.Clonef(appErrors.ErrInvalidInterval, "all-day event must span at least one day, got %d", days)
	}
	ev, err := NewEvent(id, title, DateOf(date, time.UTC), time.Duration(days)*24*time.Hour)
	if err != nil {
		return nil, err
	}
	ev.AllDay = true
	return ev, nil
}

// End returns the end of the first occurrence.
func (e *Event) End() time.Time {
	return e.Start.Add(e.Duration)
}

// Period returns the first occurrence as a period.
func (e *Event) Period() Period {
	return Period{Start: e.Start, Duration: e.Duration}
}

// Clone returns a deep copy; the recurrence rule is immutable and shared.
func (e *Event) Clone() *Event {
	cp := *e
	cp.Resources = append([]string(nil), e.Resources...)
	return &cp
}

// HasResource reports whether the event books the resource.
func (e *Event) HasResource(id string) bool {
	for _, r := range e.Resources {
		if r == id {
			return true
		}
	}
	return false
}

// Occurrence is one materialised repetition of an event.
type Occurrence struct {
	Event *Event    `json:"-"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Period returns the occurrence as a period.
func (o Occurrence) Period() Period {
	return Period{Start: o.Start, Duration: o.End.Sub(o.Start)}
}

// Expand returns the occurrences of e touching [from, to). Occurrences that
// started before from but are still running are included, as are zero-length
// occurrences at or after from.
func (e *Event) Expand(from, to time.Time) []Occurrence {
	from, to = from.UTC(), to.UTC()
	window := Period{Start: from, Duration: to.Sub(from)}
	touches := func(start time.Time) bool {
		if e.Duration == 0 {
			return window.Contains(start)
		}
		return window.Overlaps(Period{Start: start, Duration: e.Duration})
	}

	if e.Recurrence == nil {
		if touches(e.Start) {
			return []Occurrence{{Event: e, Start: e.Start, End: e.End()}}
		}
		return nil
	}

	var out []Occurrence
	it := e.Recurrence.Expand(e.Start, from.Add(-e.Duration), to)
	for {
		start, ok := it.Next()
		if !ok {
			break
		}
		if touches(start) {
			out = append(out, Occurrence{Event: e, Start: start, End: start.Add(e.Duration)})
		}
	}
	return out
}

// HasOccurrences reports whether the event still produces anything.
func (e *Event) HasOccurrences() bool {
	if e.Recurrence == nil {
		return true
	}
	return e.Recurrence.HasOccurrences(e.Start)
}

// DeleteMode selects which part of a repeating series is deleted.
type DeleteMode string

const (
	DeleteAll     DeleteMode = "all"
	DeleteFuture  DeleteMode = "future"
	DeleteCurrent DeleteMode = "current"
)

// DeleteOccurrence applies mode at date and returns the surviving event, or
// nil when the whole event should be removed. Non-repeating events are
// always removed entirely.
func (e *Event) DeleteOccurrence(mode DeleteMode, date time.Time) (*Event, error) {
	if e.Recurrence == nil || mode == DeleteAll {
		return nil, nil
	}

	var (
		rule *RecurrenceRule
		err  error
	)
	switch mode {
	case DeleteFuture:
		rule, err = e.Recurrence.WithUntil(DateOf(date, time.UTC).AddDate(0, 0, -1))
	case DeleteCurrent:
		// Exceptions do not consume the count budget, so a counted series
		// gives up one repetition along with the excluded date.
		count := e.Recurrence.Count()
		occurs := count > 0 && e.Recurrence.OccursOn(e.Start, date)
		if occurs && count == 1 {
			return nil, nil
		}
		rule, err = e.Recurrence.WithException(date)
		if err == nil && occurs {
			rule, err = rule.WithCount(count - 1)
		}
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown delete mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	updated := e.Clone()
	updated.Recurrence = rule
	if !updated.HasOccurrences() {
		return nil, nil
	}
	return updated, nil
}

// SortOccurrences orders occurrences by start, keeping the input order of
// simultaneous ones.
func SortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool { return occ[i].Start.Before(occ[j].Start) })
}
