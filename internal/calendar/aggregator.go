package calendar

import (
	"sort"
	"time"
)

// Colors of the viewed owner's own calendars.
const (
	DefaultColor1 = "#9db8d2"
	DefaultColor2 = "#7590ae"
)

// shortTitleLimit is the longest title shown unabridged.
const shortTitleLimit = 16

// Source is a calendar taking part in a view, with its display colors.
type Source struct {
	Calendar *Calendar
	Color1   string
	Color2   string
}

// EventForDisplay is an occurrence decorated for one view.
type EventForDisplay struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ShortTitle       string    `json:"short_title"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	StartLocal       time.Time `json:"start_local"`
	EndLocal         time.Time `json:"end_local"`
	AllDay           bool      `json:"all_day"`
	Location         string    `json:"location,omitempty"`
	Color1           string    `json:"color1"`
	Color2           string    `json:"color2"`
	SourceCalendarID string    `json:"source_calendar_id"`
	HomeCalendarID   string    `json:"home_calendar_id"`
	Booker           string    `json:"booker,omitempty"`
	Resources        []string  `json:"resources,omitempty"`
	Privacy          Privacy   `json:"privacy,omitempty"`
}

// Duration returns the length of the occurrence.
func (e EventForDisplay) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// ShortTitle abbreviates long titles to 15 characters plus an ellipsis.
func ShortTitle(title string) string {
	runes := []rune(title)
	if len(runes) > shortTitleLimit {
		return string(runes[:shortTitleLimit-1]) + "..."
	}
	return title
}

// Day is the read-only projection of one date in a view.
type Day struct {
	Date   time.Time         `json:"date"`
	Events []EventForDisplay `json:"events"`
	AllDay []EventForDisplay `json:"all_day,omitempty"`
}

// Aggregator merges the sources of a view. Context is the calendar being
// looked at; it is normally also the first source.
type Aggregator struct {
	Context  *Calendar
	Sources  []Source
	Location *time.Location
}

// NewAggregator builds an aggregator for the viewer location loc.
func NewAggregator(context *Calendar, loc *time.Location, sources ...Source) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{Context: context, Sources: sources, Location: loc}
}

// Events returns the timed occurrences touching [from, to).
func (a *Aggregator) Events(from, to time.Time) []EventForDisplay {
	return a.collect(from, to, false)
}

// AllDayEvents returns the all-day occurrences covering date.
func (a *Aggregator) AllDayEvents(date time.Time) []EventForDisplay {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return a.collect(day, day.Add(24*time.Hour), true)
}

func (a *Aggregator) collect(from, to time.Time, allDay bool) []EventForDisplay {
	var out []EventForDisplay
	for _, src := range a.Sources {
		if src.Calendar == nil {
			continue
		}
		for _, occ := range src.Calendar.Expand(from, to) {
			if occ.Event.AllDay != allDay || a.isBookingEcho(occ.Event, src.Calendar) {
				continue
			}
			out = append(out, a.display(occ, src))
		}
	}
	return out
}

// isBookingEcho reports whether ev is the context's own event seen again
// through another calendar, which happens when it books a resource whose
// calendar is overlaid.
func (a *Aggregator) isBookingEcho(ev *Event, via *Calendar) bool {
	if a.Context == nil {
		return false
	}
	return ev.CalendarID == a.Context.ID && via.ID != a.Context.ID
}

func (a *Aggregator) display(occ Occurrence, src Source) EventForDisplay {
	ev := occ.Event
	return EventForDisplay{
		ID:               ev.ID,
		Title:            ev.Title,
		ShortTitle:       ShortTitle(ev.Title),
		Start:            occ.Start,
		End:              occ.End,
		StartLocal:       occ.Start.In(a.Location),
		EndLocal:         occ.End.In(a.Location),
		AllDay:           ev.AllDay,
		Location:         ev.Location,
		Color1:           src.Color1,
		Color2:           src.Color2,
		SourceCalendarID: src.Calendar.ID,
		HomeCalendarID:   ev.CalendarID,
		Booker:           ev.Owner,
		Resources:        append([]string(nil), ev.Resources...),
		Privacy:          ev.Privacy,
	}
}

// Days returns one Day per date in [start, end), in the viewer location.
// An event is listed under every date it overlaps; one ending exactly at
// midnight is not listed under the following date.
func (a *Aggregator) Days(start, end time.Time) []Day {
	first := DateOf(start, a.Location)
	stop := DateOf(end, a.Location)

	var days []Day
	index := make(map[string]int)
	for d := first; d.Before(stop); d = d.AddDate(0, 0, 1) {
		index[d.Format("2006-01-02")] = len(days)
		days = append(days, Day{Date: d, Events: []EventForDisplay{}})
	}
	if len(days) == 0 {
		return days
	}

	for _, ev := range a.Events(first, stop) {
		a.attribute(days, index, ev, ev.StartLocal, ev.EndLocal, false)
	}
	utcFirst := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	utcStop := time.Date(stop.Year(), stop.Month(), stop.Day(), 0, 0, 0, 0, time.UTC)
	for _, ev := range a.collect(utcFirst, utcStop, true) {
		// All-day events are date based; their UTC dates are the ones shown.
		a.attribute(days, index, ev, ev.Start, ev.End, true)
	}

	for i := range days {
		sortDisplay(days[i].Events)
		sortDisplay(days[i].AllDay)
	}
	return days
}

func (a *Aggregator) attribute(days []Day, index map[string]int, ev EventForDisplay, start, end time.Time, allDay bool) {
	firstDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	lastEnd := end.Add(-time.Nanosecond)
	lastDay := time.Date(lastEnd.Year(), lastEnd.Month(), lastEnd.Day(), 0, 0, 0, 0, time.UTC)
	if lastDay.Before(firstDay) {
		lastDay = firstDay
	}
	for d := firstDay; !d.After(lastDay); d = d.AddDate(0, 0, 1) {
		i, ok := index[d.Format("2006-01-02")]
		if !ok {
			continue
		}
		if allDay {
			days[i].AllDay = append(days[i].AllDay, ev)
		} else {
			days[i].Events = append(days[i].Events, ev)
		}
	}
}

// DayEvents returns the timed events of a single date, ordered by start.
func (a *Aggregator) DayEvents(date time.Time) []EventForDisplay {
	d := DateOf(date, a.Location)
	days := a.Days(d, d.AddDate(0, 0, 1))
	if len(days) == 0 {
		return nil
	}
	return days[0].Events
}

func sortDisplay(events []EventForDisplay) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
}
