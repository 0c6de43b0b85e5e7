package timetable

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// ModelKind names the strategy mapping dates to schema days.
type ModelKind string

const (
	// Sequential cycles through the day ids, advancing on school days only.
	Sequential ModelKind = "sequential"
	// Weekly picks the day id by weekday, Monday first.
	Weekly ModelKind = "weekly"
)

// DefaultWeeklyDayIDs are used by weekly models created without day ids.
var DefaultWeeklyDayIDs = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// eventNamespace seeds the name-based ids of generated timetable events.
var eventNamespace = uuid.MustParse("6f0d1c3e-8a4b-5b8e-9a61-3c1f2d7e4b90")

// SchoolPeriod is a period slot of a school day. Start is the wall-clock
// offset from midnight.
type SchoolPeriod struct {
	Title    string        `json:"title" yaml:"title"`
	Start    time.Duration `json:"start" yaml:"start"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// NewSchoolPeriod builds a period starting at hour:minute.
func NewSchoolPeriod(title string, hour, minute int, duration time.Duration) SchoolPeriod {
	return SchoolPeriod{
		Title:    title,
		Start:    time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute,
		Duration: duration,
	}
}

// End returns the wall-clock end offset.
func (p SchoolPeriod) End() time.Duration {
	return p.Start + p.Duration
}

// Mark converts the period into a day grid row marker.
func (p SchoolPeriod) Mark() calendar.PeriodMark {
	return calendar.PeriodMark{Title: p.Title, Offset: p.Start, Duration: p.Duration}
}

// DayTemplate lists the periods of one kind of day ordered by start.
type DayTemplate []SchoolPeriod

// NewDayTemplate returns the periods sorted by start.
func NewDayTemplate(periods ...SchoolPeriod) DayTemplate {
	t := append(DayTemplate(nil), periods...)
	sort.SliceStable(t, func(i, j int) bool { return t[i].Start < t[j].Start })
	return t
}

// Templates holds day templates keyed by weekday, with a default for the
// weekdays not listed.
type Templates struct {
	Default  DayTemplate
	Weekdays map[time.Weekday]DayTemplate
}

// For returns the template used on weekday wd.
func (t Templates) For(wd time.Weekday) DayTemplate {
	if tpl, ok := t.Weekdays[wd]; ok {
		return tpl
	}
	return t.Default
}

// ScheduledDay is a school date with the schema day it follows.
type ScheduledDay struct {
	Date  time.Time
	DayID string
}

// Model turns a timetable into dated events over a term.
type Model interface {
	Kind() ModelKind
	DayIDs() []string
	PeriodsInDay(days *SchoolDays, tt *Timetable, date time.Time) []SchoolPeriod
	CreateCalendar(days *SchoolDays, tt *Timetable) *calendar.Calendar
}

// DayModel is the Model implementation for both kinds.
type DayModel struct {
	kind      ModelKind
	dayIDs    []string
	templates Templates
}

// NewSequentialModel cycles through dayIDs on consecutive school days.
func NewSequentialModel(dayIDs []string, templates Templates) *DayModel {
	return &DayModel{kind: Sequential, dayIDs: append([]string(nil), dayIDs...), templates: templates}
}

// NewWeeklyModel maps Monday to dayIDs[0], Tuesday to dayIDs[1] and so on.
func NewWeeklyModel(dayIDs []string, templates Templates) *DayModel {
	if len(dayIDs) == 0 {
		dayIDs = DefaultWeeklyDayIDs
	}
	return &DayModel{kind: Weekly, dayIDs: append([]string(nil), dayIDs...), templates: templates}
}

func (m *DayModel) Kind() ModelKind { return m.kind }

func (m *DayModel) DayIDs() []string { return append([]string(nil), m.dayIDs...) }

func (m *DayModel) Templates() Templates { return m.templates }

// Schedule returns the school dates of the term that map to a day id.
func (m *DayModel) Schedule(days *SchoolDays) []ScheduledDay {
	if days == nil || len(m.dayIDs) == 0 {
		return nil
	}
	var out []ScheduledDay
	next := 0
	for _, d := range days.SchoolDates() {
		switch m.kind {
		case Weekly:
			idx := (int(d.Weekday()) + 6) % 7
			if idx < len(m.dayIDs) {
				out = append(out, ScheduledDay{Date: d, DayID: m.dayIDs[idx]})
			}
		default:
			out = append(out, ScheduledDay{Date: d, DayID: m.dayIDs[next%len(m.dayIDs)]})
			next++
		}
	}
	return out
}

// DayIDFor returns the schema day followed on date.
func (m *DayModel) DayIDFor(days *SchoolDays, date time.Time) (string, bool) {
	if days == nil || !days.IsSchoolDay(date) || len(m.dayIDs) == 0 {
		return "", false
	}
	if m.kind == Weekly {
		idx := (int(date.Weekday()) + 6) % 7
		if idx >= len(m.dayIDs) {
			return "", false
		}
		return m.dayIDs[idx], true
	}
	key := calendar.DateKey(dateOnly(date))
	for _, sd := range m.Schedule(days) {
		if calendar.DateKey(sd.Date) == key {
			return sd.DayID, true
		}
	}
	return "", false
}

// PeriodsInDay returns the template periods of date, or none when date is not
// a school day of the term or maps to no day id. The timetable's activities do
// not filter the result.
func (m *DayModel) PeriodsInDay(days *SchoolDays, tt *Timetable, date time.Time) []SchoolPeriod {
	if _, ok := m.DayIDFor(days, date); !ok {
		return []SchoolPeriod{}
	}
	return append([]SchoolPeriod{}, m.templates.For(date.Weekday())...)
}

// CreateCalendar lays the timetable over the term. Regenerating from the same
// input yields identical events, ids included.
func (m *DayModel) CreateCalendar(days *SchoolDays, tt *Timetable) *calendar.Calendar {
	cal := calendar.New("", "Timetable")
	if tt == nil {
		return cal
	}
	loc := tt.Location()
	termID := ""
	if days != nil {
		termID = days.ID
	}

	for _, sd := range m.Schedule(days) {
		y, mo, d := sd.Date.Date()
		for _, p := range m.templates.For(sd.Date.Weekday()) {
			for _, act := range tt.Activities(sd.DayID, p.Title) {
				id := eventID(termID, tt.SchemaID, sd, p.Title, act)
				if ex, ok := tt.FindException(sd.Date, p.Title, act); ok {
					if ex.Replacement != nil {
						ev := ex.Replacement.Clone()
						if ev.ID == "" {
							ev.ID = id + "-replacement"
						}
						ev.Privacy = tt.Privacy
						cal.Add(ev)
					}
					continue
				}
				start := time.Date(y, mo, d, 0, 0, int(p.Start/time.Second), 0, loc)
				cal.Add(&calendar.Event{
					ID:        id,
					Title:     act.Title,
					Start:     start.UTC(),
					Duration:  p.Duration,
					Owner:     act.Owner,
					Resources: append([]string(nil), act.Resources...),
					Privacy:   tt.Privacy,
				})
			}
		}
	}
	return cal
}

func eventID(termID, schemaID string, sd ScheduledDay, periodID string, act Activity) string {
	name := strings.Join([]string{termID, schemaID, calendar.DateKey(sd.Date), sd.DayID, periodID, act.Key()}, "\x00")
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// Spec describes the model as a schema document section.
func (m *DayModel) Spec() ModelSpec {
	spec := ModelSpec{Kind: m.kind, DayIDs: m.DayIDs(), Default: append([]SchoolPeriod(nil), m.templates.Default...)}
	if len(m.templates.Weekdays) > 0 {
		spec.Weekdays = make(map[string][]SchoolPeriod, len(m.templates.Weekdays))
		for wd, tpl := range m.templates.Weekdays {
			spec.Weekdays[strings.ToLower(wd.String())] = append([]SchoolPeriod(nil), tpl...)
		}
	}
	return spec
}

// ModelSpec is the serialisable form of a model.
type ModelSpec struct {
	Kind     ModelKind                 `json:"kind" yaml:"kind"`
	DayIDs   []string                  `json:"day_ids,omitempty" yaml:"day_ids,omitempty"`
	Default  []SchoolPeriod            `json:"default" yaml:"default"`
	Weekdays map[string][]SchoolPeriod `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
}

// Build validates the spec and returns the model.
func (s ModelSpec) Build() (*DayModel, error) {
	templates := Templates{Default: NewDayTemplate(s.Default...)}
	if len(s.Weekdays) > 0 {
		templates.Weekdays = make(map[time.Weekday]DayTemplate, len(s.Weekdays))
		for name, periods := range s.Weekdays {
			wd, ok := parseWeekday(name)
			if !ok {
				return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown weekday %q in day templates", name)
			}
			templates.Weekdays[wd] = NewDayTemplate(periods...)
		}
	}
	for _, tpl := range append([]DayTemplate{templates.Default}, weekdayTemplates(templates)...) {
		for _, p := range tpl {
			if p.Title == "" || p.Duration <= 0 || p.Start < 0 || p.End() > 24*time.Hour {
				return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid period %q", p.Title)
			}
		}
	}

	switch s.Kind {
	case Sequential:
		if len(s.DayIDs) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sequential model needs day ids")
		}
		return NewSequentialModel(s.DayIDs, templates), nil
	case Weekly:
		return NewWeeklyModel(s.DayIDs, templates), nil
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown model kind %q", s.Kind)
	}
}

func weekdayTemplates(t Templates) []DayTemplate {
	out := make([]DayTemplate, 0, len(t.Weekdays))
	for _, tpl := range t.Weekdays {
		out = append(out, tpl)
	}
	return out
}

func parseWeekday(name string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), name) {
			return wd, true
		}
	}
	return 0, false
}
