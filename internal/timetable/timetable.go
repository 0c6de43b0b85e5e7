package timetable

import (
	"reflect"
	"time"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// SchemaDay is a day of a schema with its ordered period ids.
type SchemaDay struct {
	ID        string   `json:"id" yaml:"id"`
	PeriodIDs []string `json:"periods" yaml:"periods"`
}

// Exception cancels one activity on one date, optionally replacing it with
// a differently timed event.
type Exception struct {
	Date        time.Time       `json:"date"`
	PeriodID    string          `json:"period_id"`
	Activity    Activity        `json:"activity"`
	Replacement *calendar.Event `json:"replacement,omitempty"`
}

// NewException builds an exception for the calendar date of date.
func NewException(date time.Time, periodID string, act Activity) Exception {
	return Exception{Date: dateOnly(date), PeriodID: periodID, Activity: act}
}

// WithReplacement returns a copy replacing the cancelled activity with ev.
func (e Exception) WithReplacement(ev *calendar.Event) Exception {
	e.Replacement = ev
	return e
}

// Matches reports whether the exception applies to act in period on date.
func (e Exception) Matches(date time.Time, periodID string, act Activity) bool {
	return e.PeriodID == periodID && e.Activity.Equal(act) &&
		calendar.DateKey(dateOnly(e.Date)) == calendar.DateKey(dateOnly(date))
}

func (e Exception) equal(other Exception) bool {
	return e.Matches(other.Date, other.PeriodID, other.Activity) && reflect.DeepEqual(e.Replacement, other.Replacement)
}

// Item is one activity in one slot, as returned by Items.
type Item struct {
	DayID    string   `json:"day_id"`
	PeriodID string   `json:"period_id"`
	Activity Activity `json:"activity"`
}

type slot struct {
	day    string
	period string
}

// Timetable is an instance of a schema: activities placed in the periods of
// its days, plus dated exceptions.
type Timetable struct {
	SchemaID   string
	Timezone   string
	Privacy    calendar.Privacy
	Model      Model
	Exceptions []Exception

	days  []SchemaDay
	slots map[slot]map[string]Activity
}

// New returns an empty timetable with the given day layout.
func New(schemaID string, days []SchemaDay, model Model) *Timetable {
	tt := &Timetable{
		SchemaID: schemaID,
		Model:    model,
		Privacy:  calendar.PrivacyPublic,
		slots:    make(map[slot]map[string]Activity),
	}
	for _, d := range days {
		tt.days = append(tt.days, SchemaDay{ID: d.ID, PeriodIDs: append([]string(nil), d.PeriodIDs...)})
	}
	return tt
}

// Days returns the day layout.
func (t *Timetable) Days() []SchemaDay {
	out := make([]SchemaDay, len(t.days))
	for i, d := range t.days {
		out[i] = SchemaDay{ID: d.ID, PeriodIDs: append([]string(nil), d.PeriodIDs...)}
	}
	return out
}

// DayIDs returns the day ids in schema order.
func (t *Timetable) DayIDs() []string {
	out := make([]string, len(t.days))
	for i, d := range t.days {
		out[i] = d.ID
	}
	return out
}

// HasSlot reports whether the schema has the period on the day.
func (t *Timetable) HasSlot(dayID, periodID string) bool {
	for _, d := range t.days {
		if d.ID != dayID {
			continue
		}
		for _, p := range d.PeriodIDs {
			if p == periodID {
				return true
			}
		}
	}
	return false
}

// Location returns the timezone period times are read in.
func (t *Timetable) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Add places act into a slot. Adding an equal activity twice keeps one.
func (t *Timetable) Add(dayID, periodID string, act Activity) error {
	if !t.HasSlot(dayID, periodID) {
		return appErrors.Clonef(appErrors.ErrNotFound, "no period %s on day %s", periodID, dayID)
	}
	key := slot{dayID, periodID}
	if t.slots[key] == nil {
		t.slots[key] = make(map[string]Activity)
	}
	act.Resources = canonicalResources(act.Resources)
	t.slots[key][act.Key()] = act
	return nil
}

// Remove takes act out of a slot and reports whether it was there.
func (t *Timetable) Remove(dayID, periodID string, act Activity) bool {
	acts := t.slots[slot{dayID, periodID}]
	if _, ok := acts[act.Key()]; !ok {
		return false
	}
	delete(acts, act.Key())
	return true
}

// Clear empties a slot.
func (t *Timetable) Clear(dayID, periodID string) {
	delete(t.slots, slot{dayID, periodID})
}

// Activities returns the activities of a slot in canonical order.
func (t *Timetable) Activities(dayID, periodID string) []Activity {
	acts := t.slots[slot{dayID, periodID}]
	out := make([]Activity, 0, len(acts))
	for _, a := range acts {
		out = append(out, a)
	}
	sortActivities(out)
	return out
}

// Items lists every activity by day, then period, in schema order.
func (t *Timetable) Items() []Item {
	var out []Item
	for _, d := range t.days {
		for _, p := range d.PeriodIDs {
			for _, act := range t.Activities(d.ID, p) {
				out = append(out, Item{DayID: d.ID, PeriodID: p, Activity: act})
			}
		}
	}
	return out
}

// AddException records an exception.
func (t *Timetable) AddException(ex Exception) {
	ex.Date = dateOnly(ex.Date)
	t.Exceptions = append(t.Exceptions, ex)
}

// FindException returns the exception cancelling act in period on date.
func (t *Timetable) FindException(date time.Time, periodID string, act Activity) (Exception, bool) {
	for _, ex := range t.Exceptions {
		if ex.Matches(date, periodID, act) {
			return ex, true
		}
	}
	return Exception{}, false
}

// CloneEmpty returns a timetable with the same days, periods and model but
// no activities or exceptions.
func (t *Timetable) CloneEmpty() *Timetable {
	clone := New(t.SchemaID, t.days, t.Model)
	clone.Timezone = t.Timezone
	clone.Privacy = t.Privacy
	return clone
}

// SameSchema reports whether both timetables share days, periods and model.
func (t *Timetable) SameSchema(other *Timetable) bool {
	if other == nil || len(t.days) != len(other.days) {
		return false
	}
	for i := range t.days {
		if t.days[i].ID != other.days[i].ID || !reflect.DeepEqual(t.days[i].PeriodIDs, other.days[i].PeriodIDs) {
			return false
		}
	}
	return reflect.DeepEqual(t.Model, other.Model)
}

// Update adds every activity and exception of other. Both must share the
// schema.
func (t *Timetable) Update(other *Timetable) error {
	if !t.SameSchema(other) {
		return appErrors.Clonef(appErrors.ErrSchemaMismatch, "cannot merge timetable of schema %q into %q", other.schemaID(), t.SchemaID)
	}
	for _, item := range other.Items() {
		if err := t.Add(item.DayID, item.PeriodID, item.Activity); err != nil {
			return err
		}
	}
	t.Exceptions = append(t.Exceptions, other.Exceptions...)
	return nil
}

func (t *Timetable) schemaID() string {
	if t == nil {
		return ""
	}
	return t.SchemaID
}

// Equal compares layout, activities and exceptions.
func (t *Timetable) Equal(other *Timetable) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.SameSchema(other) || len(t.Exceptions) != len(other.Exceptions) {
		return false
	}
	a, b := t.Items(), other.Items()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].DayID != b[i].DayID || a[i].PeriodID != b[i].PeriodID || !a[i].Activity.Equal(b[i].Activity) {
			return false
		}
	}
	for i := range t.Exceptions {
		if !t.Exceptions[i].equal(other.Exceptions[i]) {
			return false
		}
	}
	return true
}
