package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
)

func nov(day int) time.Time {
	return time.Date(2003, time.November, day, 0, 0, 0, 0, time.UTC)
}

func novAt(day, hour, minute int) time.Time {
	return time.Date(2003, time.November, day, hour, minute, 0, 0, time.UTC)
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// newSchoolDays covers 2003-11-20 (Thursday) to 2003-11-26 (Wednesday).
func newSchoolDays(t *testing.T) *SchoolDays {
	t.Helper()
	days, err := NewSchoolDays("2003 fall", nov(20), nov(26), weekdays...)
	require.NoError(t, err)
	return days
}

func abDays() []SchemaDay {
	return []SchemaDay{
		{ID: "A", PeriodIDs: []string{"Green", "Blue"}},
		{ID: "B", PeriodIDs: []string{"Green", "Blue"}},
	}
}

// newABModel alternates days A and B. Green runs 9:00-10:30 every day; Blue
// runs 11:00-12:30 except on Fridays, when it runs 10:30-12:00.
func newABModel() *DayModel {
	return NewSequentialModel([]string{"A", "B"}, Templates{
		Default: NewDayTemplate(
			NewSchoolPeriod("Green", 9, 0, 90*time.Minute),
			NewSchoolPeriod("Blue", 11, 0, 90*time.Minute),
		),
		Weekdays: map[time.Weekday]DayTemplate{
			time.Friday: NewDayTemplate(
				NewSchoolPeriod("Blue", 10, 30, 90*time.Minute),
				NewSchoolPeriod("Green", 9, 0, 90*time.Minute),
			),
		},
	})
}

// newABTimetable:
//
//	Period | Day A    Day B
//	Green  | English  Biology
//	Blue   | Math     Geography
func newABTimetable(t *testing.T) *Timetable {
	t.Helper()
	tt := New("sequential", abDays(), newABModel())
	require.NoError(t, tt.Add("A", "Green", NewActivity("English", "")))
	require.NoError(t, tt.Add("A", "Blue", NewActivity("Math", "")))
	require.NoError(t, tt.Add("B", "Green", NewActivity("Biology", "")))
	require.NoError(t, tt.Add("B", "Blue", NewActivity("Geography", "")))
	return tt
}

// emptyAB returns an activity-free timetable of the A/B schema.
func emptyAB() *Timetable {
	return New("sequential", abDays(), newABModel())
}

// byDay renders the calendar as one "HH:MM" → title map per term date.
func byDay(cal *calendar.Calendar, days *SchoolDays) []map[string]string {
	var out []map[string]string
	for _, d := range days.Dates() {
		day := map[string]string{}
		for _, occ := range cal.Expand(d, d.AddDate(0, 0, 1)) {
			day[occ.Start.Format("15:04")] = occ.Event.Title
		}
		out = append(out, day)
	}
	return out
}
