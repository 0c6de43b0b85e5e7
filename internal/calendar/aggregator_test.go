package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(events []EventForDisplay) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Title
	}
	return out
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "English", ShortTitle("English"))
	assert.Equal(t, "Sixteen chars ok", ShortTitle("Sixteen chars ok"))
	assert.Equal(t, "Mathematics Adv...", ShortTitle("Mathematics Advanced"))
	assert.Equal(t, "Ąžuolų ąžuolyna...", ShortTitle("Ąžuolų ąžuolynas ir eglės"))
}

func TestAggregatorAppliesSourceColors(t *testing.T) {
	own := New("person-1", "Alice")
	own.Add(mustEvent(t, "e1", "Own", at(20, 9, 0), time.Hour))
	overlay := New("group-1", "Chess club")
	overlay.Add(mustEvent(t, "e2", "Chess", at(20, 15, 0), time.Hour))

	agg := NewAggregator(own, time.UTC,
		Source{Calendar: own, Color1: DefaultColor1, Color2: DefaultColor2},
		Source{Calendar: overlay, Color1: "#eed680", Color2: "#d1940c"},
	)
	events := agg.Events(at(20, 0, 0), at(21, 0, 0))
	require.Len(t, events, 2)
	assert.Equal(t, DefaultColor1, events[0].Color1)
	assert.Equal(t, "person-1", events[0].SourceCalendarID)
	assert.Equal(t, "#d1940c", events[1].Color2)
	assert.Equal(t, "group-1", events[1].HomeCalendarID)
}

func TestAggregatorDropsBookingEchoes(t *testing.T) {
	person := New("person-1", "Alice")
	room := New("room-1", "Room 1")

	booking := mustEvent(t, "b1", "Physics", at(20, 10, 0), time.Hour)
	booking.Resources = []string{"room-1"}
	person.Add(booking)
	room.Add(booking)

	other := mustEvent(t, "b2", "Chemistry", at(20, 12, 0), time.Hour)
	other.CalendarID = "person-2"
	room.Add(other)

	agg := NewAggregator(person, time.UTC, Source{Calendar: person}, Source{Calendar: room})
	events := agg.Events(at(20, 0, 0), at(21, 0, 0))
	assert.Equal(t, []string{"Physics", "Chemistry"}, titles(events))
	assert.Equal(t, []string{"room-1"}, events[0].Resources)

	// Viewing the room itself still lists the booking.
	roomView := NewAggregator(room, time.UTC, Source{Calendar: room})
	assert.Len(t, roomView.Events(at(20, 0, 0), at(21, 0, 0)), 2)
}

func TestDaysAttributionAroundMidnight(t *testing.T) {
	cal := New("c", "Calendar")
	cal.Add(
		mustEvent(t, "to-midnight", "Ends at midnight", at(20, 22, 0), 2*time.Hour),
		mustEvent(t, "past-midnight", "Crosses midnight", at(20, 23, 0), 2*time.Hour),
		mustEvent(t, "morning", "Morning", at(21, 8, 0), time.Hour),
	)

	agg := NewAggregator(cal, time.UTC, Source{Calendar: cal})
	days := agg.Days(at(20, 0, 0), at(22, 0, 0))
	require.Len(t, days, 2)
	assert.Equal(t, at(20, 0, 0), days[0].Date)
	assert.Equal(t, []string{"Ends at midnight", "Crosses midnight"}, titles(days[0].Events))
	assert.Equal(t, []string{"Crosses midnight", "Morning"}, titles(days[1].Events))
}

func TestDaysUseViewerLocation(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	cal := New("c", "Calendar")
	cal.Add(mustEvent(t, "late", "Late meeting", at(21, 3, 0), time.Hour))
	holiday, err := NewAllDayEvent("h", "Thanksgiving break", at(20, 0, 0), 2)
	require.NoError(t, err)
	cal.Add(holiday)

	agg := NewAggregator(cal, est, Source{Calendar: cal})
	days := agg.Days(time.Date(2003, time.November, 20, 0, 0, 0, 0, est), time.Date(2003, time.November, 23, 0, 0, 0, 0, est))
	require.Len(t, days, 3)

	assert.Equal(t, []string{"Late meeting"}, titles(days[0].Events))
	assert.Equal(t, 22, days[0].Events[0].StartLocal.Hour())
	assert.Empty(t, days[1].Events)

	assert.Equal(t, []string{"Thanksgiving break"}, titles(days[0].AllDay))
	assert.Equal(t, []string{"Thanksgiving break"}, titles(days[1].AllDay))
	assert.Empty(t, days[2].AllDay)
}

func TestDaysEmptyRange(t *testing.T) {
	agg := NewAggregator(New("c", "C"), nil)
	assert.Empty(t, agg.Days(at(20, 0, 0), at(20, 0, 0)))
	assert.Empty(t, agg.DayEvents(at(20, 0, 0)))
}

func TestDaysRepeatingEvents(t *testing.T) {
	cal := New("c", "Calendar")
	series := mustEvent(t, "s", "Standup", at(17, 9, 0), 15*time.Minute)
	series.Recurrence = mustRule(t, RuleSpec{Frequency: Weekly, Interval: 1, Weekdays: []time.Weekday{time.Monday, time.Thursday}})
	cal.Add(series)

	agg := NewAggregator(cal, time.UTC, Source{Calendar: cal})
	days := agg.Days(at(17, 0, 0), at(24, 0, 0))
	require.Len(t, days, 7)
	var hits []int
	for _, d := range days {
		if len(d.Events) > 0 {
			hits = append(hits, d.Date.Day())
		}
	}
	assert.Equal(t, []int{17, 20}, hits)
	assert.Equal(t, []string{"Standup"}, titles(agg.DayEvents(at(20, 12, 0))))
}
