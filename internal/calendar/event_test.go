package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

func mustEvent(t *testing.T, id, title string, start time.Time, d time.Duration) *Event {
	t.Helper()
	ev, err := NewEvent(id, title, start, d)
	require.NoError(t, err)
	return ev
}

func dailyUntil(t *testing.T, until time.Time) *RecurrenceRule {
	t.Helper()
	return mustRule(t, RuleSpec{Frequency: Daily, Interval: 1, Until: &until})
}

func starts(occ []Occurrence) []time.Time {
	out := make([]time.Time, len(occ))
	for i, o := range occ {
		out[i] = o.Start
	}
	return out
}

func TestNewEventValidation(t *testing.T) {
	_, err := NewEvent("e1", "Broken", at(20, 9, 0), -time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInterval))

	est := time.FixedZone("EST", -5*3600)
	ev := mustEvent(t, "e1", "Assembly", time.Date(2003, time.November, 20, 8, 0, 0, 0, est), time.Hour)
	assert.Equal(t, time.UTC, ev.Start.Location())
	assert.Equal(t, at(20, 13, 0), ev.Start)
	assert.Equal(t, PrivacyPublic, ev.Privacy)

	_, err = NewAllDayEvent("e2", "Holiday", at(20, 0, 0), 0)
	assert.Error(t, err)

	allDay, err := NewAllDayEvent("e2", "Holiday", at(20, 15, 0), 2)
	require.NoError(t, err)
	assert.True(t, allDay.AllDay)
	assert.Equal(t, at(20, 0, 0), allDay.Start)
	assert.Equal(t, 48*time.Hour, allDay.Duration)
}

func TestEventExpandIncludesRunningOccurrences(t *testing.T) {
	ev := mustEvent(t, "late", "Night shift", at(19, 23, 0), 2*time.Hour)
	ev.Recurrence = mustRule(t, RuleSpec{Frequency: Daily, Interval: 1})

	got := ev.Expand(at(21, 0, 0), at(22, 0, 0))
	assert.Equal(t, []time.Time{at(20, 23, 0), at(21, 23, 0)}, starts(got))
	assert.Equal(t, at(21, 1, 0), got[0].End)

	single := mustEvent(t, "once", "Concert", at(20, 23, 0), 2*time.Hour)
	assert.Len(t, single.Expand(at(21, 0, 0), at(22, 0, 0)), 1)
	assert.Empty(t, single.Expand(at(21, 1, 0), at(22, 0, 0)))
}

func TestEventExpandZeroDuration(t *testing.T) {
	ev := mustEvent(t, "bell", "Bell", at(20, 9, 0), 0)

	assert.Len(t, ev.Expand(at(20, 9, 0), at(20, 10, 0)), 1)
	assert.Empty(t, ev.Expand(at(20, 8, 0), at(20, 9, 0)))
}

func TestDeleteOccurrenceModes(t *testing.T) {
	window := func(ev *Event) []time.Time {
		return starts(ev.Expand(at(1, 0, 0), at(30, 0, 0)))
	}
	newSeries := func() *Event {
		ev := mustEvent(t, "series", "Lab", at(1, 9, 0), time.Hour)
		ev.Recurrence = dailyUntil(t, at(10, 0, 0))
		return ev
	}

	t.Run("current", func(t *testing.T) {
		ev := newSeries()
		updated, err := ev.DeleteOccurrence(DeleteCurrent, at(5, 9, 0))
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Len(t, window(updated), 9)
		assert.NotContains(t, window(updated), at(5, 9, 0))
		assert.Len(t, window(ev), 10, "original must not change")
	})

	t.Run("current in counted series", func(t *testing.T) {
		ev := mustEvent(t, "counted", "Lab", at(1, 9, 0), time.Hour)
		ev.Recurrence = mustRule(t, RuleSpec{Frequency: Daily, Interval: 1, Count: 3})
		updated, err := ev.DeleteOccurrence(DeleteCurrent, at(2, 9, 0))
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, []time.Time{at(1, 9, 0), at(2, 9, 0), at(3, 9, 0)}, window(ev))
		assert.Equal(t, []time.Time{at(1, 9, 0), at(3, 9, 0)}, window(updated))
		assert.Equal(t, 2, updated.Recurrence.Count())

		again, err := updated.DeleteOccurrence(DeleteCurrent, at(2, 9, 0))
		require.NoError(t, err)
		assert.Equal(t, window(updated), window(again), "deleting a removed date changes nothing")
	})

	t.Run("last of counted series", func(t *testing.T) {
		ev := mustEvent(t, "counted", "Lab", at(1, 9, 0), time.Hour)
		ev.Recurrence = mustRule(t, RuleSpec{Frequency: Daily, Interval: 1, Count: 1})
		updated, err := ev.DeleteOccurrence(DeleteCurrent, at(1, 9, 0))
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("future", func(t *testing.T) {
		updated, err := newSeries().DeleteOccurrence(DeleteFuture, at(5, 9, 0))
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, []time.Time{at(1, 9, 0), at(2, 9, 0), at(3, 9, 0), at(4, 9, 0)}, window(updated))
	})

	t.Run("future from first", func(t *testing.T) {
		updated, err := newSeries().DeleteOccurrence(DeleteFuture, at(1, 9, 0))
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("all", func(t *testing.T) {
		updated, err := newSeries().DeleteOccurrence(DeleteAll, at(5, 9, 0))
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("single event", func(t *testing.T) {
		updated, err := mustEvent(t, "once", "Trip", at(5, 9, 0), time.Hour).DeleteOccurrence(DeleteCurrent, at(5, 9, 0))
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := newSeries().DeleteOccurrence("sometimes", at(5, 9, 0))
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	})
}
