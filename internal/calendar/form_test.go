package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

func TestMakeRecurrenceRuleDefaults(t *testing.T) {
	rule, err := MakeRecurrenceRule(RuleForm{Frequency: Monthly})
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Interval())
	assert.Equal(t, MonthDay, rule.MonthlyMode())
	assert.Equal(t, 0, rule.Count())
	_, bounded := rule.Until()
	assert.False(t, bounded)
}

func TestMakeRecurrenceRuleRanges(t *testing.T) {
	until := at(30, 0, 0)

	counted, err := MakeRecurrenceRule(RuleForm{Frequency: Daily, Range: RangeCount, Count: 4, Until: &until})
	require.NoError(t, err)
	assert.Equal(t, 4, counted.Count())
	_, bounded := counted.Until()
	assert.False(t, bounded)

	limited, err := MakeRecurrenceRule(RuleForm{Frequency: Daily, Range: RangeUntil, Count: 4, Until: &until})
	require.NoError(t, err)
	assert.Equal(t, 0, limited.Count())

	forever, err := MakeRecurrenceRule(RuleForm{Frequency: Daily, Range: RangeForever, Count: 4, Until: &until})
	require.NoError(t, err)
	assert.Equal(t, 0, forever.Count())

	_, err = MakeRecurrenceRule(RuleForm{Frequency: Daily, Range: RangeCount})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRecurrenceRule))
	_, err = MakeRecurrenceRule(RuleForm{Frequency: Daily, Range: RangeUntil})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRecurrenceRule))
}

func TestMakeRecurrenceRuleIgnoresForeignFields(t *testing.T) {
	rule, err := MakeRecurrenceRule(RuleForm{
		Frequency:   Daily,
		Interval:    2,
		Weekdays:    []time.Weekday{time.Monday},
		MonthlyMode: LastWeekday,
	})
	require.NoError(t, err)
	assert.Empty(t, rule.Spec().Weekdays)
	assert.Equal(t, MonthlyMode(""), rule.MonthlyMode())
}

func TestBookResources(t *testing.T) {
	room := New("room-1", "Room 1")
	projector := New("projector", "Projector")

	first := mustEvent(t, "e1", "History", at(20, 9, 0), time.Hour)
	first.CalendarID = "teacher-1"
	require.NoError(t, BookResources(first, []*Calendar{room, projector}, at(20, 0, 0), at(21, 0, 0)))
	assert.Equal(t, []string{"room-1", "projector"}, first.Resources)
	assert.Len(t, room.Events, 1)
	assert.Equal(t, "teacher-1", room.Events[0].CalendarID)

	second := mustEvent(t, "e2", "Art", at(20, 9, 30), time.Hour)
	err := BookResources(second, []*Calendar{room}, at(20, 0, 0), at(21, 0, 0))
	assert.True(t, errors.Is(err, appErrors.ErrBookingConflict))
	assert.Empty(t, second.Resources)
	assert.Len(t, room.Events, 1)
}
