package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

func formatAll(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.UTC().Format(time.RFC3339)
	}
	return out
}

func TestRRuleMatchesNativeExpansion(t *testing.T) {
	until := date(2004, time.March, 1, 0)
	cases := map[string]struct {
		spec RuleSpec
		base time.Time
	}{
		"weekly":       {RuleSpec{Frequency: Weekly, Interval: 2, Count: 6, Weekdays: []time.Weekday{time.Monday, time.Wednesday}}, at(3, 9, 0)},
		"daily until":  {RuleSpec{Frequency: Daily, Interval: 3, Until: &until}, at(20, 8, 30)},
		"nth weekday":  {RuleSpec{Frequency: Monthly, Interval: 1, Count: 5, MonthlyMode: NthWeekday}, at(20, 9, 0)},
		"last weekday": {RuleSpec{Frequency: Monthly, Interval: 1, Count: 5, MonthlyMode: LastWeekday}, at(27, 9, 0)},
		"monthday":     {RuleSpec{Frequency: Monthly, Interval: 2, Count: 4}, at(15, 9, 0)},
		"yearly":       {RuleSpec{Frequency: Yearly, Interval: 1, Count: 3}, at(20, 9, 0)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rule := mustRule(t, tc.spec)
			rr, err := rule.RRule(tc.base)
			require.NoError(t, err)

			native := rule.Expand(tc.base, time.Time{}, time.Time{}).Collect()
			assert.Equal(t, formatAll(rr.All()), formatAll(native))
		})
	}
}

func TestRRuleStringRoundTrip(t *testing.T) {
	rule := mustRule(t, RuleSpec{Frequency: Weekly, Interval: 2, Count: 10, Weekdays: []time.Weekday{time.Monday, time.Wednesday}})

	text := rule.RRuleString(at(3, 9, 0))
	assert.Contains(t, text, "FREQ=WEEKLY")
	assert.Contains(t, text, "INTERVAL=2")
	assert.Contains(t, text, "COUNT=10")

	parsed, err := ParseRRule("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;COUNT=10")
	require.NoError(t, err)
	assert.True(t, rule.Equal(parsed))
}

func TestParseRRuleMonthlyModes(t *testing.T) {
	nth, err := ParseRRule("FREQ=MONTHLY;BYDAY=3TH")
	require.NoError(t, err)
	assert.Equal(t, NthWeekday, nth.MonthlyMode())

	last, err := ParseRRule("FREQ=MONTHLY;BYDAY=-1TH")
	require.NoError(t, err)
	assert.Equal(t, LastWeekday, last.MonthlyMode())

	plain, err := ParseRRule("FREQ=MONTHLY;INTERVAL=3", at(20, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, MonthDay, plain.MonthlyMode())
	assert.Equal(t, 3, plain.Interval())
	assert.True(t, plain.IsException(at(20, 9, 0)))
}

func TestParseRRuleRejectsUnsupportedParts(t *testing.T) {
	for _, text := range []string{
		"FREQ=HOURLY",
		"FREQ=MONTHLY;BYDAY=MO;BYSETPOS=-1",
		"FREQ=MONTHLY;BYDAY=MO,TU",
		"FREQ=YEARLY;BYWEEKNO=20",
		"NOT A RULE",
	} {
		_, err := ParseRRule(text)
		require.Error(t, err, text)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidRecurrenceRule), text)
	}
}

func TestInterchangeMatchesNativeExpansion(t *testing.T) {
	base := at(4, 15, 0)
	cases := map[string]RuleSpec{
		"counted": {Frequency: Weekly, Interval: 1, Count: 4, Exceptions: []time.Time{at(11, 0, 0)}},
		"until":   {Frequency: Daily, Interval: 1, Until: timePtr(at(10, 0, 0)), Exceptions: []time.Time{at(5, 0, 0), at(7, 0, 0)}},
		"plain":   {Frequency: Daily, Interval: 2, Count: 3},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			rule := mustRule(t, spec)
			value, exdates := rule.Interchange(base)

			lines := []string{"DTSTART:" + base.Format("20060102T150405Z"), "RRULE:" + value}
			for _, ex := range exdates {
				assert.Equal(t, base.Format("150405"), ex.Format("150405"), "exdates carry the start time")
				lines = append(lines, "EXDATE:"+ex.Format("20060102T150405Z"))
			}
			set, err := rrule.StrToRRuleSet(strings.Join(lines, "\n"))
			require.NoError(t, err)

			native := rule.Expand(base, time.Time{}, time.Time{}).Collect()
			assert.Equal(t, formatAll(native), formatAll(set.All()))
		})
	}

	value, _ := mustRule(t, cases["counted"]).Interchange(base)
	assert.NotContains(t, value, "COUNT=")
	assert.Contains(t, value, "UNTIL=20031202T150000Z")
}

func timePtr(t time.Time) *time.Time { return &t }
