package calendar

import (
	"sort"
	"time"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// Frequency is the base unit a rule repeats in.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// MonthlyMode selects the landing day of monthly rules.
type MonthlyMode string

const (
	// MonthDay repeats on the same day of the month.
	MonthDay MonthlyMode = "monthday"
	// NthWeekday repeats on the same weekday occurrence ("3rd Thursday").
	NthWeekday MonthlyMode = "weekday"
	// LastWeekday repeats on the last occurrence of the weekday.
	LastWeekday MonthlyMode = "lastweekday"
)

// maxEmptySteps bounds how many consecutive steps without a candidate are
// tolerated (e.g. Feb 29 yearly rules) before expansion gives up.
const maxEmptySteps = 1000

// RuleSpec carries the raw fields of a recurrence rule.
type RuleSpec struct {
	Frequency   Frequency      `json:"frequency" yaml:"frequency"`
	Interval    int            `json:"interval" yaml:"interval"`
	Count       int            `json:"count,omitempty" yaml:"count,omitempty"`
	Until       *time.Time     `json:"until,omitempty" yaml:"until,omitempty"`
	Exceptions  []time.Time    `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	Weekdays    []time.Weekday `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	MonthlyMode MonthlyMode    `json:"monthly_mode,omitempty" yaml:"monthly_mode,omitempty"`
}

// RecurrenceRule is a validated, immutable recurrence rule.
type RecurrenceRule struct {
	spec       RuleSpec
	exceptions map[string]struct{}
}

// NewRecurrenceRule validates spec and returns the rule. Invalid combinations
// never reach expansion.
func NewRecurrenceRule(spec RuleSpec) (*RecurrenceRule, error) {
	switch spec.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unknown frequency %q", spec.Frequency)
	}
	if spec.Interval < 1 {
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "interval must be at least 1, got %d", spec.Interval)
	}
	if spec.Count < 0 {
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "count must not be negative, got %d", spec.Count)
	}
	if spec.Count > 0 && spec.Until != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidRecurrenceRule, "count and until are mutually exclusive")
	}
	if len(spec.Weekdays) > 0 && spec.Frequency != Weekly {
		return nil, appErrors.Clone(appErrors.ErrInvalidRecurrenceRule, "weekdays only apply to weekly rules")
	}
	for _, wd := range spec.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "invalid weekday %d", wd)
		}
	}
	switch spec.MonthlyMode {
	case "":
		if spec.Frequency == Monthly {
			spec.MonthlyMode = MonthDay
		}
	case MonthDay, NthWeekday, LastWeekday:
		if spec.Frequency != Monthly {
			return nil, appErrors.Clone(appErrors.ErrInvalidRecurrenceRule, "monthly mode only applies to monthly rules")
		}
	default:
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unknown monthly mode %q", spec.MonthlyMode)
	}

	rule := &RecurrenceRule{exceptions: make(map[string]struct{}, len(spec.Exceptions))}
	rule.spec = RuleSpec{
		Frequency:   spec.Frequency,
		Interval:    spec.Interval,
		Count:       spec.Count,
		MonthlyMode: spec.MonthlyMode,
		Weekdays:    normaliseWeekdays(spec.Weekdays),
	}
	if spec.Until != nil {
		until := spec.Until.UTC()
		rule.spec.Until = &until
	}
	for _, d := range spec.Exceptions {
		key := DateKey(d)
		if _, seen := rule.exceptions[key]; seen {
			continue
		}
		rule.exceptions[key] = struct{}{}
		rule.spec.Exceptions = append(rule.spec.Exceptions, DateOf(d, time.UTC))
	}
	sort.Slice(rule.spec.Exceptions, func(i, j int) bool {
		return rule.spec.Exceptions[i].Before(rule.spec.Exceptions[j])
	})
	return rule, nil
}

func normaliseWeekdays(in []time.Weekday) []time.Weekday {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[time.Weekday]bool, len(in))
	out := make([]time.Weekday, 0, len(in))
	for _, wd := range in {
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Spec returns a copy of the normalised rule fields.
func (r *RecurrenceRule) Spec() RuleSpec {
	spec := r.spec
	if r.spec.Until != nil {
		until := *r.spec.Until
		spec.Until = &until
	}
	spec.Exceptions = append([]time.Time(nil), r.spec.Exceptions...)
	spec.Weekdays = append([]time.Weekday(nil), r.spec.Weekdays...)
	return spec
}

func (r *RecurrenceRule) Frequency() Frequency     { return r.spec.Frequency }
func (r *RecurrenceRule) Interval() int            { return r.spec.Interval }
func (r *RecurrenceRule) Count() int               { return r.spec.Count }
func (r *RecurrenceRule) MonthlyMode() MonthlyMode { return r.spec.MonthlyMode }

// Until returns the inclusive end date, if any.
func (r *RecurrenceRule) Until() (time.Time, bool) {
	if r.spec.Until == nil {
		return time.Time{}, false
	}
	return *r.spec.Until, true
}

// IsException reports whether t falls on an excluded date.
func (r *RecurrenceRule) IsException(t time.Time) bool {
	_, ok := r.exceptions[DateKey(t)]
	return ok
}

// WithUntil returns a copy bounded by until. The count bound is dropped.
func (r *RecurrenceRule) WithUntil(until time.Time) (*RecurrenceRule, error) {
	spec := r.Spec()
	spec.Count = 0
	spec.Until = &until
	return NewRecurrenceRule(spec)
}

// WithCount returns a copy bounded by count. The until bound is dropped.
func (r *RecurrenceRule) WithCount(count int) (*RecurrenceRule, error) {
	spec := r.Spec()
	spec.Until = nil
	spec.Count = count
	return NewRecurrenceRule(spec)
}

// WithException returns a copy that additionally skips date.
func (r *RecurrenceRule) WithException(date time.Time) (*RecurrenceRule, error) {
	spec := r.Spec()
	spec.Exceptions = append(spec.Exceptions, date)
	return NewRecurrenceRule(spec)
}

// OccursOn reports whether a series starting at base has an occurrence on
// the UTC date of date.
func (r *RecurrenceRule) OccursOn(base, date time.Time) bool {
	day := DateOf(date, time.UTC)
	_, ok := r.Expand(base, day, day.AddDate(0, 0, 1)).Next()
	return ok
}

// Equal compares rules by value.
func (r *RecurrenceRule) Equal(other *RecurrenceRule) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, b := r.spec, other.spec
	if a.Frequency != b.Frequency || a.Interval != b.Interval || a.Count != b.Count || a.MonthlyMode != b.MonthlyMode {
		return false
	}
	if (a.Until == nil) != (b.Until == nil) || (a.Until != nil && !a.Until.Equal(*b.Until)) {
		return false
	}
	if len(a.Weekdays) != len(b.Weekdays) || len(a.Exceptions) != len(b.Exceptions) {
		return false
	}
	for i := range a.Weekdays {
		if a.Weekdays[i] != b.Weekdays[i] {
			return false
		}
	}
	for i := range a.Exceptions {
		if !a.Exceptions[i].Equal(b.Exceptions[i]) {
			return false
		}
	}
	return true
}

// Expand returns the occurrence starts of a series beginning at base that
// fall into [from, to). A zero to leaves the window open at the end; such an
// iterator only terminates when the rule has a count or until bound.
//
// Excluded dates are skipped without consuming the count budget.
func (r *RecurrenceRule) Expand(base, from, to time.Time) *Occurrences {
	o := &Occurrences{rule: r, base: base.UTC(), from: from.UTC()}
	if !to.IsZero() {
		o.to = to.UTC()
	}
	return o
}

// HasOccurrences reports whether a series starting at base yields anything.
func (r *RecurrenceRule) HasOccurrences(base time.Time) bool {
	_, ok := r.Expand(base, time.Time{}, time.Time{}).Next()
	return ok
}

// Occurrences lazily walks one expansion. It is not safe for concurrent use;
// call Expand again for an independent walk.
type Occurrences struct {
	rule     *RecurrenceRule
	base     time.Time
	from     time.Time
	to       time.Time
	step     int
	empty    int
	produced int
	queue    []time.Time
	done     bool
}

// Next returns the next occurrence start.
func (o *Occurrences) Next() (time.Time, bool) {
	spec := o.rule.spec
	for !o.done {
		if len(o.queue) == 0 {
			o.fill()
			continue
		}
		candidate := o.queue[0]
		o.queue = o.queue[1:]

		if candidate.Before(o.base) {
			continue
		}
		if spec.Until != nil && DateOf(candidate, time.UTC).After(DateOf(*spec.Until, time.UTC)) {
			o.done = true
			break
		}
		if !o.to.IsZero() && !candidate.Before(o.to) {
			o.done = true
			break
		}
		if o.rule.IsException(candidate) {
			continue
		}
		if spec.Count > 0 && o.produced >= spec.Count {
			o.done = true
			break
		}
		o.produced++
		if candidate.Before(o.from) {
			continue
		}
		return candidate, true
	}
	return time.Time{}, false
}

// Collect drains the iterator.
func (o *Occurrences) Collect() []time.Time {
	var out []time.Time
	for {
		t, ok := o.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

func (o *Occurrences) fill() {
	candidates := o.rule.candidates(o.base, o.step)
	o.step++
	if len(candidates) == 0 {
		o.empty++
		if o.empty > maxEmptySteps {
			o.done = true
		}
		return
	}
	o.empty = 0
	o.queue = candidates
}

// candidates returns the starts generated by the step-th repetition, in order.
func (r *RecurrenceRule) candidates(base time.Time, step int) []time.Time {
	y, m, d := base.Date()
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), time.UTC)
	}
	n := step * r.spec.Interval

	switch r.spec.Frequency {
	case Daily:
		return []time.Time{at(y, m, d+n)}
	case Weekly:
		weekdays := r.spec.Weekdays
		if len(weekdays) == 0 {
			weekdays = []time.Weekday{base.Weekday()}
		}
		out := make([]time.Time, 0, len(weekdays))
		for offset := 0; offset < 7; offset++ {
			day := at(y, m, d+7*n+offset)
			for _, wd := range weekdays {
				if day.Weekday() == wd {
					out = append(out, day)
					break
				}
			}
		}
		return out
	case Monthly:
		total := y*12 + int(m) - 1 + n
		year, month := total/12, time.Month(total%12+1)
		switch r.spec.MonthlyMode {
		case NthWeekday:
			if day, ok := nthWeekday(year, month, base.Weekday(), (d+6)/7); ok {
				return []time.Time{at(year, month, day)}
			}
		case LastWeekday:
			return []time.Time{at(year, month, lastWeekday(year, month, base.Weekday()))}
		default:
			if d <= daysIn(year, month) {
				return []time.Time{at(year, month, d)}
			}
		}
		return nil
	case Yearly:
		year := y + n
		if d <= daysIn(year, m) {
			return []time.Time{at(year, m, d)}
		}
		return nil
	}
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nthWeekday returns the day of month of the nth wd in the month.
func nthWeekday(year int, month time.Month, wd time.Weekday, nth int) (int, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	day := 1 + (int(wd)-int(first)+7)%7 + (nth-1)*7
	if nth < 1 || day > daysIn(year, month) {
		return 0, false
	}
	return day, true
}

// lastWeekday returns the day of month of the last wd in the month. Every
// weekday occurs at least four times a month, so there is always one.
func lastWeekday(year int, month time.Month, wd time.Weekday) int {
	last := daysIn(year, month)
	lastWd := time.Date(year, month, last, 0, 0, 0, 0, time.UTC).Weekday()
	return last - (int(lastWd)-int(wd)+7)%7
}
