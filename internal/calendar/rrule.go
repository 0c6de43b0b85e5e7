package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// rruleWeekdays is indexed by time.Weekday.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// fromRRuleWeekday maps rrule's Monday-based day index onto time.Weekday.
func fromRRuleWeekday(day int) time.Weekday {
	return time.Weekday((day + 1) % 7)
}

// ToROption renders the rule as RFC 5545 options anchored at base. Week
// windows start on base's weekday so interval > 1 weekly rules line up with
// Expand. Exceptions are not part of an RRULE; exporters emit them as EXDATE.
func (r *RecurrenceRule) ToROption(base time.Time) rrule.ROption {
	base = base.UTC()
	opt := rrule.ROption{
		Dtstart:  base,
		Interval: r.spec.Interval,
		Count:    r.spec.Count,
		Wkst:     rruleWeekdays[base.Weekday()],
	}
	if r.spec.Until != nil {
		until := DateOf(*r.spec.Until, time.UTC)
		opt.Until = until.Add(24*time.Hour - time.Second)
	}

	switch r.spec.Frequency {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		weekdays := r.spec.Weekdays
		if len(weekdays) == 0 {
			weekdays = []time.Weekday{base.Weekday()}
		}
		for _, wd := range weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		wd := rruleWeekdays[base.Weekday()]
		switch r.spec.MonthlyMode {
		case NthWeekday:
			opt.Byweekday = []rrule.Weekday{wd.Nth((base.Day() + 6) / 7)}
		case LastWeekday:
			opt.Byweekday = []rrule.Weekday{wd.Nth(-1)}
		default:
			opt.Bymonthday = []int{base.Day()}
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(base.Month())}
		opt.Bymonthday = []int{base.Day()}
	}
	return opt
}

// RRule returns the rule as a rrule-go RRule anchored at base.
func (r *RecurrenceRule) RRule(base time.Time) (*rrule.RRule, error) {
	rr, err := rrule.NewRRule(r.ToROption(base))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRecurrenceRule.Code, appErrors.ErrInvalidRecurrenceRule.Status, "failed to build rrule")
	}
	return rr, nil
}

// RRuleString renders the RRULE value (without DTSTART) for base.
func (r *RecurrenceRule) RRuleString(base time.Time) string {
	opt := r.ToROption(base)
	return opt.RRuleString()
}

// Interchange renders the rule for RFC 5545 consumers anchored at base: the
// RRULE value and the EXDATE instants. EXDATE must match an instance start
// exactly, so each exception carries base's time of day. RFC 5545 counts
// excluded instances against COUNT, so a counted rule with exceptions is
// bounded by UNTIL at its last occurrence instead.
func (r *RecurrenceRule) Interchange(base time.Time) (string, []time.Time) {
	base = base.UTC()
	opt := r.ToROption(base)
	if len(r.spec.Exceptions) == 0 {
		return opt.RRuleString(), nil
	}
	if r.spec.Count > 0 {
		if occ := r.Expand(base, time.Time{}, time.Time{}).Collect(); len(occ) > 0 {
			opt.Count = 0
			opt.Until = occ[len(occ)-1]
		}
	}
	exdates := make([]time.Time, 0, len(r.spec.Exceptions))
	for _, ex := range r.spec.Exceptions {
		y, m, d := ex.Date()
		exdates = append(exdates, time.Date(y, m, d, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), time.UTC))
	}
	return opt.RRuleString(), exdates
}

// ParseRRule builds a rule from an RRULE value such as
// "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;COUNT=10". Only the subset the engine
// models is accepted.
func ParseRRule(text string, exceptions ...time.Time) (*RecurrenceRule, error) {
	opt, err := rrule.StrToROption(text)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRecurrenceRule.Code, appErrors.ErrInvalidRecurrenceRule.Status, "failed to parse rrule")
	}
	if len(opt.Bysetpos)+len(opt.Byyearday)+len(opt.Byweekno)+len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unsupported rrule parts in %q", text)
	}

	spec := RuleSpec{Interval: opt.Interval, Count: opt.Count, Exceptions: exceptions}
	if spec.Interval == 0 {
		spec.Interval = 1
	}
	if !opt.Until.IsZero() {
		until := opt.Until.UTC()
		spec.Until = &until
	}

	switch opt.Freq {
	case rrule.DAILY:
		spec.Frequency = Daily
	case rrule.WEEKLY:
		spec.Frequency = Weekly
		for _, wd := range opt.Byweekday {
			spec.Weekdays = append(spec.Weekdays, fromRRuleWeekday(wd.Day()))
		}
	case rrule.MONTHLY:
		spec.Frequency = Monthly
		spec.MonthlyMode = MonthDay
		if len(opt.Byweekday) > 1 || len(opt.Bymonthday) > 1 {
			return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unsupported monthly rule %q", text)
		}
		if len(opt.Byweekday) == 1 {
			wd := opt.Byweekday[0]
			switch {
			case wd.N() == -1:
				spec.MonthlyMode = LastWeekday
			case wd.N() > 0:
				spec.MonthlyMode = NthWeekday
			default:
				return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unsupported monthly rule %q", text)
			}
		}
	case rrule.YEARLY:
		spec.Frequency = Yearly
	default:
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unsupported frequency in %q", text)
	}
	return NewRecurrenceRule(spec)
}
