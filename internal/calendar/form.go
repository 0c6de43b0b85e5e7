package calendar

import (
	"time"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// RangeKind selects how a series built from a form ends.
type RangeKind string

const (
	RangeForever RangeKind = "forever"
	RangeCount   RangeKind = "count"
	RangeUntil   RangeKind = "until"
)

// RuleForm is the loosely filled recurrence form of an event editor.
type RuleForm struct {
	Frequency   Frequency      `json:"frequency" validate:"required,frequency"`
	Interval    int            `json:"interval" validate:"gte=0"`
	Range       RangeKind      `json:"range" validate:"omitempty,oneof=forever count until"`
	Count       int            `json:"count" validate:"gte=0"`
	Until       *time.Time     `json:"until"`
	Exceptions  []time.Time    `json:"exceptions"`
	Weekdays    []time.Weekday `json:"weekdays"`
	MonthlyMode MonthlyMode    `json:"monthly_mode" validate:"omitempty,monthlymode"`
}

// MakeRecurrenceRule turns a form into a rule. A missing interval means 1,
// the range picks which of count and until applies, and fields that do not
// belong to the frequency are ignored.
func MakeRecurrenceRule(form RuleForm) (*RecurrenceRule, error) {
	spec := RuleSpec{
		Frequency:  form.Frequency,
		Interval:   form.Interval,
		Exceptions: form.Exceptions,
	}
	if spec.Interval == 0 {
		spec.Interval = 1
	}

	switch form.Range {
	case RangeCount:
		if form.Count < 1 {
			return nil, appErrors.Clone(appErrors.ErrInvalidRecurrenceRule, "count range needs a positive count")
		}
		spec.Count = form.Count
	case RangeUntil:
		if form.Until == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidRecurrenceRule, "until range needs an end date")
		}
		spec.Until = form.Until
	case RangeForever, "":
	default:
		return nil, appErrors.Clonef(appErrors.ErrInvalidRecurrenceRule, "unknown range %q", form.Range)
	}

	switch form.Frequency {
	case Weekly:
		spec.Weekdays = form.Weekdays
	case Monthly:
		spec.MonthlyMode = form.MonthlyMode
	}
	return NewRecurrenceRule(spec)
}
