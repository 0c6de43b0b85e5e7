package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

// Event classes understood by calendar clients.
const (
	ClassPublic       = "PUBLIC"
	ClassPrivate      = "PRIVATE"
	ClassConfidential = "CONFIDENTIAL"
)

// VEvent is one VEVENT of an iCalendar export. All-day events carry
// date-only start and end values. RRule is the raw RRULE value.
type VEvent struct {
	UID      string
	Summary  string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Location string
	Class    string
	RRule    string
	ExDates  []time.Time
}

// ICalExporter renders events as an RFC 5545 calendar.
type ICalExporter struct {
	ProductID string
	Name      string
	// Now stamps DTSTAMP; defaults to time.Now.
	Now func() time.Time
}

// NewICalExporter builds an exporter stamping productID into every document.
func NewICalExporter(productID string) *ICalExporter {
	return &ICalExporter{ProductID: productID, Now: time.Now}
}

// Render encodes events into iCalendar bytes.
func (e *ICalExporter) Render(events []VEvent) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes events to w.
func (e *ICalExporter) Write(w io.Writer, events []VEvent) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC()

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, e.ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if e.Name != "" {
		cal.Props.SetText(ical.PropName, e.Name)
	}

	for _, ev := range events {
		comp := ical.NewComponent(ical.CompEvent)
		comp.Props.SetText(ical.PropUID, ev.UID)
		comp.Props.SetText(ical.PropSummary, ev.Summary)
		comp.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		if ev.AllDay {
			comp.Props.Set(dateProp(ical.PropDateTimeStart, ev.Start))
			comp.Props.Set(dateProp(ical.PropDateTimeEnd, ev.End))
		} else {
			comp.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
			comp.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
		}
		if ev.Location != "" {
			comp.Props.SetText(ical.PropLocation, ev.Location)
		}
		if ev.Class != "" {
			comp.Props.SetText(ical.PropClass, ev.Class)
		}
		if ev.RRule != "" {
			// RRULE values are structured and must not be text-escaped.
			rule := ical.NewProp(ical.PropRecurrenceRule)
			rule.Value = ev.RRule
			comp.Props.Set(rule)
		}
		for _, ex := range ev.ExDates {
			if ev.AllDay {
				comp.Props.Add(dateProp(ical.PropExceptionDates, ex))
				continue
			}
			prop := ical.NewProp(ical.PropExceptionDates)
			prop.SetDateTime(ex.UTC())
			comp.Props.Add(prop)
		}
		cal.Children = append(cal.Children, comp)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode icalendar: %w", err)
	}
	return nil
}

func dateProp(name string, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	prop.SetDate(t)
	return prop
}
