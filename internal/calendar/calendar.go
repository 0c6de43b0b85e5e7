package calendar

import (
	"time"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// Calendar is an ordered collection of events belonging to one owner.
type Calendar struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Events []*Event `json:"events"`
}

// New returns an empty calendar.
func New(id, title string) *Calendar {
	return &Calendar{ID: id, Title: title}
}

// Add appends an event. Events without a home calendar are adopted.
func (c *Calendar) Add(events ...*Event) {
	for _, ev := range events {
		if ev.CalendarID == "" {
			ev.CalendarID = c.ID
		}
		c.Events = append(c.Events, ev)
	}
}

// Find returns the event with the given id.
func (c *Calendar) Find(id string) (*Event, bool) {
	for _, ev := range c.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return nil, false
}

// Remove drops the event with the given id and reports whether it existed.
func (c *Calendar) Remove(id string) bool {
	for i, ev := range c.Events {
		if ev.ID == id {
			c.Events = append(c.Events[:i], c.Events[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the event with the same id for ev.
func (c *Calendar) Replace(ev *Event) bool {
	for i, existing := range c.Events {
		if existing.ID == ev.ID {
			c.Events[i] = ev
			return true
		}
	}
	return false
}

// Merge appends the events of the other calendars, preserving their order.
func (c *Calendar) Merge(others ...*Calendar) {
	for _, other := range others {
		if other != nil {
			c.Events = append(c.Events, other.Events...)
		}
	}
}

// Expand returns every occurrence touching [from, to) ordered by start;
// simultaneous occurrences keep calendar order.
func (c *Calendar) Expand(from, to time.Time) []Occurrence {
	if c == nil {
		return nil
	}
	var out []Occurrence
	for _, ev := range c.Events {
		out = append(out, ev.Expand(from, to)...)
	}
	SortOccurrences(out)
	return out
}

// DeleteOccurrence applies a repeating-event deletion to the calendar and
// reports whether the event was removed entirely.
func (c *Calendar) DeleteOccurrence(eventID string, mode DeleteMode, date time.Time) (bool, error) {
	ev, ok := c.Find(eventID)
	if !ok {
		return false, appErrors.Clonef(appErrors.ErrNotFound, "event %s not found", eventID)
	}
	updated, err := ev.DeleteOccurrence(mode, date)
	if err != nil {
		return false, err
	}
	if updated == nil {
		c.Remove(eventID)
		return true, nil
	}
	c.Replace(updated)
	return false, nil
}

// CheckBooking returns ErrBookingConflict when ev overlaps any occurrence
// already held by one of the resource calendars within [from, to). Occurrences
// of ev itself are ignored so an event can be re-booked after editing.
func CheckBooking(ev *Event, resources []*Calendar, from, to time.Time) error {
	wanted := ev.Expand(from, to)
	for _, res := range resources {
		for _, held := range res.Expand(from, to) {
			if held.Event.ID == ev.ID {
				continue
			}
			for _, occ := range wanted {
				if occ.Period().Overlaps(held.Period()) {
					return appErrors.Clonef(appErrors.ErrBookingConflict, "%s is already booked by %q at %s",
						res.Title, held.Event.Title, held.Start.Format(time.RFC3339))
				}
			}
		}
	}
	return nil
}

// BookResources checks ev against every resource calendar within [from, to)
// and, when free, records the resources on ev and lists it in their calendars.
// Nothing changes on conflict.
func BookResources(ev *Event, resources []*Calendar, from, to time.Time) error {
	if err := CheckBooking(ev, resources, from, to); err != nil {
		return err
	}
	for _, res := range resources {
		if !ev.HasResource(res.ID) {
			ev.Resources = append(ev.Resources, res.ID)
		}
		if _, ok := res.Find(ev.ID); ok {
			res.Replace(ev)
			continue
		}
		res.Add(ev)
	}
	return nil
}
