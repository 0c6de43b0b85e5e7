package models

import (
	"time"

	"github.com/lib/pq"
)

// CalendarEvent is the stored form of a calendar entry. Recurrence is kept as
// an RFC 5545 RRULE with the exception dates alongside.
type CalendarEvent struct {
	ID              string         `db:"id" json:"id"`
	CalendarID      string         `db:"calendar_id" json:"calendar_id"`
	Title           string         `db:"title" json:"title"`
	StartAt         time.Time      `db:"start_at" json:"start_at"`
	DurationSeconds int64          `db:"duration_seconds" json:"duration_seconds"`
	OwnerID         *string        `db:"owner_id" json:"owner_id,omitempty"`
	Location        *string        `db:"location" json:"location,omitempty"`
	Resources       pq.StringArray `db:"resources" json:"resources"`
	AllDay          bool           `db:"all_day" json:"all_day"`
	Privacy         string         `db:"privacy" json:"privacy"`
	RRule           *string        `db:"rrule" json:"rrule,omitempty"`
	ExDates         pq.StringArray `db:"exdates" json:"exdates"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// CalendarEventFilter narrows down events of one calendar. Events booked into
// the calendar through their resources are included.
type CalendarEventFilter struct {
	CalendarID string
	From       *time.Time
	To         *time.Time
}
