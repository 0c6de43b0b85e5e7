package models

import (
	"time"

	"github.com/lib/pq"
)

// Term models a school term. Weekdays holds the school weekdays as
// time.Weekday numbers (Sunday = 0).
type Term struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	StartDate time.Time     `db:"start_date" json:"start_date"`
	EndDate   time.Time     `db:"end_date" json:"end_date"`
	Weekdays  pq.Int64Array `db:"weekdays" json:"weekdays"`
	IsActive  bool          `db:"is_active" json:"is_active"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// TermOverride marks a single date of a term as a school day or a holiday,
// overriding the weekday rule.
type TermOverride struct {
	TermID    string    `db:"term_id" json:"term_id"`
	Date      time.Time `db:"date" json:"date"`
	SchoolDay bool      `db:"school_day" json:"school_day"`
	Note      *string   `db:"note" json:"note,omitempty"`
}

// TermFilter defines filters supported by term listings.
type TermFilter struct {
	IsActive *bool
	On       *time.Time
}
