package models

import (
	"time"

	"github.com/lib/pq"
)

// TimetableSchema stores a schema as its YAML document.
type TimetableSchema struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Document  string    `db:"document" json:"document"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Timetable is an owner's private timetable for one (term, schema) pair.
type Timetable struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	TermID    string    `db:"term_id" json:"term_id"`
	SchemaID  string    `db:"schema_id" json:"schema_id"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Privacy   string    `db:"privacy" json:"privacy"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableActivity places an activity in a (day, period) slot.
type TimetableActivity struct {
	ID          string         `db:"id" json:"id"`
	TimetableID string         `db:"timetable_id" json:"timetable_id"`
	DayID       string         `db:"day_id" json:"day_id"`
	PeriodID    string         `db:"period_id" json:"period_id"`
	Title       string         `db:"title" json:"title"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	Resources   pq.StringArray `db:"resources" json:"resources"`
}

// TimetableException cancels one activity on one date, optionally replacing
// it with an ad-hoc event.
type TimetableException struct {
	ID                         string         `db:"id" json:"id"`
	TimetableID                string         `db:"timetable_id" json:"timetable_id"`
	Date                       time.Time      `db:"date" json:"date"`
	PeriodID                   string         `db:"period_id" json:"period_id"`
	Title                      string         `db:"title" json:"title"`
	OwnerID                    string         `db:"owner_id" json:"owner_id"`
	Resources                  pq.StringArray `db:"resources" json:"resources"`
	ReplacementTitle           *string        `db:"replacement_title" json:"replacement_title,omitempty"`
	ReplacementStart           *time.Time     `db:"replacement_start" json:"replacement_start,omitempty"`
	ReplacementDurationSeconds *int64         `db:"replacement_duration_seconds" json:"replacement_duration_seconds,omitempty"`
}
