package models

import "time"

// Overlay is a calendar a viewer chose to overlay on their own calendar.
type Overlay struct {
	ViewerID       string    `db:"viewer_id" json:"viewer_id"`
	CalendarID     string    `db:"calendar_id" json:"calendar_id"`
	Show           bool      `db:"show" json:"show"`
	ShowTimetables bool      `db:"show_timetables" json:"show_timetables"`
	Color1         string    `db:"color1" json:"color1"`
	Color2         string    `db:"color2" json:"color2"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ViewerPreference holds per-person calendar view settings.
type ViewerPreference struct {
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	Timezone         string    `db:"timezone" json:"timezone"`
	HideOwnTimetable bool      `db:"hide_own_timetable" json:"hide_own_timetable"`
	ShowPeriods      bool      `db:"show_periods" json:"show_periods"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
