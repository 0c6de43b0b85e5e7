package dto

// SlotActivity is one activity of a composite timetable, flattened for
// listing.
type SlotActivity struct {
	DayID     string   `json:"day_id"`
	PeriodID  string   `json:"period_id"`
	Title     string   `json:"title"`
	Owner     string   `json:"owner,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// CompositeSummary describes the composite timetable an owner has for one
// term and schema.
type CompositeSummary struct {
	OwnerID    string         `json:"owner_id"`
	TermID     string         `json:"term_id"`
	SchemaID   string         `json:"schema_id"`
	Model      string         `json:"model"`
	Activities []SlotActivity `json:"activities"`
	Exceptions int            `json:"exceptions"`
}

// PeriodSummary is a school period of one date in wall-clock terms.
type PeriodSummary struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}
