package dto

import "time"

// DeleteOccurrenceResult reports what a repeating-event deletion did.
type DeleteOccurrenceResult struct {
	EventID string    `json:"event_id"`
	Mode    string    `json:"mode"`
	Date    time.Time `json:"date"`
	Removed bool      `json:"removed"`
}

// ServiceStatus is the payload of the ops status endpoint.
type ServiceStatus struct {
	Status     string            `json:"status"`
	Env        string            `json:"env"`
	Components map[string]string `json:"components"`
}
