package main

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// dateFlag is a flag.Value holding a UTC calendar date.
type dateFlag struct {
	t time.Time
}

func (d *dateFlag) String() string {
	if d == nil || d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d *dateFlag) Set(value string) error {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	d.t = t
	return nil
}

// Time returns the date, or fallback when the flag was not given.
func (d *dateFlag) Time(fallback time.Time) time.Time {
	if d.t.IsZero() {
		return fallback
	}
	return d.t
}

func today() time.Time {
	y, m, dd := time.Now().UTC().Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// required takes flag name and value pairs and reports the first empty one.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("-%s is required", pairs[i])
		}
	}
	return nil
}

// inZone returns midnight of date's calendar date in loc.
func inZone(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
