package timetable

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// Schema is an activity-free timetable template.
type Schema struct {
	ID       string           `json:"id" yaml:"id"`
	Title    string           `json:"title,omitempty" yaml:"title,omitempty"`
	Timezone string           `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Privacy  calendar.Privacy `json:"privacy,omitempty" yaml:"privacy,omitempty"`
	Days     []SchemaDay      `json:"days" yaml:"days"`
	Model    ModelSpec        `json:"model" yaml:"model"`
}

// Validate checks the day layout against the model.
func (s *Schema) Validate() error {
	if s.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "schema id is required")
	}
	days := make(map[string]bool, len(s.Days))
	for _, d := range s.Days {
		if d.ID == "" || days[d.ID] {
			return appErrors.Clonef(appErrors.ErrValidation, "schema %s: duplicate or empty day id %q", s.ID, d.ID)
		}
		days[d.ID] = true
		periods := make(map[string]bool, len(d.PeriodIDs))
		for _, p := range d.PeriodIDs {
			if p == "" || periods[p] {
				return appErrors.Clonef(appErrors.ErrValidation, "schema %s: duplicate or empty period %q on day %s", s.ID, p, d.ID)
			}
			periods[p] = true
		}
	}
	model, err := s.Model.Build()
	if err != nil {
		return err
	}
	for _, id := range model.DayIDs() {
		if !days[id] {
			return appErrors.Clonef(appErrors.ErrValidation, "schema %s: model uses unknown day %q", s.ID, id)
		}
	}
	return nil
}

// NewTimetable returns an empty timetable following the schema.
func (s *Schema) NewTimetable() (*Timetable, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	model, err := s.Model.Build()
	if err != nil {
		return nil, err
	}
	tt := New(s.ID, s.Days, model)
	tt.Timezone = s.Timezone
	if s.Privacy != "" {
		tt.Privacy = s.Privacy
	}
	return tt, nil
}

// SchemaOf describes the layout of tt as a schema document. Timetables with
// a model other than DayModel get an empty model section.
func SchemaOf(tt *Timetable) *Schema {
	s := &Schema{ID: tt.SchemaID, Timezone: tt.Timezone, Privacy: tt.Privacy, Days: tt.Days()}
	if m, ok := tt.Model.(*DayModel); ok {
		s.Model = m.Spec()
	}
	return s
}

// LoadSchemaYAML reads and validates a schema document.
func LoadSchemaYAML(r io.Reader) (*Schema, error) {
	var s Schema
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to decode schema")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DumpYAML writes the schema document.
func (s *Schema) DumpYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schema")
	}
	return enc.Close()
}
