package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Ignas/schooltool.lyceum/internal/models"
	"github.com/Ignas/schooltool.lyceum/internal/timetable"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

type seedOwnerWriter interface {
	Create(ctx context.Context, owner *models.Owner) error
	Relate(ctx context.Context, relation *models.OwnerRelation) error
	UpsertSource(ctx context.Context, source *models.RelationSource) error
}

type seedTermWriter interface {
	Create(ctx context.Context, term *models.Term) error
	UpsertOverrides(ctx context.Context, overrides []models.TermOverride) error
}

type seedSchemaSaver interface {
	SaveSchema(ctx context.Context, schema *timetable.Schema) error
}

type seedTimetableWriter interface {
	Create(ctx context.Context, tt *models.Timetable) error
	AddActivity(ctx context.Context, activity *models.TimetableActivity) error
	AddException(ctx context.Context, exception *models.TimetableException) error
}

type seedOverlayWriter interface {
	Upsert(ctx context.Context, overlay *models.Overlay) error
	UpsertPreference(ctx context.Context, pref *models.ViewerPreference) error
}

// SeedDocument is a YAML description of a school: terms, schemas, owners and
// their relations, timetables and calendar view settings.
type SeedDocument struct {
	Terms       []SeedTerm         `yaml:"terms" validate:"dive"`
	Schemas     []timetable.Schema `yaml:"schemas" validate:"-"`
	Owners      []SeedOwner        `yaml:"owners" validate:"dive"`
	Relations   []SeedRelation     `yaml:"relations" validate:"dive"`
	Sources     []SeedSource       `yaml:"sources" validate:"dive"`
	Timetables  []SeedTimetable    `yaml:"timetables" validate:"dive"`
	Overlays    []SeedOverlay      `yaml:"overlays" validate:"dive"`
	Preferences []SeedPreference   `yaml:"preferences" validate:"dive"`
}

type SeedTerm struct {
	ID       string      `yaml:"id" validate:"required"`
	Name     string      `yaml:"name"`
	Start    time.Time   `yaml:"start" validate:"required"`
	End      time.Time   `yaml:"end" validate:"required,gtefield=Start"`
	Weekdays []int64     `yaml:"weekdays" validate:"dive,min=0,max=6"`
	Holidays []time.Time `yaml:"holidays"`
}

type SeedOwner struct {
	ID       string           `yaml:"id" validate:"required"`
	Kind     models.OwnerKind `yaml:"kind" validate:"required,oneof=PERSON GROUP SECTION RESOURCE"`
	Title    string           `yaml:"title"`
	Timezone string           `yaml:"timezone" validate:"omitempty,timezone"`
}

type SeedRelation struct {
	Owner   string `yaml:"owner" validate:"required"`
	Kind    string `yaml:"kind" validate:"required"`
	Related string `yaml:"related" validate:"required"`
}

type SeedSource struct {
	Owner        string `yaml:"owner" validate:"required"`
	Kind         string `yaml:"kind" validate:"required"`
	UseComposite bool   `yaml:"use_composite"`
}

type SeedActivity struct {
	Day       string   `yaml:"day" validate:"required"`
	Period    string   `yaml:"period" validate:"required"`
	Title     string   `yaml:"title" validate:"required"`
	Owner     string   `yaml:"owner"`
	Resources []string `yaml:"resources"`
}

type SeedReplacement struct {
	Title    string        `yaml:"title" validate:"required"`
	Start    time.Time     `yaml:"start" validate:"required"`
	Duration time.Duration `yaml:"duration" validate:"gt=0"`
}

type SeedException struct {
	Date        time.Time        `yaml:"date" validate:"required"`
	Period      string           `yaml:"period" validate:"required"`
	Title       string           `yaml:"title" validate:"required"`
	Owner       string           `yaml:"owner"`
	Resources   []string         `yaml:"resources"`
	Replacement *SeedReplacement `yaml:"replacement" validate:"omitempty"`
}

type SeedTimetable struct {
	Owner      string          `yaml:"owner" validate:"required"`
	Term       string          `yaml:"term" validate:"required"`
	Schema     string          `yaml:"schema" validate:"required"`
	Timezone   string          `yaml:"timezone" validate:"omitempty,timezone"`
	Privacy    string          `yaml:"privacy" validate:"omitempty,oneof=public private hidden"`
	Activities []SeedActivity  `yaml:"activities" validate:"dive"`
	Exceptions []SeedException `yaml:"exceptions" validate:"dive"`
}

type SeedOverlay struct {
	Viewer         string `yaml:"viewer" validate:"required"`
	Calendar       string `yaml:"calendar" validate:"required"`
	Show           bool   `yaml:"show"`
	ShowTimetables bool   `yaml:"show_timetables"`
	Color1         string `yaml:"color1" validate:"omitempty,hexcolor"`
	Color2         string `yaml:"color2" validate:"omitempty,hexcolor"`
}

type SeedPreference struct {
	Owner            string `yaml:"owner" validate:"required"`
	Timezone         string `yaml:"timezone" validate:"omitempty,timezone"`
	HideOwnTimetable bool   `yaml:"hide_own_timetable"`
	ShowPeriods      bool   `yaml:"show_periods"`
}

// SeedResult counts the rows written by Load.
type SeedResult struct {
	Terms       int `json:"terms"`
	Schemas     int `json:"schemas"`
	Owners      int `json:"owners"`
	Relations   int `json:"relations"`
	Timetables  int `json:"timetables"`
	Activities  int `json:"activities"`
	Exceptions  int `json:"exceptions"`
	Overlays    int `json:"overlays"`
	Preferences int `json:"preferences"`
}

// SeedService loads SeedDocuments into the repositories. Loading is not
// transactional; it is meant for empty databases.
type SeedService struct {
	owners     seedOwnerWriter
	terms      seedTermWriter
	schemas    seedSchemaSaver
	timetables seedTimetableWriter
	overlays   seedOverlayWriter
	cache      viewFlusher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSeedService constructs the service.
func NewSeedService(owners seedOwnerWriter, terms seedTermWriter, schemas seedSchemaSaver, timetables seedTimetableWriter, overlays seedOverlayWriter, validate *validator.Validate, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{owners: owners, terms: terms, schemas: schemas, timetables: timetables, overlays: overlays, validator: ensureValidator(validate), logger: logger}
}

// SetCache registers the view cache to flush after a load.
func (s *SeedService) SetCache(cache viewFlusher) {
	s.cache = cache
}

// Load decodes a SeedDocument from r, checks it and writes it. Cached views
// are flushed once anything may have been written.
func (s *SeedService) Load(ctx context.Context, r io.Reader) (*SeedResult, error) {
	var doc SeedDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to decode seed document")
	}
	if err := s.validator.Struct(doc); err != nil {
		return nil, validationError(err)
	}
	schemas, err := checkSeedTimetables(doc)
	if err != nil {
		return nil, err
	}
	defer s.flush(ctx)

	res := &SeedResult{}
	for _, t := range doc.Terms {
		row := &models.Term{ID: t.ID, Name: t.Name, StartDate: t.Start, EndDate: t.End, Weekdays: t.Weekdays, IsActive: true}
		if row.Name == "" {
			row.Name = t.ID
		}
		if len(row.Weekdays) == 0 {
			row.Weekdays = []int64{1, 2, 3, 4, 5}
		}
		if err := s.terms.Create(ctx, row); err != nil {
			return res, internalError(err, "failed to store term "+t.ID)
		}
		if len(t.Holidays) > 0 {
			overrides := make([]models.TermOverride, 0, len(t.Holidays))
			for _, d := range t.Holidays {
				overrides = append(overrides, models.TermOverride{TermID: t.ID, Date: d})
			}
			if err := s.terms.UpsertOverrides(ctx, overrides); err != nil {
				return res, internalError(err, "failed to store holidays of term "+t.ID)
			}
		}
		res.Terms++
	}

	for _, schema := range schemas {
		if err := s.schemas.SaveSchema(ctx, schema); err != nil {
			return res, err
		}
		res.Schemas++
	}

	for _, o := range doc.Owners {
		row := &models.Owner{ID: o.ID, Kind: o.Kind, Title: o.Title, Timezone: o.Timezone, IsActive: true}
		if row.Title == "" {
			row.Title = o.ID
		}
		if err := s.owners.Create(ctx, row); err != nil {
			return res, internalError(err, "failed to store owner "+o.ID)
		}
		res.Owners++
	}
	for _, rel := range doc.Relations {
		if err := s.owners.Relate(ctx, &models.OwnerRelation{OwnerID: rel.Owner, Kind: rel.Kind, RelatedID: rel.Related}); err != nil {
			return res, internalError(err, "failed to relate "+rel.Owner)
		}
		res.Relations++
	}
	for _, src := range doc.Sources {
		if err := s.owners.UpsertSource(ctx, &models.RelationSource{OwnerID: src.Owner, Kind: src.Kind, UseComposite: src.UseComposite}); err != nil {
			return res, internalError(err, "failed to store relation source of "+src.Owner)
		}
	}

	for _, tt := range doc.Timetables {
		if err := s.storeTimetable(ctx, tt, res); err != nil {
			return res, err
		}
	}

	for _, o := range doc.Overlays {
		row := &models.Overlay{ViewerID: o.Viewer, CalendarID: o.Calendar, Show: o.Show, ShowTimetables: o.ShowTimetables, Color1: o.Color1, Color2: o.Color2}
		if err := s.overlays.Upsert(ctx, row); err != nil {
			return res, internalError(err, "failed to store overlay of "+o.Viewer)
		}
		res.Overlays++
	}
	for _, p := range doc.Preferences {
		row := &models.ViewerPreference{OwnerID: p.Owner, Timezone: p.Timezone, HideOwnTimetable: p.HideOwnTimetable, ShowPeriods: p.ShowPeriods}
		if err := s.overlays.UpsertPreference(ctx, row); err != nil {
			return res, internalError(err, "failed to store preferences of "+p.Owner)
		}
		res.Preferences++
	}

	s.logger.Info("seed document loaded",
		zap.Int("terms", res.Terms), zap.Int("owners", res.Owners), zap.Int("timetables", res.Timetables), zap.Int("activities", res.Activities))
	return res, nil
}

func (s *SeedService) flush(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("failed to flush views after seed load", zap.Error(err))
	}
}

func (s *SeedService) storeTimetable(ctx context.Context, tt SeedTimetable, res *SeedResult) error {
	row := &models.Timetable{OwnerID: tt.Owner, TermID: tt.Term, SchemaID: tt.Schema, Timezone: tt.Timezone, Privacy: tt.Privacy}
	if err := s.timetables.Create(ctx, row); err != nil {
		return internalError(err, fmt.Sprintf("failed to store timetable of %s for %s/%s", tt.Owner, tt.Term, tt.Schema))
	}
	res.Timetables++
	for _, a := range tt.Activities {
		act := &models.TimetableActivity{TimetableID: row.ID, DayID: a.Day, PeriodID: a.Period, Title: a.Title, OwnerID: a.Owner, Resources: a.Resources}
		if err := s.timetables.AddActivity(ctx, act); err != nil {
			return internalError(err, "failed to store activity "+a.Title)
		}
		res.Activities++
	}
	for _, e := range tt.Exceptions {
		ex := &models.TimetableException{TimetableID: row.ID, Date: e.Date, PeriodID: e.Period, Title: e.Title, OwnerID: e.Owner, Resources: e.Resources}
		if e.Replacement != nil {
			title, start := e.Replacement.Title, e.Replacement.Start
			seconds := int64(e.Replacement.Duration / time.Second)
			ex.ReplacementTitle, ex.ReplacementStart, ex.ReplacementDurationSeconds = &title, &start, &seconds
		}
		if err := s.timetables.AddException(ctx, ex); err != nil {
			return internalError(err, "failed to store exception of "+e.Title)
		}
		res.Exceptions++
	}
	return nil
}

// checkSeedTimetables validates the schemas and places every activity of the
// document into an empty timetable of its schema, so bad slots are reported
// before anything is written.
func checkSeedTimetables(doc SeedDocument) ([]*timetable.Schema, error) {
	schemas := make([]*timetable.Schema, 0, len(doc.Schemas))
	byID := make(map[string]*timetable.Schema, len(doc.Schemas))
	for i := range doc.Schemas {
		schema := &doc.Schemas[i]
		if err := schema.Validate(); err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
		byID[schema.ID] = schema
	}
	for _, tt := range doc.Timetables {
		schema, ok := byID[tt.Schema]
		if !ok {
			continue // stored earlier
		}
		scratch, err := schema.NewTimetable()
		if err != nil {
			return nil, err
		}
		for _, a := range tt.Activities {
			if err := scratch.Add(a.Day, a.Period, timetable.NewActivity(a.Title, a.Owner, a.Resources...)); err != nil {
				return nil, appErrors.Clonef(appErrors.ErrValidation, "timetable of %s: %s", tt.Owner, err.Error())
			}
		}
	}
	return schemas, nil
}
