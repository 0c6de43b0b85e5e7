package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/models"
	"github.com/Ignas/schooltool.lyceum/internal/timetable"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

type calendarLoader interface {
	Calendar(ctx context.Context, calendarID string) (*calendar.Calendar, error)
}

type timetableCalendars interface {
	TimetableCalendar(ctx context.Context, owner string) (*calendar.Calendar, error)
	PeriodsForDay(ctx context.Context, date time.Time) ([]timetable.SchoolPeriod, error)
}

type overlayRepository interface {
	ListForViewer(ctx context.Context, viewerID string) ([]models.Overlay, error)
	GetPreference(ctx context.Context, ownerID string) (*models.ViewerPreference, error)
}

type ownerFinder interface {
	FindByID(ctx context.Context, id string) (*models.Owner, error)
}

type viewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetView(ctx context.Context, key string, value interface{}, ttl time.Duration, sources []string) error
}

// CalendarViewConfig bounds and tunes rendered views.
type CalendarViewConfig struct {
	DefaultTimezone string
	DayStartHour    int
	DayEndHour      int
	MaxQueryDays    int
	CacheTTL        time.Duration
}

// DaysRequest asks for the days of [Start, End) of the calendar ContextID as
// seen by ViewerID.
type DaysRequest struct {
	ViewerID  string    `json:"viewer_id" validate:"required"`
	ContextID string    `json:"context_id" validate:"required"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required"`
}

// GridRequest asks for the day grid of Date.
type GridRequest struct {
	ViewerID  string    `json:"viewer_id" validate:"required"`
	ContextID string    `json:"context_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
}

// ViewSettings are the resolved preferences of a viewer.
type ViewSettings struct {
	Location         *time.Location
	HideOwnTimetable bool
	ShowPeriods      bool
}

// CalendarViewService renders calendars as a viewer sees them, with overlays
// and timetable calendars merged in.
type CalendarViewService struct {
	calendars  calendarLoader
	timetables timetableCalendars
	overlays   overlayRepository
	owners     ownerFinder
	cache      viewCache
	validator  *validator.Validate
	cfg        CalendarViewConfig
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewCalendarViewService constructs the service. cache may be nil.
func NewCalendarViewService(calendars calendarLoader, timetables timetableCalendars, overlays overlayRepository, owners ownerFinder, cache viewCache, validate *validator.Validate, cfg CalendarViewConfig, metrics *MetricsService, logger *zap.Logger) *CalendarViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.DayEndHour <= cfg.DayStartHour {
		cfg.DayStartHour, cfg.DayEndHour = calendar.DefaultStartHour, calendar.DefaultEndHour
	}
	return &CalendarViewService{
		calendars:  calendars,
		timetables: timetables,
		overlays:   overlays,
		owners:     owners,
		cache:      cache,
		validator:  ensureValidator(validate),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Settings resolves the viewer's timezone and view preferences. The viewer
// preference wins over the owner timezone, which wins over the default.
func (s *CalendarViewService) Settings(ctx context.Context, viewerID string) (ViewSettings, error) {
	tz := s.cfg.DefaultTimezone
	owner, err := s.owners.FindByID(ctx, viewerID)
	switch {
	case err == nil && owner.Timezone != "":
		tz = owner.Timezone
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return ViewSettings{}, internalError(err, "failed to load viewer")
	}

	var settings ViewSettings
	pref, err := s.overlays.GetPreference(ctx, viewerID)
	switch {
	case err == nil:
		if pref.Timezone != "" {
			tz = pref.Timezone
		}
		settings.HideOwnTimetable = pref.HideOwnTimetable
		settings.ShowPeriods = pref.ShowPeriods
	case !errors.Is(err, sql.ErrNoRows):
		return ViewSettings{}, internalError(err, "failed to load viewer preferences")
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger.Warn("unknown viewer timezone, using UTC", zap.String("viewer_id", viewerID), zap.String("timezone", tz))
		loc = time.UTC
	}
	settings.Location = loc
	return settings, nil
}

// Sources returns the context calendar and the calendars merged into it.
// Overlays and the viewer's own timetable only apply when viewers look at
// their own calendar.
func (s *CalendarViewService) Sources(ctx context.Context, viewerID, contextID string, settings ViewSettings) (*calendar.Calendar, []calendar.Source, error) {
	contextCal, err := s.calendars.Calendar(ctx, contextID)
	if err != nil {
		return nil, nil, err
	}
	sources := []calendar.Source{{Calendar: contextCal, Color1: calendar.DefaultColor1, Color2: calendar.DefaultColor2}}
	if viewerID != contextID {
		return contextCal, sources, nil
	}

	if !settings.HideOwnTimetable {
		own, err := s.timetables.TimetableCalendar(ctx, viewerID)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, calendar.Source{Calendar: own, Color1: calendar.DefaultColor1, Color2: calendar.DefaultColor2})
	}

	overlays, err := s.overlays.ListForViewer(ctx, viewerID)
	if err != nil {
		return nil, nil, internalError(err, "failed to load overlays")
	}
	for _, o := range overlays {
		if !o.Show {
			continue
		}
		cal, err := s.calendars.Calendar(ctx, o.CalendarID)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, calendar.Source{Calendar: cal, Color1: o.Color1, Color2: o.Color2})
	}
	for _, o := range overlays {
		if !o.ShowTimetables {
			continue
		}
		cal, err := s.timetables.TimetableCalendar(ctx, o.CalendarID)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, calendar.Source{Calendar: cal, Color1: o.Color1, Color2: o.Color2})
	}
	return contextCal, sources, nil
}

// view is an aggregator together with what it was built from.
type view struct {
	*calendar.Aggregator
	settings ViewSettings
	// sources lists the ids of every calendar merged into the view.
	sources []string
}

func (s *CalendarViewService) aggregator(ctx context.Context, viewerID, contextID string) (view, error) {
	settings, err := s.Settings(ctx, viewerID)
	if err != nil {
		return view{}, err
	}
	contextCal, sources, err := s.Sources(ctx, viewerID, contextID, settings)
	if err != nil {
		return view{}, err
	}
	ids := []string{contextCal.ID}
	for _, src := range sources {
		if src.Calendar.ID != contextCal.ID {
			ids = append(ids, src.Calendar.ID)
		}
	}
	return view{
		Aggregator: calendar.NewAggregator(contextCal, settings.Location, sources...),
		settings:   settings,
		sources:    ids,
	}, nil
}

// Days returns one entry per date of the requested range.
func (s *CalendarViewService) Days(ctx context.Context, req DaysRequest) ([]calendar.Day, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.End.After(req.Start) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInterval, "end must be after start")
	}
	if s.cfg.MaxQueryDays > 0 && req.End.Sub(req.Start) > time.Duration(s.cfg.MaxQueryDays)*24*time.Hour {
		return nil, appErrors.Clonef(appErrors.ErrInvalidInterval, "range exceeds %d days", s.cfg.MaxQueryDays)
	}

	key := ViewKey(req.ContextID, req.ViewerID, "days", req.Start, req.End)
	var cached []calendar.Day
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	v, err := s.aggregator(ctx, req.ViewerID, req.ContextID)
	if err != nil {
		return nil, err
	}
	days := v.Days(req.Start.In(v.settings.Location), req.End.In(v.settings.Location))
	s.metrics.ObserveCalendarBuild("days", time.Since(start))
	s.metrics.AddOccurrences("days", countEvents(days))

	s.store(ctx, key, days, v.sources)
	return days, nil
}

// Grid lays out the timed events of one date. Period rows are included when
// the viewer prefers them.
func (s *CalendarViewService) Grid(ctx context.Context, req GridRequest) (calendar.Grid, error) {
	if err := s.validator.Struct(req); err != nil {
		return calendar.Grid{}, validationError(err)
	}

	dayStart := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	key := ViewKey(req.ContextID, req.ViewerID, "grid", dayStart, dayStart.AddDate(0, 0, 1))
	var cached calendar.Grid
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	v, err := s.aggregator(ctx, req.ViewerID, req.ContextID)
	if err != nil {
		return calendar.Grid{}, err
	}
	settings := v.settings
	date := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, settings.Location)

	var marks []calendar.PeriodMark
	if settings.ShowPeriods {
		periods, err := s.timetables.PeriodsForDay(ctx, date)
		if err != nil {
			return calendar.Grid{}, err
		}
		for _, p := range periods {
			marks = append(marks, p.Mark())
		}
	}

	events := v.DayEvents(date)
	dg := calendar.NewDayGrid(date, settings.Location, marks...)
	dg.StartHour, dg.EndHour = s.cfg.DayStartHour, s.cfg.DayEndHour
	grid := dg.Layout(events)
	s.metrics.ObserveCalendarBuild("grid", time.Since(start))
	s.metrics.AddOccurrences("grid", len(events))

	s.store(ctx, key, grid, v.sources)
	return grid, nil
}

// InvalidateCalendar drops cached views built on calendarID.
func (s *CalendarViewService) InvalidateCalendar(ctx context.Context, calendarID string) {
	if inv, ok := s.cache.(calendarInvalidator); ok {
		inv.InvalidateCalendar(ctx, calendarID)
	}
}

func (s *CalendarViewService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *CalendarViewService) store(ctx context.Context, key string, value interface{}, sources []string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.SetView(ctx, key, value, s.cfg.CacheTTL, sources)
}

func countEvents(days []calendar.Day) int {
	n := 0
	for _, d := range days {
		n += len(d.Events) + len(d.AllDay)
	}
	return n
}
