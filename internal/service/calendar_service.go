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
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

type calendarEventRepository interface {
	List(ctx context.Context, filter models.CalendarEventFilter) ([]models.CalendarEvent, error)
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

// calendarInvalidator drops cached views of a calendar after it changed.
type calendarInvalidator interface {
	InvalidateCalendar(ctx context.Context, calendarID string)
}

// CalendarService manages stored calendar events.
type CalendarService struct {
	repo        calendarEventRepository
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	invalidator calendarInvalidator
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarEventRepository, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, validator: ensureValidator(validate), logger: logger, metrics: metrics}
}

// SetInvalidator registers the view cache to notify about changes.
func (s *CalendarService) SetInvalidator(inv calendarInvalidator) {
	s.invalidator = inv
}

// CreateEventRequest describes a new event. All-day events ignore the time of
// Start and Duration and span Days whole days.
type CreateEventRequest struct {
	CalendarID string             `json:"calendar_id" validate:"required"`
	Title      string             `json:"title" validate:"required,max=255"`
	Start      time.Time          `json:"start" validate:"required"`
	Duration   time.Duration      `json:"duration" validate:"gte=0"`
	AllDay     bool               `json:"all_day"`
	Days       int                `json:"days" validate:"gte=0"`
	Owner      string             `json:"owner"`
	Location   string             `json:"location" validate:"max=255"`
	Privacy    calendar.Privacy   `json:"privacy" validate:"omitempty,oneof=public private hidden"`
	Recurrence *calendar.RuleForm `json:"recurrence"`
}

// Create validates and stores a new event.
func (s *CalendarService) Create(ctx context.Context, req CreateEventRequest) (*calendar.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var (
		ev  *calendar.Event
		err error
	)
	if req.AllDay {
		days := req.Days
		if days == 0 {
			days = 1
		}
		ev, err = calendar.NewAllDayEvent("", req.Title, req.Start, days)
	} else {
		ev, err = calendar.NewEvent("", req.Title, req.Start, req.Duration)
	}
	if err != nil {
		return nil, err
	}
	ev.CalendarID = req.CalendarID
	ev.Owner = req.Owner
	ev.Location = req.Location
	if req.Privacy != "" {
		ev.Privacy = req.Privacy
	}
	if req.Recurrence != nil {
		rule, err := calendar.MakeRecurrenceRule(*req.Recurrence)
		if err != nil {
			return nil, err
		}
		ev.Recurrence = rule
	}

	row := rowFromEvent(ev)
	if err := s.repo.Create(ctx, &row); err != nil {
		return nil, internalError(err, "failed to create event")
	}
	ev.ID = row.ID
	s.changed(ctx, ev)
	s.logger.Debug("event created", zap.String("event_id", ev.ID), zap.String("calendar_id", ev.CalendarID))
	return ev, nil
}

// Calendar loads a calendar with its own events and the events that booked
// it as a resource.
func (s *CalendarService) Calendar(ctx context.Context, calendarID string) (*calendar.Calendar, error) {
	start := time.Now()
	rows, err := s.repo.List(ctx, models.CalendarEventFilter{CalendarID: calendarID})
	s.metrics.ObserveDBQuery("calendar_events.list", time.Since(start))
	if err != nil {
		return nil, internalError(err, "failed to load calendar")
	}
	cal := calendar.New(calendarID, calendarID)
	for _, row := range rows {
		ev, err := eventFromRow(row)
		if err != nil {
			s.logger.Warn("skipping unreadable event", zap.String("event_id", row.ID), zap.Error(err))
			continue
		}
		cal.Events = append(cal.Events, ev)
	}
	return cal, nil
}

// Get loads a single event.
func (s *CalendarService) Get(ctx context.Context, eventID string) (*calendar.Event, error) {
	row, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "event %s not found", eventID)
		}
		return nil, internalError(err, "failed to load event")
	}
	return eventFromRow(*row)
}

// DeleteOccurrence removes the whole event, the occurrences from date on, or
// only the occurrence on date. It reports whether the event is gone.
func (s *CalendarService) DeleteOccurrence(ctx context.Context, eventID string, mode calendar.DeleteMode, date time.Time) (bool, error) {
	ev, err := s.Get(ctx, eventID)
	if err != nil {
		return false, err
	}
	updated, err := ev.DeleteOccurrence(mode, date)
	if err != nil {
		return false, err
	}
	if updated == nil {
		if err := s.repo.Delete(ctx, eventID); err != nil {
			return false, internalError(err, "failed to delete event")
		}
		s.changed(ctx, ev)
		return true, nil
	}
	row := rowFromEvent(updated)
	if err := s.repo.Update(ctx, &row); err != nil {
		return false, internalError(err, "failed to update event")
	}
	s.changed(ctx, updated)
	return false, nil
}

// BookResources books the resource calendars for the event's occurrences in
// [from, to). Any overlap with an existing booking fails the whole request.
func (s *CalendarService) BookResources(ctx context.Context, eventID string, resourceIDs []string, from, to time.Time) (*calendar.Event, error) {
	if len(resourceIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one resource is required")
	}
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInterval, "booking window must end after it starts")
	}
	ev, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	resources := make([]*calendar.Calendar, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		cal, err := s.Calendar(ctx, id)
		if err != nil {
			return nil, err
		}
		resources = append(resources, cal)
	}
	if err := calendar.BookResources(ev, resources, from, to); err != nil {
		s.logger.Info("booking rejected", zap.String("event_id", eventID), zap.Strings("resources", resourceIDs), zap.Error(err))
		return nil, err
	}
	row := rowFromEvent(ev)
	if err := s.repo.Update(ctx, &row); err != nil {
		return nil, internalError(err, "failed to book resources")
	}
	s.changed(ctx, ev)
	return ev, nil
}

func (s *CalendarService) changed(ctx context.Context, ev *calendar.Event) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateCalendar(ctx, ev.CalendarID)
	for _, id := range ev.Resources {
		s.invalidator.InvalidateCalendar(ctx, id)
	}
}
