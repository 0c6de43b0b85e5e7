package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/models"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// HolidayImport summarises an imported holiday calendar.
type HolidayImport struct {
	TermID   string   `json:"term_id"`
	Holidays []string `json:"holidays"`
	Skipped  int      `json:"skipped"`
}

// HolidayService turns iCalendar holiday files into school-day overrides.
type HolidayService struct {
	terms  termRepository
	cache  viewFlusher
	logger *zap.Logger
}

// viewFlusher drops every cached view.
type viewFlusher interface {
	InvalidateAll(ctx context.Context) error
}

// NewHolidayService constructs the service.
func NewHolidayService(terms termRepository, logger *zap.Logger) *HolidayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{terms: terms, logger: logger}
}

// SetCache registers the view cache to flush once holidays change. Every
// view may show timetable events, so all views are dropped.
func (s *HolidayService) SetCache(cache viewFlusher) {
	s.cache = cache
}

// Import reads all-day events from r and marks their dates inside the term
// as holidays. Timed events and dates outside the term are skipped.
func (s *HolidayService) Import(ctx context.Context, termID string, r io.Reader) (*HolidayImport, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "term %s not found", termID)
		}
		return nil, internalError(err, "failed to load term")
	}
	days, err := schoolDaysFromTerm(*term, nil)
	if err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid iCalendar file")
	}

	result := &HolidayImport{TermID: termID, Holidays: []string{}}
	seen := make(map[string]bool)
	var overrides []models.TermOverride
	for _, ev := range cal.Events() {
		first, last, ok := holidayRange(ev)
		if !ok {
			result.Skipped++
			continue
		}
		var note *string
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil && p.Value != "" {
			summary := p.Value
			note = &summary
		}
		for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
			key := d.Format(dateLayout)
			if !days.Contains(d) || seen[key] {
				continue
			}
			seen[key] = true
			overrides = append(overrides, models.TermOverride{TermID: termID, Date: d, SchoolDay: false, Note: note})
			result.Holidays = append(result.Holidays, key)
		}
	}
	sort.Strings(result.Holidays)
	if len(overrides) == 0 {
		return result, nil
	}

	if err := s.terms.UpsertOverrides(ctx, overrides); err != nil {
		return nil, internalError(err, "failed to store holidays")
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("failed to flush views after holiday import", zap.Error(err))
		}
	}
	s.logger.Info("holidays imported", zap.String("term_id", termID), zap.Int("dates", len(overrides)), zap.Int("skipped", result.Skipped))
	return result, nil
}

// holidayRange returns the dates [first, last) covered by an all-day event.
// A missing DTEND means a single day.
func holidayRange(ev *ical.VEvent) (time.Time, time.Time, bool) {
	first, ok := icalDate(ev.GetProperty(ical.ComponentPropertyDtStart))
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	last := first.AddDate(0, 0, 1)
	if end, ok := icalDate(ev.GetProperty(ical.ComponentPropertyDtEnd)); ok && end.After(first) {
		last = end
	}
	return first, last, true
}

// icalDate parses a DATE value (YYYYMMDD). Date-time values are rejected.
func icalDate(prop *ical.IANAProperty) (time.Time, bool) {
	if prop == nil {
		return time.Time{}, false
	}
	val := strings.TrimSpace(prop.Value)
	if len(val) != 8 || strings.Contains(val, "T") {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", val)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
