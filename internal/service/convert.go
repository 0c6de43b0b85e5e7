package service

import (
	"strings"
	"time"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/models"
	"github.com/Ignas/schooltool.lyceum/internal/timetable"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

const dateLayout = "2006-01-02"

func eventFromRow(row models.CalendarEvent) (*calendar.Event, error) {
	ev := &calendar.Event{
		ID:         row.ID,
		CalendarID: row.CalendarID,
		Title:      row.Title,
		Start:      row.StartAt.UTC(),
		Duration:   time.Duration(row.DurationSeconds) * time.Second,
		Resources:  append([]string(nil), row.Resources...),
		AllDay:     row.AllDay,
		Privacy:    calendar.Privacy(row.Privacy),
	}
	if row.OwnerID != nil {
		ev.Owner = *row.OwnerID
	}
	if row.Location != nil {
		ev.Location = *row.Location
	}
	if ev.Privacy == "" {
		ev.Privacy = calendar.PrivacyPublic
	}
	if row.RRule != nil && strings.TrimSpace(*row.RRule) != "" {
		exceptions := make([]time.Time, 0, len(row.ExDates))
		for _, raw := range row.ExDates {
			date, err := time.Parse(dateLayout, raw)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInvalidRecurrenceRule.Code, appErrors.ErrInvalidRecurrenceRule.Status, "invalid exception date "+raw)
			}
			exceptions = append(exceptions, date)
		}
		rule, err := calendar.ParseRRule(*row.RRule, exceptions...)
		if err != nil {
			return nil, err
		}
		ev.Recurrence = rule
	}
	return ev, nil
}

func rowFromEvent(ev *calendar.Event) models.CalendarEvent {
	row := models.CalendarEvent{
		ID:              ev.ID,
		CalendarID:      ev.CalendarID,
		Title:           ev.Title,
		StartAt:         ev.Start.UTC(),
		DurationSeconds: int64(ev.Duration / time.Second),
		Resources:       append([]string{}, ev.Resources...),
		AllDay:          ev.AllDay,
		Privacy:         string(ev.Privacy),
		ExDates:         []string{},
	}
	if ev.Owner != "" {
		owner := ev.Owner
		row.OwnerID = &owner
	}
	if ev.Location != "" {
		location := ev.Location
		row.Location = &location
	}
	if ev.Recurrence != nil {
		rule := ev.Recurrence.RRuleString(ev.Start)
		row.RRule = &rule
		for _, ex := range ev.Recurrence.Spec().Exceptions {
			row.ExDates = append(row.ExDates, calendar.DateKey(ex))
		}
	}
	return row
}

func schoolDaysFromTerm(term models.Term, overrides []models.TermOverride) (*timetable.SchoolDays, error) {
	weekdays := make([]time.Weekday, 0, len(term.Weekdays))
	for _, wd := range term.Weekdays {
		if wd < 0 || wd > 6 {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "term %s: invalid weekday %d", term.ID, wd)
		}
		weekdays = append(weekdays, time.Weekday(wd))
	}
	days, err := timetable.NewSchoolDays(term.ID, term.StartDate, term.EndDate, weekdays...)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if o.TermID != term.ID {
			continue
		}
		if err := days.SetOverride(o.Date, o.SchoolDay); err != nil {
			return nil, err
		}
	}
	return days, nil
}

func activityFromRow(row models.TimetableActivity) timetable.Activity {
	return timetable.NewActivity(row.Title, row.OwnerID, row.Resources...)
}

func exceptionFromRow(row models.TimetableException, privacy calendar.Privacy) (timetable.Exception, error) {
	ex := timetable.NewException(row.Date, row.PeriodID, timetable.NewActivity(row.Title, row.OwnerID, row.Resources...))
	if row.ReplacementTitle == nil || row.ReplacementStart == nil {
		return ex, nil
	}
	var duration time.Duration
	if row.ReplacementDurationSeconds != nil {
		duration = time.Duration(*row.ReplacementDurationSeconds) * time.Second
	}
	replacement, err := calendar.NewEvent("", *row.ReplacementTitle, *row.ReplacementStart, duration)
	if err != nil {
		return ex, err
	}
	replacement.Privacy = privacy
	return ex.WithReplacement(replacement), nil
}

// timetableFromRows instantiates schema and fills it with stored content.
func timetableFromRows(schema *timetable.Schema, row models.Timetable, activities []models.TimetableActivity, exceptions []models.TimetableException) (*timetable.Timetable, error) {
	tt, err := schema.NewTimetable()
	if err != nil {
		return nil, err
	}
	if row.Timezone != "" {
		tt.Timezone = row.Timezone
	}
	if row.Privacy != "" {
		tt.Privacy = calendar.Privacy(row.Privacy)
	}
	for _, a := range activities {
		if a.TimetableID != row.ID {
			continue
		}
		if err := tt.Add(a.DayID, a.PeriodID, activityFromRow(a)); err != nil {
			return nil, err
		}
	}
	for _, e := range exceptions {
		if e.TimetableID != row.ID {
			continue
		}
		ex, err := exceptionFromRow(e, tt.Privacy)
		if err != nil {
			return nil, err
		}
		tt.AddException(ex)
	}
	return tt, nil
}
