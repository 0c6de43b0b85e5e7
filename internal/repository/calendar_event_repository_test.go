package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

var calendarEventRowColumns = []string{"id", "calendar_id", "title", "start_at", "duration_seconds", "owner_id", "location", "resources", "all_day", "privacy", "rrule", "exdates", "created_at", "updated_at"}

func TestCalendarEventRepositoryListIncludesBookings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	from := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	now := time.Now()
	rows := sqlmock.NewRows(calendarEventRowColumns).
		AddRow("ev-1", "room-1", "Booked", from.Add(9*time.Hour), 3600, "person-1", nil, "{room-1}", false, "public", nil, "{}", now, now).
		AddRow("ev-2", "person-2", "Weekly", from, 1800, nil, "Hall", "{room-1}", false, "private", "FREQ=WEEKLY;INTERVAL=1", "{2005-01-08}", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendar_events WHERE (calendar_id = $1 OR $1 = ANY(resources)) AND (rrule IS NOT NULL OR start_at + duration_seconds * INTERVAL '1 second' > $2) AND (rrule IS NOT NULL OR start_at < $3) ORDER BY start_at ASC")).
		WithArgs("room-1", from, to).
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), models.CalendarEventFilter{CalendarID: "room-1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"room-1"}, []string(events[0].Resources))
	assert.Equal(t, "person-1", *events[0].OwnerID)
	assert.Nil(t, events[0].RRule)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1", *events[1].RRule)
	assert.Equal(t, []string{"2005-01-08"}, []string(events[1].ExDates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryListError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectQuery("FROM calendar_events").WithArgs("cal").WillReturnError(errors.New("boom"))
	_, err := repo.List(context.Background(), models.CalendarEventFilter{CalendarID: "cal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list calendar events")
}

func TestCalendarEventRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	start := time.Date(2005, 1, 3, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO calendar_events").
		WithArgs(sqlmock.AnyArg(), "person-1", "Dentist", start, int64(3600), nil, nil, sqlmock.AnyArg(), false, "public", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.CalendarEvent{CalendarID: "person-1", Title: "Dentist", StartAt: start, DurationSeconds: 3600, Privacy: "public"}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryUpdateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE calendar_events SET title = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM calendar_events WHERE id = $1")).
		WithArgs("ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rule := "FREQ=DAILY;INTERVAL=1;UNTIL=20050110T000000Z"
	require.NoError(t, repo.Update(context.Background(), &models.CalendarEvent{ID: "ev-1", Title: "Standup", RRule: &rule}))
	require.NoError(t, repo.Delete(context.Background(), "ev-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendar_events WHERE id = $1")).
		WithArgs("ev-9").
		WillReturnRows(sqlmock.NewRows(calendarEventRowColumns).
			AddRow("ev-9", "person-1", "Holiday", now, 86400, nil, nil, "{}", true, "public", nil, "{}", now, now))

	event, err := repo.GetByID(context.Background(), "ev-9")
	require.NoError(t, err)
	assert.True(t, event.AllDay)
	assert.Equal(t, int64(86400), event.DurationSeconds)
}
