package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

func TestOverlayRepositoryListAndUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOverlayRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM overlays WHERE viewer_id = $1 ORDER BY created_at ASC")).
		WithArgs("person-1").
		WillReturnRows(sqlmock.NewRows([]string{"viewer_id", "calendar_id", "show", "show_timetables", "color1", "color2", "created_at"}).
			AddRow("person-1", "group-1", true, false, "#eed680", "#d1ba76", now))
	mock.ExpectExec("INSERT INTO overlays .* ON CONFLICT \\(viewer_id, calendar_id\\)").
		WithArgs("person-1", "room-1", true, true, "#e0b6af", "#c1665a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM overlays WHERE viewer_id = $1 AND calendar_id = $2")).
		WithArgs("person-1", "room-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	overlays, err := repo.ListForViewer(context.Background(), "person-1")
	require.NoError(t, err)
	require.Len(t, overlays, 1)
	assert.False(t, overlays[0].ShowTimetables)

	require.NoError(t, repo.Upsert(context.Background(), &models.Overlay{ViewerID: "person-1", CalendarID: "room-1", Show: true, ShowTimetables: true, Color1: "#e0b6af", Color2: "#c1665a"}))
	require.NoError(t, repo.Delete(context.Background(), "person-1", "room-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverlayRepositoryPreferences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOverlayRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM viewer_preferences WHERE owner_id = $1")).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO viewer_preferences").
		WithArgs("person-1", "Europe/Vilnius", true, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := repo.GetPreference(context.Background(), "nobody")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	pref := &models.ViewerPreference{OwnerID: "person-1", Timezone: "Europe/Vilnius", HideOwnTimetable: true, ShowPeriods: true}
	require.NoError(t, repo.UpsertPreference(context.Background(), pref))
	assert.False(t, pref.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
