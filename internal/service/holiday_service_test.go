package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ignas/schooltool.lyceum/internal/models"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

const holidayICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Holidays//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:autumn-break\r\n" +
	"DTSTAMP:20240801T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20241028\r\n" +
	"DTEND;VALUE=DATE:20241102\r\n" +
	"SUMMARY:Autumn break\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:summer\r\n" +
	"DTSTAMP:20240801T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240815\r\n" +
	"SUMMARY:Assumption\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:assembly\r\n" +
	"DTSTAMP:20240801T000000Z\r\n" +
	"DTSTART:20241104T090000Z\r\n" +
	"DTEND:20241104T100000Z\r\n" +
	"SUMMARY:Assembly\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:all-saints\r\n" +
	"DTSTAMP:20240801T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20241101\r\n" +
	"SUMMARY:All Saints\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestHolidayServiceImport(t *testing.T) {
	terms := &termRepoStub{terms: []models.Term{autumnTerm()}}
	store := newMemoryCache()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	require.NoError(t, cache.Set(context.Background(), "view:ann:ann:days:x:y", []string{"cached"}, time.Minute))

	svc := NewHolidayService(terms, nil)
	svc.SetCache(cache)

	result, err := svc.Import(context.Background(), "2024-autumn", strings.NewReader(holidayICS))
	require.NoError(t, err)
	// Weekend dates and dates outside the term are not school days to begin with.
	assert.Equal(t, []string{"2024-10-28", "2024-10-29", "2024-10-30", "2024-10-31", "2024-11-01"}, result.Holidays)
	assert.Equal(t, 1, result.Skipped, "timed events are not holidays")

	require.Len(t, terms.upserted, 5)
	for _, o := range terms.upserted {
		assert.False(t, o.SchoolDay)
		require.NotNil(t, o.Note)
	}
	assert.Equal(t, "Autumn break", *terms.upserted[0].Note)
	assert.Empty(t, store.keys(), "views are flushed")
}

func TestHolidayServiceImportErrors(t *testing.T) {
	terms := &termRepoStub{terms: []models.Term{autumnTerm()}}
	svc := NewHolidayService(terms, nil)

	_, err := svc.Import(context.Background(), "2030-spring", strings.NewReader(holidayICS))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Import(context.Background(), "2024-autumn", strings.NewReader("not a calendar"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, terms.upserted)
}
