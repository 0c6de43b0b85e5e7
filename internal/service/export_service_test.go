package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
	"github.com/Ignas/schooltool.lyceum/pkg/storage"
)

func newExportServiceForTest(t *testing.T, feeds FeedStorage) (*ExportService, *viewFixture) {
	t.Helper()
	f := newViewFixture(t)
	svc := NewExportService(f.calendar, f.timetableFixture.svc, f.timetableFixture.svc, feeds, nil,
		ExportConfig{ProductID: "-//Lyceum//Calendar//EN"}, nil, nil)
	svc.ical.Now = func() time.Time { return at(time.August, 1, 12, 0) }
	return svc, f
}

func TestExportServiceICS(t *testing.T) {
	svc, f := newExportServiceForTest(t, nil)
	ctx := context.Background()

	ev, err := f.calendar.Create(ctx, CreateEventRequest{
		CalendarID: "ann", Title: "Choir practice", Start: at(time.September, 3, 15, 0), Duration: time.Hour,
		Privacy:    calendar.PrivacyPrivate,
		Recurrence: &calendar.RuleForm{Frequency: calendar.Weekly, Range: calendar.RangeCount, Count: 4},
	})
	require.NoError(t, err)
	_, err = f.calendar.DeleteOccurrence(ctx, ev.ID, calendar.DeleteCurrent, day(time.September, 10))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Write(ctx, &buf, ExportRequest{OwnerID: "ann", Format: FormatICS}))
	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "PRODID:-//Lyceum//Calendar//EN")
	assert.Contains(t, out, "SUMMARY:Choir practice")
	assert.Contains(t, out, "RRULE:")
	assert.Contains(t, out, "FREQ=WEEKLY")
	assert.Contains(t, out, "EXDATE")
	assert.Contains(t, out, "CLASS:PRIVATE")
	assert.NotContains(t, out, "SUMMARY:Math", "timetable events are opt-in")

	buf.Reset()
	require.NoError(t, svc.Write(ctx, &buf, ExportRequest{
		OwnerID: "ann", Format: FormatICS, IncludeTimetable: true,
		From: day(time.September, 2), To: day(time.September, 9),
	}))
	out = buf.String()
	assert.Equal(t, 1, strings.Count(out, "SUMMARY:Math"))
	assert.Equal(t, 1, strings.Count(out, "SUMMARY:Choir\r\n"))
}

func TestExportServiceICSAgreesWithExpansion(t *testing.T) {
	svc, f := newExportServiceForTest(t, nil)
	ctx := context.Background()

	ev, err := f.calendar.Create(ctx, CreateEventRequest{
		CalendarID: "ann", Title: "Chess club", Start: at(time.September, 3, 15, 0), Duration: time.Hour,
		Recurrence: &calendar.RuleForm{Frequency: calendar.Weekly, Range: calendar.RangeCount, Count: 4},
	})
	require.NoError(t, err)
	_, err = f.calendar.DeleteOccurrence(ctx, ev.ID, calendar.DeleteCurrent, day(time.September, 10))
	require.NoError(t, err)
	stored, err := f.calendar.Get(ctx, ev.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Write(ctx, &buf, ExportRequest{OwnerID: "ann", Format: FormatICS}))
	assert.Contains(t, buf.String(), "EXDATE:20240910T150000Z")

	feed, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	var lines []string
	for _, vevent := range feed.Events() {
		if uid, _ := vevent.Props.Text(ical.PropUID); uid != ev.ID {
			continue
		}
		lines = append(lines,
			"DTSTART:"+vevent.Props.Get(ical.PropDateTimeStart).Value,
			"RRULE:"+vevent.Props.Get(ical.PropRecurrenceRule).Value)
		for _, ex := range vevent.Props.Values(ical.PropExceptionDates) {
			lines = append(lines, "EXDATE:"+ex.Value)
		}
	}
	require.Len(t, lines, 3)

	set, err := rrule.StrToRRuleSet(strings.Join(lines, "\n"))
	require.NoError(t, err)
	var client, engine []string
	for _, occ := range set.All() {
		client = append(client, occ.UTC().Format(time.RFC3339))
	}
	for _, occ := range stored.Recurrence.Expand(stored.Start, time.Time{}, time.Time{}).Collect() {
		engine = append(engine, occ.Format(time.RFC3339))
	}
	assert.Equal(t, []string{"2024-09-03T15:00:00Z", "2024-09-17T15:00:00Z", "2024-09-24T15:00:00Z"}, engine)
	assert.Equal(t, engine, client)
}

func TestExportServiceCSV(t *testing.T) {
	svc, f := newExportServiceForTest(t, nil)
	ctx := context.Background()
	_, err := f.calendar.Create(ctx, CreateEventRequest{
		CalendarID: "ann", Title: "Dentist", Start: at(time.September, 3, 14, 0), Duration: time.Hour, Location: "Clinic",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = svc.Write(ctx, &buf, ExportRequest{
		OwnerID: "ann", Format: FormatCSV, IncludeTimetable: true,
		From: day(time.September, 2), To: day(time.September, 4),
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Start,End,Title,Calendar,Location,Resources,All Day", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-09-02,09:00,09:45,Math,"))
	assert.True(t, strings.HasPrefix(lines[2], "2024-09-02,10:00,10:45,Choir,"))
	assert.Equal(t, "2024-09-03,14:00,15:00,Dentist,ann,Clinic,,false", lines[3])

	buf.Reset()
	err = svc.Write(ctx, &buf, ExportRequest{
		OwnerID: "ann", Format: FormatCSV, Timezone: "Europe/Vilnius",
		From: day(time.September, 3), To: day(time.September, 4),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2024-09-03,17:00,18:00,Dentist")
}

func TestExportServiceRejectsBadRequests(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)
	ctx := context.Background()
	var buf bytes.Buffer

	err := svc.Write(ctx, &buf, ExportRequest{OwnerID: "ann", Format: FormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInterval), "csv needs a window")

	err = svc.Write(ctx, &buf, ExportRequest{OwnerID: "ann", Format: "pdf"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.Write(ctx, &buf, ExportRequest{OwnerID: "ann", Format: FormatICS, Timezone: "Mars/Olympus"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Publish(ctx, ExportRequest{OwnerID: "ann", Format: FormatICS})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, buf.String())
}

func TestExportServicePublish(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFeedStore(dir)
	require.NoError(t, err)
	svc, _ := newExportServiceForTest(t, store)

	name, err := svc.Publish(context.Background(), ExportRequest{OwnerID: "ann", Format: FormatICS, IncludeTimetable: true})
	require.NoError(t, err)
	assert.Equal(t, "ann.ics", name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:Math")

	removed, err := svc.CleanupFeeds()
	require.NoError(t, err)
	assert.Empty(t, removed, "fresh feeds are kept")
}

func TestExportServiceSchemaYAML(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.SchemaYAML(context.Background(), &buf, "weekly"))
	assert.Contains(t, buf.String(), "id: weekly")

	err := svc.SchemaYAML(context.Background(), &buf, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
