package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/timetable"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
	"github.com/Ignas/schooltool.lyceum/pkg/export"
	"github.com/Ignas/schooltool.lyceum/pkg/storage"
)

// Export formats.
const (
	FormatICS = "ics"
	FormatCSV = "csv"
)

type timetableCalendarBuilder interface {
	TimetableCalendar(ctx context.Context, owner string) (*calendar.Calendar, error)
}

type schemaLoader interface {
	Schema(ctx context.Context, id string) (*timetable.Schema, error)
}

type FeedStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	ProductID string
	FeedTTL   time.Duration
}

// ExportRequest selects what to export. ICS exports keep recurring events as
// RRULEs; From and To only restrict the generated timetable events. CSV
// exports list the expanded occurrences of [From, To), which is required.
type ExportRequest struct {
	OwnerID          string    `json:"owner_id" validate:"required"`
	Format           string    `json:"format" validate:"required,oneof=ics csv"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Timezone         string    `json:"timezone" validate:"omitempty,timezone"`
	IncludeTimetable bool      `json:"include_timetable"`
}

// ExportService renders calendars to iCalendar and CSV and publishes feeds.
type ExportService struct {
	calendars  calendarLoader
	timetables timetableCalendarBuilder
	schemas    schemaLoader
	feeds      FeedStorage
	ical       *export.ICalExporter
	csv        *export.CSVExporter
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService. feeds may be nil when
// publishing is disabled.
func NewExportService(calendars calendarLoader, timetables timetableCalendarBuilder, schemas schemaLoader, feeds FeedStorage, validate *validator.Validate, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FeedTTL <= 0 {
		cfg.FeedTTL = 48 * time.Hour
	}
	return &ExportService{
		calendars:  calendars,
		timetables: timetables,
		schemas:    schemas,
		feeds:      feeds,
		ical:       export.NewICalExporter(cfg.ProductID),
		csv:        export.NewCSVExporter(),
		validator:  ensureValidator(validate),
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Write renders the requested export to w.
func (s *ExportService) Write(ctx context.Context, w io.Writer, req ExportRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	if req.Format == FormatCSV && (req.From.IsZero() || !req.To.After(req.From)) {
		return appErrors.Clone(appErrors.ErrInvalidInterval, "csv export needs a from/to window")
	}
	if !req.To.IsZero() && !req.To.After(req.From) {
		return appErrors.Clone(appErrors.ErrInvalidInterval, "to must be after from")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveCalendarBuild("export_"+req.Format, time.Since(start)) }()

	own, err := s.calendars.Calendar(ctx, req.OwnerID)
	if err != nil {
		return err
	}
	var generated *calendar.Calendar
	if req.IncludeTimetable {
		if generated, err = s.timetables.TimetableCalendar(ctx, req.OwnerID); err != nil {
			return err
		}
	}

	switch req.Format {
	case FormatICS:
		events := vevents(own.Events)
		if generated != nil {
			events = append(events, vevents(windowed(generated.Events, req.From, req.To))...)
		}
		exporter := *s.ical
		exporter.Name = req.OwnerID
		return exporter.Write(w, events)
	case FormatCSV:
		loc := time.UTC
		if req.Timezone != "" {
			loc, _ = time.LoadLocation(req.Timezone)
		}
		occurrences := own.Expand(req.From, req.To)
		if generated != nil {
			occurrences = append(occurrences, generated.Expand(req.From, req.To)...)
		}
		sort.SliceStable(occurrences, func(i, j int) bool { return occurrences[i].Start.Before(occurrences[j].Start) })
		s.metrics.AddOccurrences("export", len(occurrences))
		return s.csv.Write(w, occurrenceDataset(occurrences, loc))
	default:
		return appErrors.Clonef(appErrors.ErrUnsupportedFormat, "unsupported format %s", req.Format)
	}
}

// Publish renders an export and stores it as the owner's feed file.
func (s *ExportService) Publish(ctx context.Context, req ExportRequest) (string, error) {
	if s.feeds == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "feed publishing is disabled")
	}
	var buf strings.Builder
	if err := s.Write(ctx, &buf, req); err != nil {
		return "", err
	}
	name, err := s.feeds.Save(storage.FeedName(req.OwnerID, req.Format), []byte(buf.String()))
	if err != nil {
		return "", internalError(err, "failed to publish feed")
	}
	s.logger.Debug("feed published", zap.String("owner_id", req.OwnerID), zap.String("file", name))
	return name, nil
}

// CleanupFeeds removes feeds that were not refreshed within the feed TTL.
func (s *ExportService) CleanupFeeds() ([]string, error) {
	if s.feeds == nil {
		return nil, nil
	}
	return s.feeds.CleanupOlderThan(s.cfg.FeedTTL)
}

// SchemaYAML writes the stored schema document id.
func (s *ExportService) SchemaYAML(ctx context.Context, w io.Writer, id string) error {
	schema, err := s.schemas.Schema(ctx, id)
	if err != nil {
		return err
	}
	return schema.DumpYAML(w)
}

// windowed keeps events starting in [from, to). A zero bound is open.
func windowed(events []*calendar.Event, from, to time.Time) []*calendar.Event {
	if from.IsZero() && to.IsZero() {
		return events
	}
	out := make([]*calendar.Event, 0, len(events))
	for _, ev := range events {
		if !from.IsZero() && ev.Start.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.Start.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func vevents(events []*calendar.Event) []export.VEvent {
	out := make([]export.VEvent, 0, len(events))
	for _, ev := range events {
		v := export.VEvent{
			UID:      ev.ID,
			Summary:  ev.Title,
			Start:    ev.Start,
			End:      ev.End(),
			AllDay:   ev.AllDay,
			Location: ev.Location,
			Class:    icalClass(ev.Privacy),
		}
		if ev.Recurrence != nil {
			v.RRule, v.ExDates = ev.Recurrence.Interchange(ev.Start)
		}
		out = append(out, v)
	}
	return out
}

func icalClass(p calendar.Privacy) string {
	switch p {
	case calendar.PrivacyPrivate:
		return export.ClassPrivate
	case calendar.PrivacyHidden:
		return export.ClassConfidential
	default:
		return export.ClassPublic
	}
}

var csvHeaders = []string{"Date", "Start", "End", "Title", "Calendar", "Location", "Resources", "All Day"}

func occurrenceDataset(occurrences []calendar.Occurrence, loc *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(occurrences))
	for _, occ := range occurrences {
		start, end := occ.Start.In(loc), occ.End.In(loc)
		row := map[string]string{
			"Title":     occ.Event.Title,
			"Calendar":  occ.Event.CalendarID,
			"Location":  occ.Event.Location,
			"Resources": strings.Join(occ.Event.Resources, ";"),
			"All Day":   fmt.Sprintf("%t", occ.Event.AllDay),
		}
		if occ.Event.AllDay {
			row["Date"] = calendar.DateKey(occ.Start)
		} else {
			row["Date"] = start.Format(dateLayout)
			row["Start"] = start.Format("15:04")
			row["End"] = end.Format("15:04")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: csvHeaders, Rows: rows}
}
