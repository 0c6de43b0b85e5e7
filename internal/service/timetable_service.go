package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/dto"
	"github.com/Ignas/schooltool.lyceum/internal/models"
	"github.com/Ignas/schooltool.lyceum/internal/timetable"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

type ownerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Owner, error)
	ListActive(ctx context.Context, kinds ...models.OwnerKind) ([]models.Owner, error)
	ListRelations(ctx context.Context, ownerIDs []string) ([]models.OwnerRelation, error)
	ListSources(ctx context.Context, ownerIDs []string) ([]models.RelationSource, error)
}

type timetableRepository interface {
	FindSchema(ctx context.Context, id string) (*models.TimetableSchema, error)
	ListSchemas(ctx context.Context, ids []string) ([]models.TimetableSchema, error)
	UpsertSchema(ctx context.Context, schema *models.TimetableSchema) error
	ListByOwners(ctx context.Context, ownerIDs []string) ([]models.Timetable, error)
	ListActivities(ctx context.Context, timetableIDs []string) ([]models.TimetableActivity, error)
	ListExceptions(ctx context.Context, timetableIDs []string) ([]models.TimetableException, error)
}

type termRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, error)
	ListOverrides(ctx context.Context, termIDs []string) ([]models.TermOverride, error)
	UpsertOverrides(ctx context.Context, overrides []models.TermOverride) error
}

// TimetableServiceConfig carries the calendar settings the service needs.
type TimetableServiceConfig struct {
	DefaultSchemaID string
}

// TimetableService assembles timetables, composites and timetable calendars
// from stored rows.
type TimetableService struct {
	owners     ownerRepository
	timetables timetableRepository
	terms      termRepository
	cfg        TimetableServiceConfig
	cache      viewFlusher
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewTimetableService constructs the service.
func NewTimetableService(owners ownerRepository, timetables timetableRepository, terms termRepository, cfg TimetableServiceConfig, metrics *MetricsService, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{owners: owners, timetables: timetables, terms: terms, cfg: cfg, metrics: metrics, logger: logger}
}

// SetCache registers the view cache to flush after a schema is stored.
func (s *TimetableService) SetCache(cache viewFlusher) {
	s.cache = cache
}

// Directory loads owner and everything its composites can reach: related
// owners of the configured source kinds, their sources and their private
// timetables.
func (s *TimetableService) Directory(ctx context.Context, owner string) (*timetable.Directory, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("timetable.directory", time.Since(start)) }()

	dir := timetable.NewDirectory()
	seen := map[string]bool{owner: true}
	ownerIDs := []string{owner}
	frontier := []string{owner}
	for len(frontier) > 0 {
		sources, err := s.owners.ListSources(ctx, frontier)
		if err != nil {
			return nil, internalError(err, "failed to load relation sources")
		}
		kinds := make(map[string]map[string]bool)
		grouped := make(map[string][]timetable.RelationSource)
		for _, src := range sources {
			if kinds[src.OwnerID] == nil {
				kinds[src.OwnerID] = make(map[string]bool)
			}
			kinds[src.OwnerID][src.Kind] = true
			grouped[src.OwnerID] = append(grouped[src.OwnerID], timetable.RelationSource{Kind: src.Kind, UseComposite: src.UseComposite})
		}
		for id, list := range grouped {
			dir.SetSources(id, list...)
		}

		relations, err := s.owners.ListRelations(ctx, frontier)
		if err != nil {
			return nil, internalError(err, "failed to load owner relations")
		}
		var next []string
		for _, rel := range relations {
			if !kinds[rel.OwnerID][rel.Kind] {
				continue
			}
			dir.Relate(rel.OwnerID, rel.Kind, rel.RelatedID)
			if !seen[rel.RelatedID] {
				seen[rel.RelatedID] = true
				ownerIDs = append(ownerIDs, rel.RelatedID)
				next = append(next, rel.RelatedID)
			}
		}
		frontier = next
	}

	rows, err := s.timetables.ListByOwners(ctx, ownerIDs)
	if err != nil {
		return nil, internalError(err, "failed to load timetables")
	}
	if len(rows) == 0 {
		return dir, nil
	}
	schemas, err := s.loadSchemas(ctx, rows)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	activities, err := s.timetables.ListActivities(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load timetable activities")
	}
	exceptions, err := s.timetables.ListExceptions(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load timetable exceptions")
	}
	for _, row := range rows {
		schema, ok := schemas[row.SchemaID]
		if !ok {
			s.logger.Warn("timetable references unknown schema", zap.String("timetable_id", row.ID), zap.String("schema_id", row.SchemaID))
			continue
		}
		tt, err := timetableFromRows(schema, row, activities, exceptions)
		if err != nil {
			return nil, err
		}
		dir.Put(row.OwnerID, timetable.Key{TermID: row.TermID, SchemaID: row.SchemaID}, tt)
	}
	return dir, nil
}

func (s *TimetableService) loadSchemas(ctx context.Context, rows []models.Timetable) (map[string]*timetable.Schema, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.SchemaID] {
			seen[row.SchemaID] = true
			ids = append(ids, row.SchemaID)
		}
	}
	docs, err := s.timetables.ListSchemas(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load timetable schemas")
	}
	out := make(map[string]*timetable.Schema, len(docs))
	for _, doc := range docs {
		schema, err := timetable.LoadSchemaYAML(strings.NewReader(doc.Document))
		if err != nil {
			return nil, err
		}
		out[doc.ID] = schema
	}
	return out, nil
}

// Composite merges the timetables owner inherits for key. Absence is
// reported as mo.None.
func (s *TimetableService) Composite(ctx context.Context, owner string, key timetable.Key) (mo.Option[*timetable.Timetable], error) {
	dir, err := s.Directory(ctx, owner)
	if err != nil {
		return mo.None[*timetable.Timetable](), err
	}
	result, err := timetable.NewComposer(dir).Composite(owner, key)
	switch {
	case err != nil:
		s.metrics.RecordComposite("error")
	case result.IsPresent():
		s.metrics.RecordComposite("built")
	default:
		s.metrics.RecordComposite("absent")
	}
	return result, err
}

// ListComposite lists the keys of every composite timetable of owner.
func (s *TimetableService) ListComposite(ctx context.Context, owner string) ([]timetable.Key, error) {
	dir, err := s.Directory(ctx, owner)
	if err != nil {
		return nil, err
	}
	return timetable.NewComposer(dir).ListComposite(owner), nil
}

// Terms loads every term with its school-day overrides, ordered by start.
func (s *TimetableService) Terms(ctx context.Context) ([]*timetable.SchoolDays, error) {
	rows, err := s.terms.List(ctx, models.TermFilter{})
	if err != nil {
		return nil, internalError(err, "failed to load terms")
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	overrides, err := s.terms.ListOverrides(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load term overrides")
	}
	terms := make([]*timetable.SchoolDays, 0, len(rows))
	for _, row := range rows {
		days, err := schoolDaysFromTerm(row, overrides)
		if err != nil {
			return nil, err
		}
		terms = append(terms, days)
	}
	return terms, nil
}

// TimetableCalendar generates the calendar of every composite timetable of
// owner over its term.
func (s *TimetableService) TimetableCalendar(ctx context.Context, owner string) (*calendar.Calendar, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCalendarBuild("timetable", time.Since(start)) }()

	dir, err := s.Directory(ctx, owner)
	if err != nil {
		return nil, err
	}
	terms, err := s.Terms(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*timetable.SchoolDays, len(terms))
	for _, term := range terms {
		byID[term.ID] = term
	}
	cal, err := timetable.NewComposer(dir).TimetableCalendar(owner, byID)
	if err != nil {
		s.metrics.RecordComposite("error")
		return nil, err
	}
	return cal, nil
}

// Schema loads a stored schema document.
func (s *TimetableService) Schema(ctx context.Context, id string) (*timetable.Schema, error) {
	row, err := s.timetables.FindSchema(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "schema %s not found", id)
		}
		return nil, internalError(err, "failed to load schema")
	}
	return timetable.LoadSchemaYAML(strings.NewReader(row.Document))
}

// SaveSchema validates schema and stores it as YAML.
func (s *TimetableService) SaveSchema(ctx context.Context, schema *timetable.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := schema.DumpYAML(&buf); err != nil {
		return err
	}
	row := &models.TimetableSchema{ID: schema.ID, Title: schema.Title, Document: buf.String()}
	if err := s.timetables.UpsertSchema(ctx, row); err != nil {
		return internalError(err, "failed to store schema")
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("failed to flush views after schema change", zap.String("schema_id", schema.ID), zap.Error(err))
		}
	}
	return nil
}

// PeriodsForDay returns the periods of date under the default schema. With
// no default schema configured there are no periods.
func (s *TimetableService) PeriodsForDay(ctx context.Context, date time.Time) ([]timetable.SchoolPeriod, error) {
	if s.cfg.DefaultSchemaID == "" {
		return []timetable.SchoolPeriod{}, nil
	}
	schema, err := s.Schema(ctx, s.cfg.DefaultSchemaID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("default schema missing", zap.String("schema_id", s.cfg.DefaultSchemaID))
			return []timetable.SchoolPeriod{}, nil
		}
		return nil, err
	}
	tt, err := schema.NewTimetable()
	if err != nil {
		return nil, err
	}
	terms, err := s.Terms(ctx)
	if err != nil {
		return nil, err
	}
	return timetable.PeriodsForDay(terms, tt, date), nil
}

// CompositeSummaries flattens every composite timetable of owner for
// listing.
func (s *TimetableService) CompositeSummaries(ctx context.Context, owner string) ([]dto.CompositeSummary, error) {
	dir, err := s.Directory(ctx, owner)
	if err != nil {
		return nil, err
	}
	composer := timetable.NewComposer(dir)
	keys := composer.ListComposite(owner)
	out := make([]dto.CompositeSummary, 0, len(keys))
	for _, key := range keys {
		result, err := composer.Composite(owner, key)
		if err != nil {
			s.metrics.RecordComposite("error")
			return nil, err
		}
		tt, ok := result.Get()
		if !ok {
			continue
		}
		s.metrics.RecordComposite("built")
		summary := dto.CompositeSummary{
			OwnerID:    owner,
			TermID:     key.TermID,
			SchemaID:   key.SchemaID,
			Activities: []dto.SlotActivity{},
			Exceptions: len(tt.Exceptions),
		}
		if tt.Model != nil {
			summary.Model = string(tt.Model.Kind())
		}
		for _, item := range tt.Items() {
			summary.Activities = append(summary.Activities, dto.SlotActivity{
				DayID:     item.DayID,
				PeriodID:  item.PeriodID,
				Title:     item.Activity.Title,
				Owner:     item.Activity.Owner,
				Resources: item.Activity.Resources,
			})
		}
		out = append(out, summary)
	}
	return out, nil
}

// PeriodSummaries renders PeriodsForDay as wall-clock times.
func (s *TimetableService) PeriodSummaries(ctx context.Context, date time.Time) ([]dto.PeriodSummary, error) {
	periods, err := s.PeriodsForDay(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PeriodSummary, 0, len(periods))
	for _, p := range periods {
		out = append(out, dto.PeriodSummary{
			Title:           p.Title,
			Start:           clock(p.Start),
			End:             clock(p.Start + p.Duration),
			DurationMinutes: int(p.Duration / time.Minute),
		})
	}
	return out, nil
}

func clock(offset time.Duration) string {
	minutes := int(offset / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
