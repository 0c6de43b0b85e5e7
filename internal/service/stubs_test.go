package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ignas/schooltool.lyceum/internal/models"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
	"github.com/Ignas/schooltool.lyceum/pkg/jobs"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func at(month time.Month, d, hour, minute int) time.Time {
	return time.Date(2024, month, d, hour, minute, 0, 0, time.UTC)
}

type eventRepoStub struct {
	rows    map[string]models.CalendarEvent
	order   []string
	deleted []string
	err     error
}

func newEventRepoStub() *eventRepoStub {
	return &eventRepoStub{rows: map[string]models.CalendarEvent{}}
}

func (r *eventRepoStub) List(ctx context.Context, filter models.CalendarEventFilter) ([]models.CalendarEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.CalendarEvent
	for _, id := range r.order {
		row, ok := r.rows[id]
		if !ok {
			continue
		}
		booked := false
		for _, res := range row.Resources {
			booked = booked || res == filter.CalendarID
		}
		if row.CalendarID == filter.CalendarID || booked {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *eventRepoStub) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (r *eventRepoStub) Create(ctx context.Context, event *models.CalendarEvent) error {
	if r.err != nil {
		return r.err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.rows[event.ID] = *event
	r.order = append(r.order, event.ID)
	return nil
}

func (r *eventRepoStub) Update(ctx context.Context, event *models.CalendarEvent) error {
	if _, ok := r.rows[event.ID]; !ok {
		return sql.ErrNoRows
	}
	r.rows[event.ID] = *event
	return nil
}

func (r *eventRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.rows, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type ownerRepoStub struct {
	owners    map[string]models.Owner
	relations []models.OwnerRelation
	sources   []models.RelationSource
}

func newOwnerRepoStub(owners ...models.Owner) *ownerRepoStub {
	r := &ownerRepoStub{owners: map[string]models.Owner{}}
	for _, o := range owners {
		r.owners[o.ID] = o
	}
	return r
}

func (r *ownerRepoStub) relate(owner, kind, related string, useComposite bool) {
	r.relations = append(r.relations, models.OwnerRelation{OwnerID: owner, Kind: kind, RelatedID: related})
	for _, s := range r.sources {
		if s.OwnerID == owner && s.Kind == kind {
			return
		}
	}
	r.sources = append(r.sources, models.RelationSource{OwnerID: owner, Kind: kind, UseComposite: useComposite})
}

func (r *ownerRepoStub) FindByID(ctx context.Context, id string) (*models.Owner, error) {
	o, ok := r.owners[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (r *ownerRepoStub) ListActive(ctx context.Context, kinds ...models.OwnerKind) ([]models.Owner, error) {
	var out []models.Owner
	for _, o := range r.owners {
		if !o.IsActive {
			continue
		}
		for _, k := range kinds {
			if o.Kind == k {
				out = append(out, o)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ownerRepoStub) ListRelations(ctx context.Context, ownerIDs []string) ([]models.OwnerRelation, error) {
	var out []models.OwnerRelation
	for _, rel := range r.relations {
		if containsString(ownerIDs, rel.OwnerID) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *ownerRepoStub) ListSources(ctx context.Context, ownerIDs []string) ([]models.RelationSource, error) {
	var out []models.RelationSource
	for _, s := range r.sources {
		if containsString(ownerIDs, s.OwnerID) {
			out = append(out, s)
		}
	}
	return out, nil
}

type timetableRepoStub struct {
	schemas    map[string]models.TimetableSchema
	timetables []models.Timetable
	activities []models.TimetableActivity
	exceptions []models.TimetableException
}

func newTimetableRepoStub() *timetableRepoStub {
	return &timetableRepoStub{schemas: map[string]models.TimetableSchema{}}
}

func (r *timetableRepoStub) addTimetable(id, owner, term, schema string) {
	r.timetables = append(r.timetables, models.Timetable{ID: id, OwnerID: owner, TermID: term, SchemaID: schema})
}

func (r *timetableRepoStub) addActivity(timetableID, dayID, periodID, title string) {
	r.activities = append(r.activities, models.TimetableActivity{
		ID: uuid.NewString(), TimetableID: timetableID, DayID: dayID, PeriodID: periodID, Title: title,
	})
}

func (r *timetableRepoStub) FindSchema(ctx context.Context, id string) (*models.TimetableSchema, error) {
	s, ok := r.schemas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *timetableRepoStub) ListSchemas(ctx context.Context, ids []string) ([]models.TimetableSchema, error) {
	var out []models.TimetableSchema
	for _, id := range ids {
		if s, ok := r.schemas[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *timetableRepoStub) UpsertSchema(ctx context.Context, schema *models.TimetableSchema) error {
	r.schemas[schema.ID] = *schema
	return nil
}

func (r *timetableRepoStub) ListByOwners(ctx context.Context, ownerIDs []string) ([]models.Timetable, error) {
	var out []models.Timetable
	for _, tt := range r.timetables {
		if containsString(ownerIDs, tt.OwnerID) {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (r *timetableRepoStub) ListActivities(ctx context.Context, ids []string) ([]models.TimetableActivity, error) {
	var out []models.TimetableActivity
	for _, a := range r.activities {
		if containsString(ids, a.TimetableID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *timetableRepoStub) ListExceptions(ctx context.Context, ids []string) ([]models.TimetableException, error) {
	var out []models.TimetableException
	for _, e := range r.exceptions {
		if containsString(ids, e.TimetableID) {
			out = append(out, e)
		}
	}
	return out, nil
}

type termRepoStub struct {
	terms     []models.Term
	overrides []models.TermOverride
	upserted  []models.TermOverride
}

func (r *termRepoStub) FindByID(ctx context.Context, id string) (*models.Term, error) {
	for _, t := range r.terms {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *termRepoStub) List(ctx context.Context, filter models.TermFilter) ([]models.Term, error) {
	return r.terms, nil
}

func (r *termRepoStub) ListOverrides(ctx context.Context, termIDs []string) ([]models.TermOverride, error) {
	var out []models.TermOverride
	for _, o := range r.overrides {
		if containsString(termIDs, o.TermID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *termRepoStub) UpsertOverrides(ctx context.Context, overrides []models.TermOverride) error {
	r.upserted = append(r.upserted, overrides...)
	r.overrides = append(r.overrides, overrides...)
	return nil
}

type overlayRepoStub struct {
	overlays map[string][]models.Overlay
	prefs    map[string]models.ViewerPreference
}

func newOverlayRepoStub() *overlayRepoStub {
	return &overlayRepoStub{overlays: map[string][]models.Overlay{}, prefs: map[string]models.ViewerPreference{}}
}

func (r *overlayRepoStub) ListForViewer(ctx context.Context, viewerID string) ([]models.Overlay, error) {
	return r.overlays[viewerID], nil
}

func (r *overlayRepoStub) GetPreference(ctx context.Context, ownerID string) (*models.ViewerPreference, error) {
	p, ok := r.prefs[ownerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

// memoryCache is a CacheRepository keeping JSON payloads in memory.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	tracked map[string]map[string]bool
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, tracked: map[string]map[string]bool{}}
}

func (m *memoryCache) Track(ctx context.Context, key, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracked[key] == nil {
		m.tracked[key] = map[string]bool{}
	}
	m.tracked[key][member] = true
	return nil
}

func (m *memoryCache) DeleteTracked(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for member := range m.tracked[key] {
		delete(m.entries, member)
	}
	delete(m.tracked, key)
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	if strings.Contains(prefix, "*") {
		return errors.New("unsupported pattern")
	}
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	for k := range m.tracked {
		if strings.HasPrefix(k, prefix) {
			delete(m.tracked, k)
		}
	}
	return nil
}

func (m *memoryCache) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// flushSpy counts full view flushes.
type flushSpy struct {
	flushes int
}

func (f *flushSpy) InvalidateAll(ctx context.Context) error {
	f.flushes++
	return nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

const weeklySchemaYAML = `
id: weekly
title: Weekly
timezone: UTC
days:
  - {id: Monday, periods: ["1", "2"]}
  - {id: Tuesday, periods: ["1", "2"]}
  - {id: Wednesday, periods: ["1", "2"]}
  - {id: Thursday, periods: ["1", "2"]}
  - {id: Friday, periods: ["1", "2"]}
model:
  kind: weekly
  default:
    - {title: "1", start: 9h, duration: 45m}
    - {title: "2", start: 10h, duration: 45m}
`

// autumnTerm runs Monday 2024-09-02 to Friday 2024-12-20 on weekdays.
func autumnTerm() models.Term {
	return models.Term{ID: "2024-autumn", Name: "Autumn 2024", StartDate: day(time.September, 2), EndDate: day(time.December, 20), Weekdays: []int64{1, 2, 3, 4, 5}, IsActive: true}
}

func (r *ownerRepoStub) Create(ctx context.Context, owner *models.Owner) error {
	if _, ok := r.owners[owner.ID]; ok {
		return errors.New("duplicate owner " + owner.ID)
	}
	r.owners[owner.ID] = *owner
	return nil
}

func (r *ownerRepoStub) Relate(ctx context.Context, relation *models.OwnerRelation) error {
	r.relations = append(r.relations, *relation)
	return nil
}

func (r *ownerRepoStub) UpsertSource(ctx context.Context, source *models.RelationSource) error {
	for i, s := range r.sources {
		if s.OwnerID == source.OwnerID && s.Kind == source.Kind {
			r.sources[i] = *source
			return nil
		}
	}
	r.sources = append(r.sources, *source)
	return nil
}

func (r *termRepoStub) Create(ctx context.Context, term *models.Term) error {
	r.terms = append(r.terms, *term)
	return nil
}

func (r *timetableRepoStub) Create(ctx context.Context, tt *models.Timetable) error {
	if tt.ID == "" {
		tt.ID = uuid.NewString()
	}
	r.timetables = append(r.timetables, *tt)
	return nil
}

func (r *timetableRepoStub) AddActivity(ctx context.Context, activity *models.TimetableActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	r.activities = append(r.activities, *activity)
	return nil
}

func (r *timetableRepoStub) AddException(ctx context.Context, exception *models.TimetableException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	r.exceptions = append(r.exceptions, *exception)
	return nil
}

func (r *overlayRepoStub) Upsert(ctx context.Context, overlay *models.Overlay) error {
	list := r.overlays[overlay.ViewerID]
	for i, o := range list {
		if o.CalendarID == overlay.CalendarID {
			list[i] = *overlay
			return nil
		}
	}
	r.overlays[overlay.ViewerID] = append(list, *overlay)
	return nil
}

func (r *overlayRepoStub) UpsertPreference(ctx context.Context, pref *models.ViewerPreference) error {
	r.prefs[pref.OwnerID] = *pref
	return nil
}
