package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

// TimetableRepository persists timetable schemas, timetables, their
// activities and exceptions.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindSchema loads a schema document.
func (r *TimetableRepository) FindSchema(ctx context.Context, id string) (*models.TimetableSchema, error) {
	const query = `SELECT id, title, document, updated_at FROM timetable_schemas WHERE id = $1`
	var schema models.TimetableSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		return nil, err
	}
	return &schema, nil
}

// ListSchemas returns the schemas with the given ids.
func (r *TimetableRepository) ListSchemas(ctx context.Context, ids []string) ([]models.TimetableSchema, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, title, document, updated_at FROM timetable_schemas WHERE id = ANY($1) ORDER BY id`
	var schemas []models.TimetableSchema
	if err := r.db.SelectContext(ctx, &schemas, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list timetable schemas: %w", err)
	}
	return schemas, nil
}

// UpsertSchema inserts or replaces a schema document.
func (r *TimetableRepository) UpsertSchema(ctx context.Context, schema *models.TimetableSchema) error {
	schema.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO timetable_schemas (id, title, document, updated_at)
VALUES (:id, :title, :document, :updated_at)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, schema); err != nil {
		return fmt.Errorf("upsert timetable schema: %w", err)
	}
	return nil
}

// ListByOwners returns the timetables of the given owners.
func (r *TimetableRepository) ListByOwners(ctx context.Context, ownerIDs []string) ([]models.Timetable, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, owner_id, term_id, schema_id, timezone, privacy, created_at, updated_at
FROM timetables WHERE owner_id = ANY($1) ORDER BY owner_id, term_id, schema_id`
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, pq.Array(ownerIDs)); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// Create inserts a timetable.
func (r *TimetableRepository) Create(ctx context.Context, tt *models.Timetable) error {
	if tt.ID == "" {
		tt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = now
	}
	tt.UpdatedAt = now
	const query = `INSERT INTO timetables (id, owner_id, term_id, schema_id, timezone, privacy, created_at, updated_at)
VALUES (:id, :owner_id, :term_id, :schema_id, :timezone, :privacy, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tt); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// ListActivities returns the activities of the given timetables.
func (r *TimetableRepository) ListActivities(ctx context.Context, timetableIDs []string) ([]models.TimetableActivity, error) {
	if len(timetableIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, timetable_id, day_id, period_id, title, owner_id, resources
FROM timetable_activities WHERE timetable_id = ANY($1) ORDER BY timetable_id, day_id, period_id, title`
	var activities []models.TimetableActivity
	if err := r.db.SelectContext(ctx, &activities, query, pq.Array(timetableIDs)); err != nil {
		return nil, fmt.Errorf("list timetable activities: %w", err)
	}
	return activities, nil
}

// AddActivity inserts an activity.
func (r *TimetableRepository) AddActivity(ctx context.Context, activity *models.TimetableActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_activities (id, timetable_id, day_id, period_id, title, owner_id, resources)
VALUES (:id, :timetable_id, :day_id, :period_id, :title, :owner_id, :resources)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("add timetable activity: %w", err)
	}
	return nil
}

// ListExceptions returns the exceptions of the given timetables.
func (r *TimetableRepository) ListExceptions(ctx context.Context, timetableIDs []string) ([]models.TimetableException, error) {
	if len(timetableIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, timetable_id, date, period_id, title, owner_id, resources, replacement_title, replacement_start, replacement_duration_seconds
FROM timetable_exceptions WHERE timetable_id = ANY($1) ORDER BY timetable_id, date, period_id`
	var exceptions []models.TimetableException
	if err := r.db.SelectContext(ctx, &exceptions, query, pq.Array(timetableIDs)); err != nil {
		return nil, fmt.Errorf("list timetable exceptions: %w", err)
	}
	return exceptions, nil
}

// AddException inserts an exception.
func (r *TimetableRepository) AddException(ctx context.Context, exception *models.TimetableException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_exceptions (id, timetable_id, date, period_id, title, owner_id, resources, replacement_title, replacement_start, replacement_duration_seconds)
VALUES (:id, :timetable_id, :date, :period_id, :title, :owner_id, :resources, :replacement_title, :replacement_start, :replacement_duration_seconds)`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("add timetable exception: %w", err)
	}
	return nil
}
