package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

const calendarEventColumns = "id, calendar_id, title, start_at, duration_seconds, owner_id, location, resources, all_day, privacy, rrule, exdates, created_at, updated_at"

// CalendarEventRepository persists calendar events.
type CalendarEventRepository struct {
	db *sqlx.DB
}

// NewCalendarEventRepository constructs a calendar event repository.
func NewCalendarEventRepository(db *sqlx.DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

// List returns the events of a calendar, including events that booked the
// calendar as a resource. Repeating events are never filtered by range since
// their occurrences are only known after expansion.
func (r *CalendarEventRepository) List(ctx context.Context, filter models.CalendarEventFilter) ([]models.CalendarEvent, error) {
	where := []string{"(calendar_id = $1 OR $1 = ANY(resources))"}
	args := []interface{}{filter.CalendarID}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("(rrule IS NOT NULL OR start_at + duration_seconds * INTERVAL '1 second' > $%d)", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("(rrule IS NOT NULL OR start_at < $%d)", len(args)+1))
		args = append(args, *filter.To)
	}
	query := fmt.Sprintf("SELECT %s FROM calendar_events WHERE %s ORDER BY start_at ASC, id ASC", calendarEventColumns, strings.Join(where, " AND "))

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

// GetByID fetches a calendar event.
func (r *CalendarEventRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	query := "SELECT " + calendarEventColumns + " FROM calendar_events WHERE id = $1"
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a calendar event.
func (r *CalendarEventRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, calendar_id, title, start_at, duration_seconds, owner_id, location, resources, all_day, privacy, rrule, exdates, created_at, updated_at)
VALUES (:id, :calendar_id, :title, :start_at, :duration_seconds, :owner_id, :location, :resources, :all_day, :privacy, :rrule, :exdates, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Update modifies an event.
func (r *CalendarEventRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, start_at = :start_at, duration_seconds = :duration_seconds, location = :location,
resources = :resources, all_day = :all_day, privacy = :privacy, rrule = :rrule, exdates = :exdates, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

// Delete removes an event.
func (r *CalendarEventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
