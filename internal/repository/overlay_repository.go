package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

// OverlayRepository persists overlaid calendars and viewer preferences.
type OverlayRepository struct {
	db *sqlx.DB
}

// NewOverlayRepository constructs an overlay repository.
func NewOverlayRepository(db *sqlx.DB) *OverlayRepository {
	return &OverlayRepository{db: db}
}

// ListForViewer returns the viewer's overlays in the order they were added.
func (r *OverlayRepository) ListForViewer(ctx context.Context, viewerID string) ([]models.Overlay, error) {
	const query = `SELECT viewer_id, calendar_id, show, show_timetables, color1, color2, created_at
FROM overlays WHERE viewer_id = $1 ORDER BY created_at ASC, calendar_id ASC`
	var overlays []models.Overlay
	if err := r.db.SelectContext(ctx, &overlays, query, viewerID); err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	return overlays, nil
}

// Upsert adds an overlay or updates its flags and colors.
func (r *OverlayRepository) Upsert(ctx context.Context, overlay *models.Overlay) error {
	if overlay.CreatedAt.IsZero() {
		overlay.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO overlays (viewer_id, calendar_id, show, show_timetables, color1, color2, created_at)
VALUES (:viewer_id, :calendar_id, :show, :show_timetables, :color1, :color2, :created_at)
ON CONFLICT (viewer_id, calendar_id) DO UPDATE SET show = EXCLUDED.show, show_timetables = EXCLUDED.show_timetables,
              color1 = EXCLUDED.color1, color2 = EXCLUDED.color2`
	if _, err := r.db.NamedExecContext(ctx, query, overlay); err != nil {
		return fmt.Errorf("upsert overlay: %w", err)
	}
	return nil
}

// Delete removes an overlay.
func (r *OverlayRepository) Delete(ctx context.Context, viewerID, calendarID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM overlays WHERE viewer_id = $1 AND calendar_id = $2`, viewerID, calendarID); err != nil {
		return fmt.Errorf("delete overlay: %w", err)
	}
	return nil
}

// GetPreference loads a viewer's preferences.
func (r *OverlayRepository) GetPreference(ctx context.Context, ownerID string) (*models.ViewerPreference, error) {
	const query = `SELECT owner_id, timezone, hide_own_timetable, show_periods, updated_at FROM viewer_preferences WHERE owner_id = $1`
	var pref models.ViewerPreference
	if err := r.db.GetContext(ctx, &pref, query, ownerID); err != nil {
		return nil, err
	}
	return &pref, nil
}

// UpsertPreference stores a viewer's preferences.
func (r *OverlayRepository) UpsertPreference(ctx context.Context, pref *models.ViewerPreference) error {
	pref.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO viewer_preferences (owner_id, timezone, hide_own_timetable, show_periods, updated_at)
VALUES (:owner_id, :timezone, :hide_own_timetable, :show_periods, :updated_at)
ON CONFLICT (owner_id) DO UPDATE SET timezone = EXCLUDED.timezone, hide_own_timetable = EXCLUDED.hide_own_timetable,
              show_periods = EXCLUDED.show_periods, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert viewer preference: %w", err)
	}
	return nil
}
