package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

const termColumns = "id, name, start_date, end_date, weekdays, is_active, created_at, updated_at"

// TermRepository handles persistence for school terms and their day overrides.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters ordered by start date.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, error) {
	var conditions []string
	var args []interface{}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.On != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d AND end_date >= $%d", len(args)+1, len(args)+1))
		args = append(args, *filter.On)
	}
	query := "SELECT " + termColumns + " FROM terms"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC"

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := "SELECT " + termColumns + " FROM terms WHERE id = $1"
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, start_date, end_date, weekdays, is_active, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :weekdays, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// ListOverrides returns the day overrides of the given terms.
func (r *TermRepository) ListOverrides(ctx context.Context, termIDs []string) ([]models.TermOverride, error) {
	if len(termIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT term_id, date, school_day, note FROM term_overrides WHERE term_id = ANY($1) ORDER BY term_id, date`
	var overrides []models.TermOverride
	if err := r.db.SelectContext(ctx, &overrides, query, pq.Array(termIDs)); err != nil {
		return nil, fmt.Errorf("list term overrides: %w", err)
	}
	return overrides, nil
}

// UpsertOverrides stores overrides in a single transaction.
func (r *TermRepository) UpsertOverrides(ctx context.Context, overrides []models.TermOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin term overrides tx: %w", err)
	}
	const query = `INSERT INTO term_overrides (term_id, date, school_day, note)
VALUES (:term_id, :date, :school_day, :note)
ON CONFLICT (term_id, date) DO UPDATE SET school_day = EXCLUDED.school_day, note = EXCLUDED.note`
	for i := range overrides {
		if _, err := tx.NamedExecContext(ctx, query, overrides[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert term override: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit term overrides tx: %w", err)
	}
	return nil
}
