package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

// OwnerRepository persists calendar owners, their relations and the relation
// kinds that feed composite timetables.
type OwnerRepository struct {
	db *sqlx.DB
}

// NewOwnerRepository constructs an owner repository.
func NewOwnerRepository(db *sqlx.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// FindByID loads an owner.
func (r *OwnerRepository) FindByID(ctx context.Context, id string) (*models.Owner, error) {
	const query = `SELECT id, kind, title, timezone, is_active, created_at, updated_at FROM owners WHERE id = $1`
	var owner models.Owner
	if err := r.db.GetContext(ctx, &owner, query, id); err != nil {
		return nil, err
	}
	return &owner, nil
}

// ListActive returns active owners, optionally restricted to kinds.
func (r *OwnerRepository) ListActive(ctx context.Context, kinds ...models.OwnerKind) ([]models.Owner, error) {
	query := `SELECT id, kind, title, timezone, is_active, created_at, updated_at FROM owners WHERE is_active = TRUE`
	var args []interface{}
	if len(kinds) > 0 {
		values := make([]string, len(kinds))
		for i, k := range kinds {
			values[i] = string(k)
		}
		query += " AND kind = ANY($1)"
		args = append(args, pq.Array(values))
	}
	query += " ORDER BY id ASC"
	var owners []models.Owner
	if err := r.db.SelectContext(ctx, &owners, query, args...); err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

// Create inserts an owner.
func (r *OwnerRepository) Create(ctx context.Context, owner *models.Owner) error {
	now := time.Now().UTC()
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = now
	}
	owner.UpdatedAt = now
	if owner.Timezone == "" {
		owner.Timezone = "UTC"
	}
	const query = `INSERT INTO owners (id, kind, title, timezone, is_active, created_at, updated_at)
VALUES (:id, :kind, :title, :timezone, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	return nil
}

// ListRelations returns the relations of the given owners.
func (r *OwnerRepository) ListRelations(ctx context.Context, ownerIDs []string) ([]models.OwnerRelation, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT owner_id, kind, related_id, created_at FROM owner_relations WHERE owner_id = ANY($1) ORDER BY owner_id, kind, related_id`
	var relations []models.OwnerRelation
	if err := r.db.SelectContext(ctx, &relations, query, pq.Array(ownerIDs)); err != nil {
		return nil, fmt.Errorf("list owner relations: %w", err)
	}
	return relations, nil
}

// Relate links two owners. Existing links are left untouched.
func (r *OwnerRepository) Relate(ctx context.Context, relation *models.OwnerRelation) error {
	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO owner_relations (owner_id, kind, related_id, created_at)
VALUES (:owner_id, :kind, :related_id, :created_at)
ON CONFLICT (owner_id, kind, related_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, relation); err != nil {
		return fmt.Errorf("relate owners: %w", err)
	}
	return nil
}

// ListSources returns the relation sources of the given owners.
func (r *OwnerRepository) ListSources(ctx context.Context, ownerIDs []string) ([]models.RelationSource, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT owner_id, kind, use_composite FROM relation_sources WHERE owner_id = ANY($1) ORDER BY owner_id, kind`
	var sources []models.RelationSource
	if err := r.db.SelectContext(ctx, &sources, query, pq.Array(ownerIDs)); err != nil {
		return nil, fmt.Errorf("list relation sources: %w", err)
	}
	return sources, nil
}

// UpsertSource stores a relation source.
func (r *OwnerRepository) UpsertSource(ctx context.Context, source *models.RelationSource) error {
	const query = `INSERT INTO relation_sources (owner_id, kind, use_composite)
VALUES (:owner_id, :kind, :use_composite)
ON CONFLICT (owner_id, kind) DO UPDATE SET use_composite = EXCLUDED.use_composite`
	if _, err := r.db.NamedExecContext(ctx, query, source); err != nil {
		return fmt.Errorf("upsert relation source: %w", err)
	}
	return nil
}
