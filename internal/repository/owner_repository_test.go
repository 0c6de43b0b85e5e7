package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ignas/schooltool.lyceum/internal/models"
)

func TestOwnerRepositoryListActiveByKind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOwnerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM owners WHERE is_active = TRUE AND kind = ANY($1) ORDER BY id ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "title", "timezone", "is_active", "created_at", "updated_at"}).
			AddRow("person-1", "PERSON", "Jonas", "Europe/Vilnius", true, now, now))

	owners, err := repo.ListActive(context.Background(), models.OwnerKindPerson)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, models.OwnerKindPerson, owners[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositoryCreateDefaultsTimezone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOwnerRepository(db)

	mock.ExpectExec("INSERT INTO owners").
		WithArgs("room-1", "RESOURCE", "Room 1", "UTC", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), &models.Owner{ID: "room-1", Kind: models.OwnerKindResource, Title: "Room 1", IsActive: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositoryRelationsAndSources(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOwnerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM owner_relations WHERE owner_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "kind", "related_id", "created_at"}).
			AddRow("student-1", "membership", "group-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM relation_sources WHERE owner_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "kind", "use_composite"}).
			AddRow("student-1", "membership", true))
	mock.ExpectExec("INSERT INTO owner_relations .* ON CONFLICT \\(owner_id, kind, related_id\\) DO NOTHING").
		WithArgs("student-1", "membership", "group-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO relation_sources").
		WithArgs("student-1", "taught", false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	relations, err := repo.ListRelations(context.Background(), []string{"student-1"})
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "group-1", relations[0].RelatedID)

	sources, err := repo.ListSources(context.Background(), []string{"student-1"})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].UseComposite)

	require.NoError(t, repo.Relate(context.Background(), &models.OwnerRelation{OwnerID: "student-1", Kind: "membership", RelatedID: "group-2"}))
	require.NoError(t, repo.UpsertSource(context.Background(), &models.RelationSource{OwnerID: "student-1", Kind: "taught"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepositoryEmptyInputsSkipQueries(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOwnerRepository(db)

	relations, err := repo.ListRelations(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, relations)
	sources, err := repo.ListSources(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.NoError(t, mock.ExpectationsWereMet())
}
