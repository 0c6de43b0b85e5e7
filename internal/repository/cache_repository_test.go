package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil, "")
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "view:person-1", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "view:person-1", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "view:*"))
	require.NoError(t, repo.Track(ctx, "deps:bob", "view:person-1", time.Minute))
	require.NoError(t, repo.DeleteTracked(ctx, "deps:bob"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, nil, "test")
	assert.Equal(t, "test:view:a", repo.key("view:a"))
	assert.Equal(t, "test:view:a", repo.key("test:view:a"))
	assert.Equal(t, DefaultCacheNamespace+":x", NewCacheRepository(nil, nil, "").key("x"))
}
