package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Track(ctx context.Context, key, member string, ttl time.Duration) error
	DeleteTracked(ctx context.Context, key string) error
}

// CacheService stores rendered calendar views. Keys start with the context
// calendar id, and every view is also tracked under each calendar merged into
// it, so a change to a calendar can drop every view built on it.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// ViewKey builds the key of a rendered view of contextID as seen by viewerID.
func ViewKey(contextID, viewerID, kind string, start, end time.Time) string {
	return fmt.Sprintf("view:%s:%s:%s:%s:%s", escapeKey(contextID), escapeKey(viewerID), kind,
		start.UTC().Format("20060102T1504"), end.UTC().Format("20060102T1504"))
}

func dependencyKey(calendarID string) string {
	return "deps:" + escapeKey(calendarID)
}

// escapeKey keeps ids containing glob characters from widening invalidation
// patterns.
func escapeKey(id string) string {
	return strings.NewReplacer("*", "_", "?", "_", "[", "_", "]", "_", ":", "_").Replace(id)
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// SetView stores a rendered view and tracks it under every source calendar.
// When tracking fails the view is dropped again.
func (s *CacheService) SetView(ctx context.Context, key string, value interface{}, ttl time.Duration, sources []string) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	for _, id := range sources {
		if err := s.repo.Track(ctx, dependencyKey(id), key, ttl); err != nil {
			s.logger.Warn("cache track failed", zap.String("key", key), zap.String("calendar_id", id), zap.Error(err))
			_ = s.repo.DeleteByPattern(ctx, key)
			return err
		}
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateCalendar drops every view built on calendarID, as context or as
// a merged source. Failures are logged only; stale views expire with their
// TTL.
func (s *CacheService) InvalidateCalendar(ctx context.Context, calendarID string) {
	_ = s.Invalidate(ctx, "view:"+escapeKey(calendarID)+":*")
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteTracked(ctx, dependencyKey(calendarID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("calendar_id", calendarID), zap.Error(err))
	}
}

// InvalidateAll drops every cached view. Timetable, schema and preference
// changes reach views through composites and are not tracked per calendar.
func (s *CacheService) InvalidateAll(ctx context.Context) error {
	if err := s.Invalidate(ctx, "view:*"); err != nil {
		return err
	}
	return s.Invalidate(ctx, "deps:*")
}
