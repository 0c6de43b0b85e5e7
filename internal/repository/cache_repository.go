package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// DefaultCacheNamespace prefixes every key written by CacheRepository.
const DefaultCacheNamespace = "lyceum"

// CacheRepository stores rendered calendar views in Redis under a namespace.
// A nil client turns every call into a miss or a no-op.
type CacheRepository struct {
	client    *redis.Client
	logger    *zap.Logger
	namespace string
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger, namespace string) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = DefaultCacheNamespace
	}
	return &CacheRepository{client: client, logger: logger, namespace: namespace}
}

func (r *CacheRepository) key(key string) string {
	if strings.HasPrefix(key, r.namespace+":") {
		return key
	}
	return r.namespace + ":" + key
}

// Get retrieves and unmarshals the cached value into dest.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	full := r.key(key)
	raw, err := r.client.Get(ctx, full).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", full, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A payload from an older layout is as good as a miss.
		r.logger.Debug("discarding undecodable cache entry", zap.String("key", full), zap.Error(err))
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set marshals value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	full := r.key(key)
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", full, err)
	}
	if err := r.client.Set(ctx, full, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", full, err)
	}
	return nil
}

// DeleteByPattern removes cached entries matching a glob pattern within the
// namespace.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}
	full := r.key(pattern)
	iter := r.client.Scan(ctx, 0, full, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", full, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete %d keys for %s: %w", len(keys), full, err)
	}
	return nil
}

// Track adds member to the set stored at key and extends the set's TTL.
func (r *CacheRepository) Track(ctx context.Context, key, member string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	full := r.key(key)
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, full, member)
	pipe.Expire(ctx, full, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis track %s: %w", full, err)
	}
	return nil
}

// DeleteTracked removes every entry listed in the set stored at key, and the
// set itself.
func (r *CacheRepository) DeleteTracked(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	full := r.key(key)
	members, err := r.client.SMembers(ctx, full).Result()
	if err != nil {
		return fmt.Errorf("redis members %s: %w", full, err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, r.key(m))
	}
	keys = append(keys, full)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete %d tracked keys for %s: %w", len(members), full, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
