package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// CacheRepository keeps JSON documents in Redis and indexes them in tag
// sets. Without a client every read misses and every write is dropped.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository wraps client, which may be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get decodes the document at key into dest.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return appErrors.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// a document we cannot read is as good as absent
		r.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = r.client.Del(ctx, key).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value under key and adds key to every tag set in one
// transaction. Each write renews the tag expiry to ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tag, key)
			pipe.Expire(ctx, tag, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Stale tag members are harmless and go with the tag.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Evict removes every key indexed under tag, then the tag set. It returns
// how many cached documents were dropped.
func (r *CacheRepository) Evict(ctx context.Context, tag string) (int, error) {
	if r.client == nil {
		return 0, nil
	}
	members, err := r.client.SMembers(ctx, tag).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers %s: %w", tag, err)
	}

	var dropped *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(members) > 0 {
			dropped = pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, tag)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis evict %s: %w", tag, err)
	}
	if dropped == nil {
		return 0, nil
	}
	return int(dropped.Val()), nil
}

// Ping reports whether Redis answers. A repository without client is healthy.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}
