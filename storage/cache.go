package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"boardsync/domain"
)

type progressSource interface {
	FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error)
}

// ProgressCache wraps a progress source with Redis-backed caching. Snapshots
// served from the cache carry the key's remaining TTL so clients can bound
// their own refresh timing.
type ProgressCache struct {
	base  progressSource
	redis *redis.Client
	ttl   time.Duration
}

// NewProgressCache creates a caching wrapper using the provided Redis client
// and TTL.
func NewProgressCache(base progressSource, client *redis.Client, ttl time.Duration) *ProgressCache {
	if base == nil {
		panic("storage.NewProgressCache: base source is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &ProgressCache{base: base, redis: client, ttl: ttl}
}

func (c *ProgressCache) FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error) {
	if snap, ok := c.loadFromCache(ctx, eventID); ok {
		return snap, nil
	}

	snap, err := c.base.FetchProgress(ctx, eventID)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}

	c.store(ctx, eventID, snap)
	snap.TTL = c.ttl
	return snap, nil
}

// Evict drops the cached snapshot for an event.
func (c *ProgressCache) Evict(ctx context.Context, eventID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, progressCacheKey(eventID)).Result()
}

func (c *ProgressCache) loadFromCache(ctx context.Context, eventID string) (domain.ProgressSnapshot, bool) {
	if c.redis == nil {
		return domain.ProgressSnapshot{}, false
	}
	key := progressCacheKey(eventID)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing source without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return domain.ProgressSnapshot{}, false
	}
	var snap domain.ProgressSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.ProgressSnapshot{}, false
	}
	if remaining, err := c.redis.TTL(ctx, key).Result(); err == nil && remaining > 0 {
		snap.TTL = remaining
	} else {
		snap.TTL = c.ttl
	}
	return snap, true
}

func (c *ProgressCache) store(ctx context.Context, eventID string, snap domain.ProgressSnapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	snap.TTL = 0
	data, err := sonic.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, progressCacheKey(eventID), data, c.ttl).Err()
}

func progressCacheKey(eventID string) string {
	return "progress:" + eventID
}
