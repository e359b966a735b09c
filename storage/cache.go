package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"motime/domain"
)

const summaryCachePrefix = "ds"

type cachedSummaries struct {
	Version   int                          `json:"version"`
	CachedAt  time.Time                    `json:"cachedAt"`
	Summaries map[string]domain.DaySummary `json:"summaries"`
}

// SummaryCache keeps the latest computed summary map per user in Redis so a
// fresh session can paint the calendar before the first collection push
// arrives. Staleness is bounded by the TTL; live pushes overwrite it.
type SummaryCache struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewSummaryCache creates a summary cache with the given TTL.
func NewSummaryCache(rc *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SummaryCache{redis: rc, ttl: ttl, now: time.Now}
}

// Store replaces the cached summary map for the user. Failures are logged and
// swallowed; the cache is an accelerator, not a source of truth.
func (c *SummaryCache) Store(ctx context.Context, userID string, summaries map[string]domain.DaySummary) {
	if c == nil || c.redis == nil {
		return
	}
	payload := cachedSummaries{
		Version:   1,
		CachedAt:  c.now().UTC(),
		Summaries: summaries,
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("user", userID).Error("failed to marshal summary cache payload")
		return
	}
	if err := c.redis.Set(ctx, summaryCacheKey(userID), data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("user", userID).Error("failed to store summary cache entry")
	}
}

// Load retrieves the cached summary map if present and well formed.
func (c *SummaryCache) Load(ctx context.Context, userID string) (map[string]domain.DaySummary, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, summaryCacheKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).WithField("user", userID).Error("failed to load summary cache entry")
		}
		return nil, false
	}
	var payload cachedSummaries
	if err := sonic.Unmarshal([]byte(raw), &payload); err != nil {
		log.WithError(err).WithField("user", userID).Error("malformed summary cache entry")
		return nil, false
	}
	if payload.Version != 1 || payload.Summaries == nil {
		return nil, false
	}
	return payload.Summaries, true
}

// Evict drops the cached entry, used when a user logs out.
func (c *SummaryCache) Evict(ctx context.Context, userID string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, summaryCacheKey(userID)).Err(); err != nil {
		log.WithError(err).WithField("user", userID).Error("failed to evict summary cache entry")
	}
}

func summaryCacheKey(userID string) string {
	return userID + ":" + summaryCachePrefix
}
