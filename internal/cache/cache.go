// Package cache provides the Redis-backed aggregate summary cache.
//
// The cache is a pure performance optimization: every operation is
// best-effort with a short timeout, and failures are logged, never
// propagated into the request path. Results are identical whether the
// cache is present, degraded, or absent.
//
// Redis Key Structure:
//
//	event_summary:{app_id|all}:{event}:{start|0}:{end|0} - cached summary JSON (60s TTL)
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitepulse/sitepulse/internal/logging"
	"github.com/sitepulse/sitepulse/internal/models"
)

// opTimeout bounds each Redis call well below the request budget.
const opTimeout = 250 * time.Millisecond

// DefaultSummaryTTL is the fixed expiry for cached summaries.
const DefaultSummaryTTL = 60 * time.Second

// SummaryCache caches aggregate summaries with explicit invalidation on write.
type SummaryCache interface {
	// GetSummary returns the cached summary for the filter, or ok=false on
	// miss, expiry, or cache failure.
	GetSummary(ctx context.Context, filter models.EventFilter) (*models.EventSummary, bool)

	// SetSummary stores a computed summary. Best-effort.
	SetSummary(ctx context.Context, filter models.EventFilter, summary *models.EventSummary)

	// InvalidateEvent drops every cached summary that could include a new
	// event for (appID, eventType), including the all-apps bucket. Best-effort.
	InvalidateEvent(ctx context.Context, appID, eventType string)

	Close() error
}

// SummaryKey builds the cache key from the exact tuple of filter parameters.
// Empty app and time bounds use the "all" and "0" sentinels.
func SummaryKey(filter models.EventFilter) string {
	app := filter.AppID
	if app == "" {
		app = "all"
	}
	start, end := "0", "0"
	if !filter.Start.IsZero() {
		start = filter.Start.UTC().Format(time.RFC3339)
	}
	if !filter.End.IsZero() {
		end = filter.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("event_summary:%s:%s:%s:%s", app, filter.EventType, start, end)
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

// NewRedisSummaryCache connects to Redis and returns a summary cache.
func NewRedisSummaryCache(redisURL string, ttl time.Duration) (SummaryCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisSummaryCache{client: client, ttl: ttl, log: logging.Default()}, nil
}

// NewRedisSummaryCacheFromClient wraps an existing Redis connection.
func NewRedisSummaryCacheFromClient(client *redis.Client, ttl time.Duration) SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &redisSummaryCache{client: client, ttl: ttl, log: logging.Default()}
}

func (c *redisSummaryCache) GetSummary(ctx context.Context, filter models.EventFilter) (*models.EventSummary, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := SummaryKey(filter)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "summary cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}

	var summary models.EventSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		c.log.WarnContext(ctx, "summary cache entry corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return &summary, true
}

func (c *redisSummaryCache) SetSummary(ctx context.Context, filter models.EventFilter, summary *models.EventSummary) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := SummaryKey(filter)
	payload, err := json.Marshal(summary)
	if err != nil {
		c.log.WarnContext(ctx, "summary cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "summary cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (c *redisSummaryCache) InvalidateEvent(ctx context.Context, appID, eventType string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// A new event can appear in the per-app summaries and in the
	// all-apps bucket, under any time window.
	patterns := []string{
		fmt.Sprintf("event_summary:%s:%s:*", appID, eventType),
		fmt.Sprintf("event_summary:all:%s:*", eventType),
	}

	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				c.log.WarnContext(ctx, "summary cache invalidation failed",
					slog.String("key", iter.Val()), slog.String("error", err.Error()))
			}
		}
		if err := iter.Err(); err != nil {
			c.log.WarnContext(ctx, "summary cache scan failed",
				slog.String("pattern", pattern), slog.String("error", err.Error()))
		}
	}
}

func (c *redisSummaryCache) Close() error {
	return c.client.Close()
}

// NoOpSummaryCache disables caching (for tests or when Redis is unavailable).
type NoOpSummaryCache struct{}

func (NoOpSummaryCache) GetSummary(ctx context.Context, filter models.EventFilter) (*models.EventSummary, bool) {
	return nil, false
}

func (NoOpSummaryCache) SetSummary(ctx context.Context, filter models.EventFilter, summary *models.EventSummary) {
}

func (NoOpSummaryCache) InvalidateEvent(ctx context.Context, appID, eventType string) {}

func (NoOpSummaryCache) Close() error { return nil }
