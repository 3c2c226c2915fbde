package chart

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EnrichCache keeps metadata-API answers across runs so quota is spent
// only on videos never seen before. Two tiers: L1 in-memory (covers one
// run) and optional L2 Redis (survives restarts, which is what a cron
// batch actually needs). Durations are immutable; view counts go stale
// after viewTTL and are re-fetched.
type EnrichCache struct {
	l1      sync.Map // video id → enrichEntry
	rdb     *redis.Client
	viewTTL time.Duration
}

type enrichEntry struct {
	DurationSec int       `json:"duration_sec"`
	ViewCount   int       `json:"view_count"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// redisRetention bounds L2 growth; well past the 30-day window.
const redisRetention = 45 * 24 * time.Hour

// NewEnrichCache sets up the cache. redisURL can be empty to run L1-only;
// an unreachable Redis degrades to L1-only with a warning.
func NewEnrichCache(redisURL string, viewTTL time.Duration) *EnrichCache {
	c := &EnrichCache{viewTTL: viewTTL}
	if redisURL == "" {
		return c
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("enrich cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return c
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("enrich cache: redis unreachable, L2 disabled", slog.Any("error", err))
		return c
	}
	c.rdb = rdb
	slog.Info("enrich cache: L2 redis connected", slog.String("addr", opts.Addr))
	return c
}

func cacheKey(videoID string) string { return "chart:v:" + videoID }

// Lookup returns cached metadata for a video. Duration is always valid
// on a hit; a stale entry reports its view count as Unknown so the
// caller can decide whether the video is worth a fresh batch slot.
func (c *EnrichCache) Lookup(ctx context.Context, videoID string) (VideoMeta, bool) {
	if e, ok := c.get(ctx, videoID); ok {
		IncrCacheHits()
		meta := VideoMeta{DurationSec: e.DurationSec, ViewCount: e.ViewCount}
		if time.Since(e.FetchedAt) > c.viewTTL {
			meta.ViewCount = Unknown
		}
		return meta, true
	}
	IncrCacheMisses()
	return VideoMeta{}, false
}

// Store records a fetched answer in both tiers.
func (c *EnrichCache) Store(ctx context.Context, videoID string, meta VideoMeta) {
	e := enrichEntry{DurationSec: meta.DurationSec, ViewCount: meta.ViewCount, FetchedAt: time.Now().UTC()}
	c.l1.Store(videoID, e)
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(videoID), data, redisRetention).Err(); err != nil {
		slog.Debug("enrich cache: redis set failed", slog.Any("error", err))
	}
}

func (c *EnrichCache) get(ctx context.Context, videoID string) (enrichEntry, bool) {
	if v, ok := c.l1.Load(videoID); ok {
		return v.(enrichEntry), true
	}
	if c.rdb == nil {
		return enrichEntry{}, false
	}
	data, err := c.rdb.Get(ctx, cacheKey(videoID)).Bytes()
	if err != nil {
		return enrichEntry{}, false
	}
	var e enrichEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return enrichEntry{}, false
	}
	c.l1.Store(videoID, e) // promote to L1
	return e, true
}
