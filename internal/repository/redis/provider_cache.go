package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/sentiment"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Cache keys
const (
	MacroKey     = "marketpulse:macro:snapshot"
	SentimentKey = "marketpulse:sentiment:summary"
)

// CachedMacro serves macro snapshots from Redis for TTL before asking the provider again.
// Cache failures fall through to the provider.
type CachedMacro struct {
	inner  macro.Provider
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	log    *logger.Logger
}

var _ macro.Provider = (*CachedMacro)(nil)

// NewCachedMacro wraps inner with a TTL cache
func NewCachedMacro(inner macro.Provider, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedMacro {
	return &CachedMacro{
		inner:  inner,
		client: client,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With("component", "macro_cache"),
	}
}

// Snapshot returns the cached snapshot or fetches and caches a fresh one
func (c *CachedMacro) Snapshot(ctx context.Context) (macro.Snapshot, error) {
	var cached macro.Timed
	err := getJSON(ctx, c.client, MacroKey, &cached)
	if err == nil {
		return cached.Values, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		c.log.Warnw("Macro cache read failed", "error", err)
	}

	snapshot, err := c.inner.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := setJSON(ctx, c.client, MacroKey, macro.Timed{Values: snapshot, CollectedAt: c.now().UTC()}, c.ttl); err != nil {
		c.log.Warnw("Macro cache write failed", "error", err)
	}
	return snapshot, nil
}

// CachedSentiment serves sentiment summaries from Redis for TTL
type CachedSentiment struct {
	inner  sentiment.Provider
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

var _ sentiment.Provider = (*CachedSentiment)(nil)

// NewCachedSentiment wraps inner with a TTL cache
func NewCachedSentiment(inner sentiment.Provider, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedSentiment {
	return &CachedSentiment{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    log.With("component", "sentiment_cache"),
	}
}

// Summary returns the cached summary or fetches and caches a fresh one.
// Degraded (failed) summaries are never cached.
func (c *CachedSentiment) Summary(ctx context.Context) (sentiment.Summary, error) {
	var cached sentiment.Summary
	err := getJSON(ctx, c.client, SentimentKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		c.log.Warnw("Sentiment cache read failed", "error", err)
	}

	summary, err := c.inner.Summary(ctx)
	if err != nil {
		return summary, err
	}

	if err := setJSON(ctx, c.client, SentimentKey, summary, c.ttl); err != nil {
		c.log.Warnw("Sentiment cache write failed", "error", err)
	}
	return summary, nil
}

func getJSON(ctx context.Context, client *redis.Client, key string, dest interface{}) error {
	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return errors.Wrapf(errors.ErrNotFound, "cache miss %s", key)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(err, "failed to decode %s", key)
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return client.Set(ctx, key, data, ttl).Err()
}
