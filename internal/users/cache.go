package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RankCache stores leaderboard snapshots.
type RankCache interface {
	// Get returns the cached top n, if present.
	Get(ctx context.Context, n int) ([]Entry, bool)
	Set(ctx context.Context, n int, entries []Entry) error
	// Invalidate drops every cached snapshot.
	Invalidate(ctx context.Context) error
}

// NoopCache caches nothing.
type NoopCache struct{}

func (NoopCache) Get(context.Context, int) ([]Entry, bool) { return nil, false }
func (NoopCache) Set(context.Context, int, []Entry) error  { return nil }
func (NoopCache) Invalidate(context.Context) error         { return nil }

const (
	leaderboardHash = "anamnesis:leaderboard"
	defaultCacheTTL = 10 * time.Minute
)

// RedisRankCache keeps snapshots in one Redis hash, one field per n, so a
// single DEL invalidates them all.
type RedisRankCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRankCache connects using a redis:// URL. ttl <= 0 uses the
// default of ten minutes.
func NewRedisRankCache(ctx context.Context, url string, ttl time.Duration) (*RedisRankCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisRankCache{client: client, ttl: ttl}, nil
}

func (c *RedisRankCache) Get(ctx context.Context, n int) ([]Entry, bool) {
	raw, err := c.client.HGet(ctx, leaderboardHash, fmt.Sprint(n)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *RedisRankCache) Set(ctx context.Context, n int, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, leaderboardHash, fmt.Sprint(n), raw)
	pipe.Expire(ctx, leaderboardHash, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache leaderboard: %w", err)
	}
	return nil
}

func (c *RedisRankCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, leaderboardHash).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate leaderboard: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisRankCache) Close() error {
	return c.client.Close()
}
