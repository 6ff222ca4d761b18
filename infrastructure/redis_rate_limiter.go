package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// NewRedisClient creates a Redis client and verifies connectivity
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		PoolSize:    20,
		PoolTimeout: 4 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return rdb, nil
}

// RedisRateLimiter is a fixed-window counter per key
type RedisRateLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisRateLimiter allows limit requests per key in every window
func NewRedisRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "surveydraw:ratelimit:",
	}
}

// Allow counts one request for key and reports whether it is within the limit
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().UTC().Truncate(l.window).Unix()
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val() <= l.limit, nil
}
