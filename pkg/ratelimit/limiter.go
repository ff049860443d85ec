package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter blocks callers until an operation is allowed
type Limiter interface {
	Wait(ctx context.Context) error
}

// New returns a Redis-backed limiter when redisURL is set and reachable, and an
// in-process limiter otherwise. limit operations are allowed per window.
func New(redisURL string, limit int, window time.Duration, baseKey string) Limiter {
	if redisURL != "" {
		rl, err := NewRedisLimiter(redisURL, limit, window, baseKey)
		if err == nil {
			log.Info().Str("key", baseKey).Int("limit", limit).Dur("window", window).Msg("Using Redis rate limiter")
			return rl
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to local rate limiter")
	}
	return NewLocalLimiter(limit, window)
}

// NewLocalLimiter spreads limit operations evenly over window
func NewLocalLimiter(limit int, window time.Duration) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
}

// RedisLimiter is a fixed window counter shared by every process using the same key
type RedisLimiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	baseKey string
}

// NewRedisLimiter connects to Redis and verifies the connection
func NewRedisLimiter(redisURL string, limit int, window time.Duration, baseKey string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if window <= 0 {
		window = time.Second
	}
	return &RedisLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		baseKey: baseKey,
	}, nil
}

func (r *RedisLimiter) windowKey(now time.Time) string {
	return fmt.Sprintf("%s:%d", r.baseKey, now.UnixNano()/int64(r.window))
}

// Wait blocks until the current window has room
func (r *RedisLimiter) Wait(ctx context.Context) error {
	if r.limit <= 0 {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		key := r.windowKey(now)

		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble must not stop notifications; let the caller through
			log.Error().Err(err).Msg("RateLimiter: Redis error")
			return nil
		}
		if count == 1 {
			r.client.Expire(ctx, key, 2*r.window)
		}
		if count <= int64(r.limit) {
			return nil
		}

		wait := time.Until(now.Truncate(r.window).Add(r.window))
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the Redis client
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
