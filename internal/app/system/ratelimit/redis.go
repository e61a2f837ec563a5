// internal/app/system/ratelimit/redis.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "joinlink:ratelimit:"

// RedisOptions configures the shared limiter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisLimiter is a fixed-window limiter shared by every process pointing at the
// same Redis. Redis errors fail open: availability of the join path wins over
// strict limiting.
type RedisLimiter struct {
	rdb     *goredis.Client
	logger  *zap.Logger
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewRedis connects and pings Redis.
func NewRedis(ctx context.Context, opts RedisOptions, limit int, window time.Duration, logger *zap.Logger) (*RedisLimiter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	logger.Info("redis rate limiter connected", zap.String("addr", opts.Addr))

	return newRedisLimiter(rdb, limit, window, logger), nil
}

func newRedisLimiter(rdb *goredis.Client, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		rdb:     rdb,
		logger:  logger,
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

// Allow increments the key's counter for the current window.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	allowed, err := l.check(ctx, key)
	if err != nil {
		l.logger.Warn("redis rate limit check failed; allowing", zap.Error(err))
		return true
	}
	return allowed
}

func (l *RedisLimiter) check(ctx context.Context, key string) (bool, error) {
	k := redisKeyPrefix + key
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX keeps the window anchored at the first hit.
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}

// Close closes the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}
