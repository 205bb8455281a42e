package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civic_issues/pkg/utils"
)

// rateLimitKeyPrefix namespaces the per client counters in Redis.
const rateLimitKeyPrefix = "civic_issues:issue_create"

// Counter is the subset of the Redis client used by the rate limiter.
// *redis.Client satisfies it.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// noExpiry is what TTL reports for a key that exists without an expiry.
const noExpiry = time.Duration(-1)

// IssueRateLimiter allows each client IP at most limit requests per window.
// The window starts with the first request of a client. A counter must never
// outlive its window: when the expiry cannot be set the counter is removed,
// and a counter found without expiry gets one again.
func IssueRateLimiter(counter Counter, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rateLimitKeyPrefix + ":" + c.ClientIP()

		count, err := counter.Incr(ctx, key).Result()
		if err != nil {
			log.Error("Rate limiter increment failed", zap.String("key", key), zap.Error(err))
			utils.RespondError(c, http.StatusInternalServerError, "redis error incrementing count", nil)
			return
		}
		if count == 1 {
			if err := counter.Expire(ctx, key, window).Err(); err != nil {
				log.Error("Rate limiter expiry failed", zap.String("key", key), zap.Error(err))
				if delErr := counter.Del(ctx, key).Err(); delErr != nil {
					log.Error("Rate limiter cleanup failed", zap.String("key", key), zap.Error(delErr))
				}
				utils.RespondError(c, http.StatusInternalServerError, "redis error setting TTL", nil)
				return
			}
		}

		if count > int64(limit) {
			utils.RespondTooManyRequests(c, retryAfter(ctx, counter, key, window, log).Seconds())
			log.Warn("Issue creation rate limited", zap.String("client_ip", c.ClientIP()), zap.Int64("count", count))
			return
		}

		c.Next()
	}
}

// retryAfter reports how long the client has to wait, restoring a missing
// expiry on the way. It falls back to the full window when Redis cannot tell.
func retryAfter(ctx context.Context, counter Counter, key string, window time.Duration, log *zap.Logger) time.Duration {
	ttl, err := counter.TTL(ctx, key).Result()
	if err != nil {
		log.Error("Rate limiter TTL lookup failed", zap.String("key", key), zap.Error(err))
		return window
	}
	if ttl == noExpiry {
		log.Warn("Rate limiter counter had no expiry, restoring it", zap.String("key", key))
		if err := counter.Expire(ctx, key, window).Err(); err != nil {
			log.Error("Rate limiter expiry failed", zap.String("key", key), zap.Error(err))
		}
		return window
	}
	if ttl < 0 {
		return window
	}
	return ttl
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
