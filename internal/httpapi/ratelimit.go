package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"study-planner/internal/logger"
	"study-planner/internal/metrics"
)

// RateLimiter is a fixed-window limiter on Redis INCR/EXPIRE. Without a
// reachable Redis it lets every request through.
type RateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRateLimiter connects to addr. An empty addr or a failed ping leaves the
// limiter disabled.
func NewRateLimiter(addr, password string, db, maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{max: maxRequests, window: window}
	if addr == "" || maxRequests <= 0 || window <= 0 {
		return rl
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, rate limiting disabled")
		_ = client.Close()
		return rl
	}
	rl.client = client
	return rl
}

// Enabled reports whether requests are actually being counted.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.client != nil
}

func (rl *RateLimiter) Close() error {
	if !rl.Enabled() {
		return nil
	}
	return rl.client.Close()
}

// Middleware counts requests per client IP.
// key format: rl:<window_seconds>:<ip>
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Enabled() {
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(rl.window.Seconds()), 10) + ":" + c.ClientIP()
		ctx := c.Request.Context()

		val, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			rl.client.Expire(ctx, key, rl.window)
		}

		if val > int64(rl.max) {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
