package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	RPS            int           // 0 disables the limiter
	KeyPrefix      string        // e.g. "rl:ip:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a simple fixed-window per-client-IP RPS limit.
// Redis errors let the request through.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:ip:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if cfg.RPS <= 0 || cfg.Redis == nil {
			// no limit configured or redis missing (dev): allow
			return next
		}

		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				return next(c)
			}

			// fixed-window key: rl:ip:{ip}:{window start}
			now := time.Now()
			window := now.UnixNano() / int64(cfg.Window)
			key := cfg.KeyPrefix + ip + ":" + strconv.FormatInt(window, 10)

			// INCR and set expiry 2*window (safety)
			ctx := c.Request().Context()
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				return next(c)
			}

			if cnt.Val() > int64(cfg.RPS) {
				if cfg.RetryAfterHint {
					// seconds until next window, at least one
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					secs := max(int(remain.Round(time.Second)/time.Second), 1)
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{"success": false, "error": "rate limited"})
			}
			return next(c)
		}
	}
}
