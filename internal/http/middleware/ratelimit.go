package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the Redis-based per-account RPS limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	DefaultRPS     int           // requests per window
	KeyPrefix      string        // e.g. "rl:acct:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a fixed-window request limit per account.
// Expects the account in echo.Context (set by IdentityMiddleware); requests
// without one pass through, as do requests when redis is not configured.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:acct:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acct, ok := AccountFromCtx(c)
			if !ok || acct.ID <= 0 {
				return next(c)
			}
			if cfg.DefaultRPS <= 0 || cfg.Redis == nil {
				return next(c)
			}

			// fixed-window key: rl:acct:{id}:{unix_sec}
			now := time.Now()
			key := cfg.KeyPrefix + strconv.FormatInt(acct.ID, 10) + ":" + strconv.FormatInt(now.Unix(), 10)

			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(c.Request().Context(), key)
			pipe.Expire(c.Request().Context(), key, cfg.Window*2)
			if _, err := pipe.Exec(c.Request().Context()); err != nil {
				// redis down: allow rather than block billable traffic
				return next(c)
			}

			if cnt.Val() > int64(cfg.DefaultRPS) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					if remain > 0 {
						c.Response().Header().Set("Retry-After", strconv.Itoa(int(remain.Round(time.Second)/time.Second)))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}
