package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitStore counts attempts inside a sliding window. Take records
// the attempt and returns how many fall inside the window ending at now.
type RateLimitStore interface {
	Take(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// RateLimitRule configures a sliding-window limit scoped per client IP.
type RateLimitRule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimiter throttles sensitive endpoints, primarily the login route.
// A store failure admits the request: the account lockout policy is the
// backstop, so the limiter must not turn a Redis outage into a login
// outage.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock injects a custom clock for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// RateLimit returns a gin middleware enforcing the rule.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.store == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		now := rl.now()
		count, err := rl.store.Take(c.Request.Context(), rule.Name+":"+ip, rule.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit check failed",
				zap.String("rule", rule.Name),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := rule.Limit - count
		if remaining < 0 {
			remaining = 0
		}

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rule.Limit {
			retryAfter := int(math.Ceil(rule.Window.Seconds()))
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				newErrorResponse(c, "too many attempts, try again later"))
			return
		}

		c.Next()
	}
}
