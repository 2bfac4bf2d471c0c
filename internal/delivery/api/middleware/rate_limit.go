package middleware

import (
	"sync"
	"time"

	"forum/config"
	domainerrors "forum/internal/domain/errors"

	"github.com/golang/groupcache/lru"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimiter throttles an endpoint per client IP. At most maxClients buckets are
// tracked; the least recently seen client is dropped first.
type RateLimiter struct {
	mu      sync.Mutex
	clients *lru.Cache
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewReissueRateLimiter builds the limiter guarding token reissue. A non-positive rate disables it.
func NewReissueRateLimiter(cfg *config.Config) *RateLimiter {
	perMinute, burst := 0, 0
	if cfg.Auth != nil {
		perMinute, burst = cfg.Auth.ReissueRatePerMinute, cfg.Auth.ReissueBurst
	}

	return newRateLimiter(perMinute, burst, maxTrackedClients, time.Now)
}

func newRateLimiter(perMinute, burst, maxClients int, now func() time.Time) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}

	return &RateLimiter{
		clients: lru.New(maxClients),
		limit:   rate.Limit(perMinute) / 60,
		burst:   burst,
		now:     now,
	}
}

// Limit rejects requests over the client's budget with 429.
func (rl *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if rl.limit <= 0 {
			return next(c)
		}
		if !rl.allow(c.RealIP()) {
			c.Response().Header().Set("Retry-After", "60")

			return errors.WithStack(domainerrors.ErrTooManyRequests)
		}

		return next(c)
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	var limiter *rate.Limiter
	if cached, ok := rl.clients.Get(key); ok {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients.Add(key, limiter)
	}

	return limiter.AllowN(now, 1)
}
