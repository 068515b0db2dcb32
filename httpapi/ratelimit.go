package httpapi

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the per-tenant rate limiter.
type RateLimiterConfig struct {
	Rate            rate.Limit    // requests per second per tenant
	Burst           int           // burst size per tenant
	CleanupInterval time.Duration // how often idle tenants are evicted
}

// DefaultRateLimiterConfig returns 20 req/s per tenant with a burst of 40.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            20,
		Burst:           40,
		CleanupInterval: 5 * time.Minute,
	}
}

type tenantLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per tenant.
type RateLimiter struct {
	config   RateLimiterConfig
	metrics  *Metrics
	logger   *slog.Logger
	mu       sync.Mutex
	limiters map[string]*tenantLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts evicting idle tenants in
// the background. Call Stop to end the cleanup goroutine.
func NewRateLimiter(config RateLimiterConfig, metrics *Metrics, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}

	rl := &RateLimiter{
		config:   config,
		metrics:  metrics,
		logger:   logger,
		limiters: make(map[string]*tenantLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware limits requests by the tenantId route parameter. Requests
// without a tenant pass through. A nil RateLimiter disables limiting.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := tenantID(r)
			if tenant == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.limiter(tenant).Allow() {
				rl.metrics.RecordRateLimited()
				rl.logger.WarnContext(r.Context(), "rate limit exceeded", slog.String("tenant_id", tenant))

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rl.config.Rate)))
				writeJSON(w, http.StatusTooManyRequests, envelope{Message: "Too many requests"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TenantCount returns the number of tenants currently tracked.
func (rl *RateLimiter) TenantCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(tenant string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tl, ok := rl.limiters[tenant]
	if !ok {
		tl = &tenantLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[tenant] = tl
	}

	tl.lastAccess = time.Now()

	return tl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup evicts tenants idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for tenant, tl := range rl.limiters {
		if now.Sub(tl.lastAccess) > ttl {
			delete(rl.limiters, tenant)
		}
	}
}

func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 1
	}

	return max(int(math.Ceil(1.0/float64(r))), 1)
}
