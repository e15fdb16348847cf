package ingest

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/config"
)

// tenantLimiter hands out one token-bucket limiter per tenant, so one
// noisy tenant throttles only itself (spec §7, RateLimit kind).
type tenantLimiter struct {
	mu       sync.Mutex
	cfg      config.IngestConfig
	limiters map[string]*rate.Limiter
}

func newTenantLimiter(cfg config.IngestConfig) *tenantLimiter {
	return &tenantLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (tl *tenantLimiter) forTenant(tenantID string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	l, ok := tl.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(tl.cfg.RateLimitPerSecond), tl.cfg.RateLimitBurst)
		tl.limiters[tenantID] = l
	}
	return l
}

// rateLimitMiddleware rejects requests past the per-tenant ingress limit
// with a 429 carrying a Retry-After hint. Must run after RequireAPIKey so
// the tenant is already bound to the request.
func rateLimitMiddleware(tl *tenantLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tctx, ok := tenantFromGin(c)
		if !ok {
			writeError(c, apperrors.Authentication("missing bearer token"))
			c.Abort()
			return
		}

		limiter := tl.forTenant(tctx.ID())
		if !limiter.Allow() {
			retryAfter := 1
			c.Header("Retry-After", "1")
			writeError(c, apperrors.RateLimit(retryAfter, "tenant %s exceeded ingress rate limit", tctx.ID()))
			c.Abort()
			return
		}
		c.Next()
	}
}
