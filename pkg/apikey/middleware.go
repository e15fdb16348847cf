package apikey

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// tenantContextKey is the gin context key downstream handlers read the
// bound tenant.Context from.
const tenantContextKey = "agentlens.tenant"

// RequireAPIKey extracts a bearer key from the Authorization header,
// verifies it, and binds the resolved tenant onto the request context
// so handlers never see a raw key or tenant id directly.
func RequireAPIKey(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeAuthError(c, apperrors.Authentication("missing bearer token"))
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
		if raw == "" {
			writeAuthError(c, apperrors.Authentication("missing bearer token"))
			return
		}

		key, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			writeAuthError(c, err)
			return
		}

		tctx := tenant.WithTenant(c.Request.Context(), key.TenantID)
		c.Request = c.Request.WithContext(tctx)
		c.Set(tenantContextKey, tctx)
		c.Set("agentlens.apikey", key)
		c.Next()
	}
}

// RequireScope rejects the request unless the authenticated key carries
// scope (or the wildcard "*"). Must run after RequireAPIKey.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get("agentlens.apikey")
		if !ok {
			writeAuthError(c, apperrors.Authentication("missing bearer token"))
			return
		}
		key := raw.(Key)
		if !key.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope", "required_scope": scope})
			return
		}
		c.Next()
	}
}

// TenantFromContext retrieves the tenant.Context bound by RequireAPIKey.
func TenantFromContext(c *gin.Context) (tenant.Context, bool) {
	raw, ok := c.Get(tenantContextKey)
	if !ok {
		return tenant.Context{}, false
	}
	tctx, ok := raw.(tenant.Context)
	return tctx, ok
}

func writeAuthError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{"error": err.Error()})
}
