package ingest

import (
	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apikey"
	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func tenantFromGin(c *gin.Context) (tenant.Context, bool) {
	return apikey.TenantFromContext(c)
}

func writeError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	c.JSON(kind.HTTPStatus(), gin.H{"error": err.Error()})
}
