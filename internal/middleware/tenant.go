package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TenantMiddleware resolves the tenant of a request
// SECURITY: No default tenant fallback - requests without tenant context are rejected
// NOTE: tenant_id set earlier by IstioAuth or AuthMiddleware wins over headers
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")
		if tenantID == "" {
			tenantID = c.GetHeader("X-Tenant-ID")
		}

		// SECURITY: No default fallback - fail closed
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TENANT_REQUIRED",
					"message": "Tenant ID is required. Include the X-Tenant-ID header.",
				},
			})
			return
		}

		c.Set("tenant_id", tenantID)
		if c.GetString("user_id") == "" {
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				c.Set("user_id", userID)
			}
		}
		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from gin context
func GetTenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}
