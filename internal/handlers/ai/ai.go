package handlers_ai

import (
	"blogcms/internal/clmiddleware"
	handlers_analytics "blogcms/internal/handlers/analytics"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Permissions exigées par les routes /api/ai
const (
	PermissionRead           = "ai:read"
	PermissionAnalyticsRead  = "analytics:read"
	PermissionAnalyticsWrite = "analytics:write"
)

// Register installe les routes d'intégration, chacune protégée par sa permission
func Register(rg *gin.RouterGroup, keys clmiddleware.KeyAuthenticator, analytics *handlers_analytics.AnalyticsHandler) {
	rg.GET("/ping", clmiddleware.APIKeyRequired(keys, PermissionRead), Ping)
	rg.GET("/analytics/summary", clmiddleware.APIKeyRequired(keys, PermissionAnalyticsRead), analytics.GetDetailed)
	rg.POST("/track", clmiddleware.APIKeyRequired(keys, PermissionAnalyticsWrite), analytics.TrackVisit)
}

// Ping permet à une intégration de vérifier sa clé
func Ping(c *gin.Context) {
	key := clmiddleware.GetAPIKey(c)
	if key == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "clé API requise"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        key.Name,
		"permissions": key.Permissions,
		"usageCount":  key.UsageCount,
		"quota":       key.DailyQuota(),
		"expiresAt":   key.ExpiresAt,
		"time":        time.Now().UTC(),
	})
}
