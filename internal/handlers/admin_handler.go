package handlers

import (
	"net/http"

	"scalerrs-portal-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// GetCacheStats handles GET /api/cache/stats.
func (h *Handler) GetCacheStats(c *gin.Context) {
	stats, err := h.svc.CacheStats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to read cache stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":      stats,
		"configured": h.svc.Configured(),
	})
}

// ClearCache handles DELETE /api/cache?prefix=
func (h *Handler) ClearCache(c *gin.Context) {
	prefix := c.Query("prefix")
	removed, err := h.svc.ClearCache(c.Request.Context(), prefix)
	if err != nil {
		h.fail(c, err, "Failed to clear cache")
		return
	}
	h.logger.Info("cache cleared via api", "prefix", prefix, "removed", removed, "user_id", middleware.IdentityFrom(c).UserID)
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed, "prefix": prefix})
}
