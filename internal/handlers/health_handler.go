package handlers

import (
	"net/http"

	"hako-backend/internal/db"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler handles GET /api/health.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "hako-backend",
		"api":     "healthy",
	})
}

// ReadinessHandler handles GET /api/ready: the service is ready once the
// database answers a ping.
func ReadinessHandler(c *gin.Context) {
	if db.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "not initialized"})
		return
	}
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "ok"})
}
