package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/internal/enginesupport"
	"github.com/webpeel/webpeel/models"
)

// Health returns a handler for GET /v1/health.
//
// Reports browser pool utilisation and degrades status when more than 80%
// of the pool's configured capacity is checked out.
func Health(pool *enginesupport.AdaptivePool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		status := "healthy"

		if pool != nil {
			maxSize, idle, active := pool.Stats()
			stats = models.PoolStats{MaxPages: maxSize, ActivePages: active}
			if maxSize > 0 && active > int(float64(maxSize)*0.8) {
				status = "degraded"
			}
			_ = idle
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
