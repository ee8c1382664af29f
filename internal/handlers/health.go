package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "catalog-service"

// HealthHandler reports liveness and the reachability of backing services
type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	connected func() bool
}

// NewHealthHandler creates the handler. redis and connected may be nil;
// connected reports the NATS connection state.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, connected func() bool) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, connected: connected}
}

// HealthCheck provides a health check endpoint
// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck provides a readiness check endpoint. Only the database is
// required; cache and event bus are reported but optional.
// @Summary Readiness check
// @Description Check if the service is ready to handle requests
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "connected", "cache": "disabled", "events": "disabled"}

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"service":   serviceName,
				"timestamp": time.Now().UTC(),
				"checks":    checks,
			})
			return
		}
	}

	if h.redis != nil {
		checks["cache"] = "connected"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["cache"] = "unreachable"
		}
	}
	if h.connected != nil {
		checks["events"] = "connected"
		if !h.connected() {
			checks["events"] = "disconnected"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
