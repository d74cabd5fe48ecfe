package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"rfqgateway/pkg/redis"
)

type HealthHandler struct {
	service string
	rdb     *goredis.Client
	db      *pgxpool.Pool
}

// NewHealthHandler takes optional redis and postgres handles; nil ones are not probed.
func NewHealthHandler(service string, rdb *goredis.Client, db *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{service: service, rdb: rdb, db: db}
}

// Health handles GET /health, /api/health and /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": h.service,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	if h.rdb != nil {
		if err := redis.Ping(ctx, h.rdb); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis_not_ready", "error": err.Error()})
			return
		}
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
