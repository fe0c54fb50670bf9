package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veille-rag-api/internal/infrastructure/persistence/postgres"
	"veille-rag-api/internal/infrastructure/persistence/redis"
	"veille-rag-api/internal/infrastructure/vectorindex"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg    *postgres.Client
	redis *redis.Client
	index vectorindex.Index
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, index vectorindex.Index) *HealthHandler {
	return &HealthHandler{
		pg:    pg,
		redis: redisClient,
		index: index,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string `json:"status"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status    string                     `json:"status"`
	IndexSize int                        `json:"index_size"`
	Checks    map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Live 存活检查接口
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive"})
}

// Ready 就绪检查接口
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"postgres": {Status: "unknown"},
		"redis":    {Status: "unknown"},
	}

	ready := true
	ready = h.check(ctx, checks["postgres"], h.pgCheck) && ready
	ready = h.check(ctx, checks["redis"], h.redisCheck) && ready

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	indexSize := 0
	if h.index != nil {
		indexSize = h.index.Len()
	}

	c.JSON(httpStatus, readinessResponse{
		Status:    status,
		IndexSize: indexSize,
		Checks:    checks,
	})
}

func (h *HealthHandler) check(ctx context.Context, result *readinessCheck, fn func(context.Context) error) bool {
	start := time.Now()
	err := fn(ctx)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "down"
		result.Error = err.Error()
		return false
	}
	result.Status = "up"
	return true
}

func (h *HealthHandler) pgCheck(ctx context.Context) error {
	if h.pg == nil {
		return nil
	}
	return h.pg.HealthCheck(ctx)
}

func (h *HealthHandler) redisCheck(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}
	return h.redis.HealthCheck(ctx)
}
