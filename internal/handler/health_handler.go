package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teerapat-l/seatgate/internal/dto"
)

// HealthChecker reports the health of a backing service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checkers map[string]HealthChecker
}

// NewHealthHandler creates a new health handler. Nil checkers are skipped.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	filtered := make(map[string]HealthChecker, len(checkers))
	for name, checker := range checkers {
		if checker != nil {
			filtered[name] = checker
		}
	}
	return &HealthHandler{checkers: filtered}
}

// Liveness handles GET /health
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Readiness handles GET /health/ready
// Pings every backing service and reports per-service status.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	services := make(map[string]string, len(h.checkers))
	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "healthy"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, dto.HealthResponse{
		Status:   overall,
		Services: services,
	})
}
