package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ignas/schooltool.lyceum/internal/dto"
	"github.com/Ignas/schooltool.lyceum/internal/service"
	"github.com/Ignas/schooltool.lyceum/pkg/response"
)

// Check probes one dependency of the daemon.
type Check func(ctx context.Context) error

// OpsHandler exposes the health, readiness and metrics endpoints of the
// daemon.
type OpsHandler struct {
	metrics *service.MetricsService
	env     string
	checks  map[string]Check
	timeout time.Duration
}

// NewOpsHandler constructs an ops handler. checks are run by Ready.
func NewOpsHandler(metrics *service.MetricsService, env string, checks map[string]Check) *OpsHandler {
	return &OpsHandler{metrics: metrics, env: env, checks: checks, timeout: 2 * time.Second}
}

// Health responds with a generic OK payload for liveness probes.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every dependency check and reports each component.
func (h *OpsHandler) Ready(c *gin.Context) {
	status := dto.ServiceStatus{Status: "ready", Env: h.env, Components: map[string]string{}}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			healthy = false
			status.Components[name] = err.Error()
			continue
		}
		status.Components[name] = "ok"
	}
	if !healthy {
		status.Status = "degraded"
		response.Unavailable(c, status)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Status returns the aggregated metrics snapshot.
func (h *OpsHandler) Status(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}
