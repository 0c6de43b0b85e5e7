package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/middleware"
	"github.com/Ignas/schooltool.lyceum/internal/service"
	"github.com/Ignas/schooltool.lyceum/pkg/logger"
	corsmiddleware "github.com/Ignas/schooltool.lyceum/pkg/middleware/cors"
	reqidmiddleware "github.com/Ignas/schooltool.lyceum/pkg/middleware/requestid"
)

// RouterConfig carries what the ops router needs from the configuration.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewOpsRouter wires the ops endpoints with the standard middleware chain.
func NewOpsRouter(cfg RouterConfig, logr *zap.Logger, metrics *service.MetricsService, ops *OpsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	r.GET("/status", ops.Status)
	return r
}
