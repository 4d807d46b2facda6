package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/halcyonlabs/agentstudio-backend/internal/http/handlers"
	"github.com/halcyonlabs/agentstudio-backend/internal/http/middleware"
	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	Metrics           *observability.Metrics
	GenerationHandler *handlers.GenerationHandler
	AgentHandler      *handlers.AgentHandler
	HistoryHandler    *handlers.HistoryHandler
	SSEHandler        *handlers.SSEHandler
	HealthHandler     *handlers.HealthHandler
	MetricsHandler    *handlers.MetricsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware("agentstudio-backend"))
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.Metrics(cfg.Metrics))
	if cfg.Log != nil {
		router.Use(middleware.RequestLog(cfg.Log))
	}

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	router.GET("/metrics", cfg.MetricsHandler.Metrics)
	router.GET("/sse/stream", cfg.SSEHandler.Stream)

	api := router.Group("/api")
	{
		api.POST("/generate", cfg.GenerationHandler.Generate)
		api.POST("/generate/annotations", cfg.GenerationHandler.Regenerate)
		api.POST("/generate/stop", cfg.GenerationHandler.Stop)

		api.GET("/agents", cfg.AgentHandler.ListAgents)
		api.GET("/agents/:id", cfg.AgentHandler.GetAgent)

		api.GET("/history", cfg.HistoryHandler.ListHistory)
		api.GET("/history/:id", cfg.HistoryHandler.GetHistory)
	}

	return router
}
