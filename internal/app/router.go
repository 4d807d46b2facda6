package app

import (
	"github.com/gin-gonic/gin"

	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers, metrics *observability.Metrics) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		GenerationHandler: handlerset.Generation,
		AgentHandler:      handlerset.Agent,
		HistoryHandler:    handlerset.History,
		SSEHandler:        handlerset.SSE,
		HealthHandler:     handlerset.Health,
		MetricsHandler:    handlerset.Metrics,
	})
}
