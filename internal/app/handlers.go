package app

import (
	"github.com/halcyonlabs/agentstudio-backend/internal/http/handlers"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/sse"
)

type Handlers struct {
	Generation *handlers.GenerationHandler
	Agent      *handlers.AgentHandler
	History    *handlers.HistoryHandler
	SSE        *handlers.SSEHandler
	Health     *handlers.HealthHandler
	Metrics    *handlers.MetricsHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, hub *sse.Hub) Handlers {
	return Handlers{
		Generation: handlers.NewGenerationHandler(log, serviceset.Orchestrator),
		Agent:      handlers.NewAgentHandler(log, serviceset.Agents),
		History:    handlers.NewHistoryHandler(log, serviceset.History),
		SSE:        handlers.NewSSEHandler(log, hub),
		Health:     handlers.NewHealthHandler(),
		Metrics:    handlers.NewMetricsHandler(),
	}
}
