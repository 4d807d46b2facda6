package app

import (
	"context"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/redis"
	"github.com/halcyonlabs/agentstudio-backend/internal/generation"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/services"
	"github.com/halcyonlabs/agentstudio-backend/internal/sse"
)

type Services struct {
	Agents       services.AgentService
	History      services.HistoryService
	Orchestrator *generation.Orchestrator
}

func wireServices(log *logger.Logger, reposet Repos, clients Clients, hub *sse.Hub) Services {
	agents := services.NewAgentService(reposet.Agents, log)
	history := services.NewHistoryService(reposet.Records, log)

	publisher := newEventPublisher(hub, clients.Events)
	orchestrator := generation.NewOrchestrator(log, agents, history, clients.OpenAI, clients.Tavily, publisher)

	return Services{
		Agents:       agents,
		History:      history,
		Orchestrator: orchestrator,
	}
}

// eventPublisher routes generation events either through redis (replicas pick
// them up via the forwarder) or straight into the local hub.
type eventPublisher struct {
	hub *sse.Hub
	bus redis.EventBus
}

func newEventPublisher(hub *sse.Hub, bus redis.EventBus) *eventPublisher {
	return &eventPublisher{hub: hub, bus: bus}
}

func (p *eventPublisher) Publish(ctx context.Context, msg sse.Message) error {
	if p.bus != nil {
		return p.bus.Publish(ctx, msg)
	}
	p.hub.Publish(msg)
	return nil
}
