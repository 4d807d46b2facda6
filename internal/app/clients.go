package app

import (
	"fmt"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/redis"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

type Clients struct {
	OpenAI openai.Client
	Tavily tavily.Client
	Events redis.EventBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Search is optional: without a key the search stage reports a
	// precondition failure and generations continue un-augmented.
	var search tavily.Client
	if sc, err := tavily.NewClient(log); err != nil {
		log.Warn("tavily client disabled", "error", err)
	} else {
		search = sc
	}

	var events redis.EventBus
	if cfg.RedisEnabled {
		bus, err := redis.NewEventBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		events = bus
	}

	return Clients{OpenAI: ai, Tavily: search, Events: events}, nil
}
