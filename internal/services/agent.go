package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/generation"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/repos"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

// AgentService exposes agent reads and seeds the built-in catalog. It also
// serves as the orchestrator's AgentSource.
type AgentService interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error)
	GetByKey(ctx context.Context, key string) (*types.Agent, error)
	List(ctx context.Context) ([]*types.Agent, error)
	EnsureDefaults(ctx context.Context) error
}

type agentService struct {
	agents repos.AgentRepo
	log    *logger.Logger
}

func NewAgentService(agents repos.AgentRepo, baseLog *logger.Logger) AgentService {
	return &agentService{
		agents: agents,
		log:    baseLog.With("service", "AgentService"),
	}
}

func (s *agentService) GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error) {
	return s.agents.GetByID(ctx, nil, id)
}

func (s *agentService) GetByKey(ctx context.Context, key string) (*types.Agent, error) {
	return s.agents.GetByKey(ctx, nil, key)
}

func (s *agentService) List(ctx context.Context) ([]*types.Agent, error) {
	return s.agents.List(ctx, nil)
}

// EnsureDefaults upserts the built-in agents at startup so a fresh database
// can serve generations immediately.
func (s *agentService) EnsureDefaults(ctx context.Context) error {
	defaults := []*types.Agent{
		{
			Key:          "general-assistant",
			Label:        "General Assistant",
			SystemPrompt: "You are a helpful, precise assistant. Answer the user's request directly.",
			OutputFormat: "text",
			SearchMode:   generation.SearchModeNone,
			AllowImages:  true,
		},
		{
			Key:          "research-assistant",
			Label:        "Research Assistant",
			SystemPrompt: "You are a research assistant. Ground your answers in the provided web search results and cite sources by URL.",
			OutputFormat: "markdown",
			SearchMode:   generation.SearchModeBasic,
		},
		{
			Key:          types.ImageAgentKey,
			Label:        "Image Generator",
			SystemPrompt: "You write a short caption describing the generated image.",
			OutputFormat: "text",
			SearchMode:   generation.SearchModeNone,
			AllowImages:  true,
		},
	}
	if _, err := s.agents.Upsert(ctx, nil, defaults); err != nil {
		s.log.Error("seeding default agents", "error", err)
		return err
	}
	return nil
}

var _ generation.AgentSource = (*agentService)(nil)
