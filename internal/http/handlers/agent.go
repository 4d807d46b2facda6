package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/http/response"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/services"
)

type AgentHandler struct {
	log    *logger.Logger
	agents services.AgentService
}

func NewAgentHandler(log *logger.Logger, agents services.AgentService) *AgentHandler {
	return &AgentHandler{log: log.With("handler", "AgentHandler"), agents: agents}
}

func (h *AgentHandler) ListAgents(c *gin.Context) {
	agents, err := h.agents.List(c.Request.Context())
	if err != nil {
		h.log.Error("listing agents", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "agents_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"agents": agents})
}

func (h *AgentHandler) GetAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_agent_id", fmt.Errorf("invalid agent id"))
		return
	}
	agent, err := h.agents.GetAgent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.RespondError(c, http.StatusNotFound, "agent_not_found", fmt.Errorf("agent %s not found", id))
			return
		}
		h.log.Error("fetching agent", "agent_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "agent_fetch_failed", err)
		return
	}
	response.RespondOK(c, agent)
}
