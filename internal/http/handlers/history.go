package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/http/response"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/services"
)

type HistoryHandler struct {
	log     *logger.Logger
	history services.HistoryService
}

func NewHistoryHandler(log *logger.Logger, history services.HistoryService) *HistoryHandler {
	return &HistoryHandler{log: log.With("handler", "HistoryHandler"), history: history}
}

func (h *HistoryHandler) ListHistory(c *gin.Context) {
	var agentID *uuid.UUID
	if raw := c.Query("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_agent_id", fmt.Errorf("invalid agent id"))
			return
		}
		agentID = &id
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("invalid limit"))
			return
		}
		limit = parsed
	}

	records, err := h.history.List(c.Request.Context(), agentID, limit)
	if err != nil {
		h.log.Error("listing history", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "history_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"records": records})
}

func (h *HistoryHandler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_record_id", fmt.Errorf("invalid record id"))
		return
	}
	record, err := h.history.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.RespondError(c, http.StatusNotFound, "record_not_found", fmt.Errorf("record %s not found", id))
			return
		}
		h.log.Error("fetching history record", "record_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "history_fetch_failed", err)
		return
	}
	response.RespondOK(c, record)
}
