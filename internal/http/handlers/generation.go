package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/compose"
	"github.com/halcyonlabs/agentstudio-backend/internal/generation"
	"github.com/halcyonlabs/agentstudio-backend/internal/http/response"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

type GenerationHandler struct {
	log          *logger.Logger
	orchestrator *generation.Orchestrator
}

func NewGenerationHandler(log *logger.Logger, orchestrator *generation.Orchestrator) *GenerationHandler {
	return &GenerationHandler{
		log:          log.With("handler", "GenerationHandler"),
		orchestrator: orchestrator,
	}
}

// fieldDTO is the wire form of a compose field spec.
type fieldDTO struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Section string `json:"section"`
	Order   int    `json:"order"`
	Options []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"options,omitempty"`
}

type generateRequest struct {
	AgentID   uuid.UUID `json:"agent_id"`
	SessionID uuid.UUID `json:"session_id"`

	// Either a pre-composed prompt or the form state to compose from.
	Prompt   string         `json:"prompt"`
	Fields   []fieldDTO     `json:"fields,omitempty"`
	Values   map[string]any `json:"values,omitempty"`
	Language string         `json:"language,omitempty"`

	SearchMode string `json:"search_mode,omitempty"`
	ImageType  string `json:"image_type,omitempty"`
	Summarize  bool   `json:"summarize,omitempty"`
}

type regenerateRequest struct {
	generateRequest
	PriorRecordID uuid.UUID               `json:"prior_record_id"`
	Annotations   []generation.Annotation `json:"annotations"`
}

type stopRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

// generationData is the success payload of the generate envelope.
type generationData struct {
	Response      string           `json:"response"`
	Format        string           `json:"format,omitempty"`
	Model         string           `json:"model,omitempty"`
	Usage         any              `json:"usage,omitempty"`
	TimingMs      int64            `json:"timing_ms"`
	Warnings      []string         `json:"warnings,omitempty"`
	SearchResults any              `json:"search_results,omitempty"`
	ImageArtifact string           `json:"image_artifact,omitempty"`
	State         generation.State `json:"state"`
}

type generationEnvelope struct {
	Success bool            `json:"success"`
	Data    *generationData `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (h *GenerationHandler) Generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req, err := h.toGenerationRequest(body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	outcome, err := h.orchestrator.Generate(c.Request.Context(), req)
	if err != nil {
		h.log.Error("generation request failed", "agent_id", body.AgentID, "error", err)
		response.RespondError(c, http.StatusUnprocessableEntity, "generation_failed", err)
		return
	}
	h.respondOutcome(c, outcome)
}

func (h *GenerationHandler) Regenerate(c *gin.Context) {
	var body regenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if body.PriorRecordID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("prior_record_id is required"))
		return
	}
	if len(body.Annotations) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("at least one annotation is required"))
		return
	}

	base := generation.GenerationRequest{
		AgentID:                    body.AgentID,
		SessionID:                  body.SessionID,
		SearchMode:                 body.SearchMode,
		ImageType:                  body.ImageType,
		SummarizeBeforeSearchImage: body.Summarize,
	}
	outcome, err := h.orchestrator.Regenerate(c.Request.Context(), base, body.PriorRecordID, body.Annotations)
	if err != nil {
		var stageErr *generation.StageError
		if errors.As(err, &stageErr) && stageErr.Kind == generation.ErrPrecondition {
			response.RespondError(c, http.StatusConflict, "regeneration_precondition", stageErr)
			return
		}
		h.log.Error("regeneration request failed", "prior_record_id", body.PriorRecordID, "error", err)
		response.RespondError(c, http.StatusUnprocessableEntity, "regeneration_failed", err)
		return
	}
	h.respondOutcome(c, outcome)
}

func (h *GenerationHandler) Stop(c *gin.Context) {
	var body stopRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	stopped := h.orchestrator.Stop(c.Request.Context(), body.SessionID)
	response.RespondOK(c, gin.H{"stopped": stopped})
}

func (h *GenerationHandler) toGenerationRequest(body generateRequest) (generation.GenerationRequest, error) {
	if body.AgentID == uuid.Nil {
		return generation.GenerationRequest{}, fmt.Errorf("agent_id is required")
	}
	if body.SessionID == uuid.Nil {
		body.SessionID = uuid.New()
	}

	prompt := body.Prompt
	bodyParams := map[string]any{}
	extraParams := map[string]any{}
	if len(body.Fields) > 0 {
		specs := make([]compose.FieldSpec, 0, len(body.Fields))
		for _, f := range body.Fields {
			spec := compose.FieldSpec{
				Name:    f.Name,
				Label:   f.Label,
				Kind:    compose.FieldKind(f.Kind),
				Section: compose.FieldSection(f.Section),
				Order:   f.Order,
			}
			for _, o := range f.Options {
				spec.Options = append(spec.Options, compose.Option{ID: o.ID, Label: o.Label})
			}
			specs = append(specs, spec)

			// Body/extra fields route into the request parameters instead of
			// the prompt text.
			raw, ok := body.Values[f.Name]
			if !ok || f.Name == compose.PrimaryPromptField {
				continue
			}
			switch compose.FieldSection(f.Section) {
			case compose.SectionBody:
				bodyParams[f.Name] = raw
			case compose.SectionExtra:
				extraParams[f.Name] = raw
			}
		}
		prompt = compose.Compose(specs, compose.ResolveValues(body.Values), body.Language)
	}
	if prompt == "" {
		return generation.GenerationRequest{}, fmt.Errorf("a prompt or form fields are required")
	}

	return generation.GenerationRequest{
		AgentID:                    body.AgentID,
		SessionID:                  body.SessionID,
		UserPrompt:                 prompt,
		BodyParams:                 bodyParams,
		ExtraParams:                extraParams,
		SearchMode:                 body.SearchMode,
		ImageType:                  body.ImageType,
		SummarizeBeforeSearchImage: body.Summarize,
	}, nil
}

func (h *GenerationHandler) respondOutcome(c *gin.Context, outcome *generation.GenerationOutcome) {
	if outcome.State == generation.StateCancelled {
		response.RespondOK(c, generationEnvelope{
			Success: true,
			Data:    &generationData{State: generation.StateCancelled},
		})
		return
	}
	if outcome.PrimaryError != nil {
		c.JSON(http.StatusOK, generationEnvelope{
			Success: false,
			Error:   generation.UserMessage(outcome.PrimaryError),
		})
		return
	}
	data := &generationData{
		Response:      outcome.MainText,
		Format:        outcome.Format,
		Model:         outcome.Model,
		Usage:         outcome.Usage,
		TimingMs:      outcome.Duration.Milliseconds(),
		Warnings:      outcome.Warnings,
		ImageArtifact: outcome.ImageArtifact,
		State:         outcome.State,
	}
	if len(outcome.SearchResults) > 0 {
		data.SearchResults = outcome.SearchResults
	}
	response.RespondOK(c, generationEnvelope{Success: true, Data: data})
}
