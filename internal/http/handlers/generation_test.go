package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/generation"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

type stubAI struct {
	completeFn func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error)
}

func (s *stubAI) Complete(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
	return s.completeFn(ctx, req)
}

func (s *stubAI) GenerateImage(ctx context.Context, prompt, imageType, outputFormat string) (*openai.ImageArtifact, error) {
	return nil, errors.New("no image backend")
}

type stubAgents struct{ agent *types.Agent }

func (s *stubAgents) GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error) {
	if s.agent == nil || s.agent.ID != id {
		return nil, errors.New("agent not found")
	}
	return s.agent, nil
}

type stubHistory struct{ stored *generation.StoredGeneration }

func (s *stubHistory) Record(ctx context.Context, rec generation.HistoryRecord) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubHistory) Load(ctx context.Context, id uuid.UUID) (*generation.StoredGeneration, error) {
	if s.stored == nil || s.stored.ID != id {
		return nil, errors.New("record not found")
	}
	return s.stored, nil
}

func newTestHandler(t *testing.T, ai openai.Client, agent *types.Agent, history *stubHistory) *GenerationHandler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	orchestrator := generation.NewOrchestrator(log, &stubAgents{agent: agent}, history, ai, nil, nil)
	return NewGenerationHandler(log, orchestrator)
}

func testAgent() *types.Agent {
	return &types.Agent{
		ID:           uuid.New(),
		Key:          "writer",
		Label:        "Writer",
		SystemPrompt: "You write things.",
		OutputFormat: "text",
	}
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(path, handler)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpointSuccessEnvelope(t *testing.T) {
	agent := testAgent()
	ai := &stubAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return &openai.Completion{Response: "done", Format: "text"}, nil
		},
	}
	h := newTestHandler(t, ai, agent, &stubHistory{})

	rec := postJSON(t, h.Generate, "/api/generate", map[string]any{
		"agent_id":   agent.ID,
		"session_id": uuid.New(),
		"prompt":     "write something",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Response string `json:"response"`
			State    string `json:"state"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !envelope.Success || envelope.Data.Response != "done" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.Data.State != string(generation.StateDone) {
		t.Fatalf("state = %q", envelope.Data.State)
	}
}

func TestGenerateEndpointComposesFromFields(t *testing.T) {
	agent := testAgent()
	var captured string
	ai := &stubAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			captured = req.Prompt
			return &openai.Completion{Response: "ok", Format: "text"}, nil
		},
	}
	h := newTestHandler(t, ai, agent, &stubHistory{})

	rec := postJSON(t, h.Generate, "/api/generate", map[string]any{
		"agent_id":   agent.ID,
		"session_id": uuid.New(),
		"fields": []map[string]any{
			{"name": "prompt", "label": "Prompt", "kind": "textarea", "order": 1},
			{"name": "tone", "label": "Tone", "kind": "text", "order": 2},
		},
		"values": map[string]any{
			"prompt": "write a note",
			"tone":   "friendly",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := "Prompt: write a note\n\nTone: friendly"
	if captured != want {
		t.Fatalf("composed prompt = %q, want %q", captured, want)
	}
}

func TestGenerateEndpointStageFailureEnvelope(t *testing.T) {
	agent := testAgent()
	ai := &stubAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return nil, &openai.HTTPError{StatusCode: 503, Body: "overloaded"}
		},
	}
	h := newTestHandler(t, ai, agent, &stubHistory{})

	rec := postJSON(t, h.Generate, "/api/generate", map[string]any{
		"agent_id":   agent.ID,
		"session_id": uuid.New(),
		"prompt":     "write",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Success || envelope.Error == "" {
		t.Fatalf("expected a failure envelope, got %+v", envelope)
	}
}

func TestGenerateEndpointRejectsMissingPrompt(t *testing.T) {
	agent := testAgent()
	h := newTestHandler(t, &stubAI{}, agent, &stubHistory{})

	rec := postJSON(t, h.Generate, "/api/generate", map[string]any{
		"agent_id":   agent.ID,
		"session_id": uuid.New(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegenerateEndpoint(t *testing.T) {
	agent := testAgent()
	priorID := uuid.New()
	history := &stubHistory{stored: &generation.StoredGeneration{
		ID:       priorID,
		AgentID:  agent.ID,
		Prompt:   "original",
		Response: "previous text",
	}}
	ai := &stubAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return &openai.Completion{Response: "revised", Format: "text"}, nil
		},
	}
	h := newTestHandler(t, ai, agent, history)

	rec := postJSON(t, h.Regenerate, "/api/generate/annotations", map[string]any{
		"session_id":      uuid.New(),
		"prior_record_id": priorID,
		"annotations": []map[string]any{
			{"schema_label": "Tone", "items": []map[string]any{{"id": "t1", "label": "Calmer"}}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Response string `json:"response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !envelope.Success || envelope.Data.Response != "revised" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestRegenerateEndpointRequiresAnnotations(t *testing.T) {
	agent := testAgent()
	h := newTestHandler(t, &stubAI{}, agent, &stubHistory{})

	rec := postJSON(t, h.Regenerate, "/api/generate/annotations", map[string]any{
		"session_id":      uuid.New(),
		"prior_record_id": uuid.New(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStopEndpointWithNothingRunning(t *testing.T) {
	agent := testAgent()
	h := newTestHandler(t, &stubAI{}, agent, &stubHistory{})

	rec := postJSON(t, h.Stop, "/api/generate/stop", map[string]any{
		"session_id": uuid.New(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Stopped bool `json:"stopped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stopped {
		t.Fatalf("nothing was running, stopped should be false")
	}
}
