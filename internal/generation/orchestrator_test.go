package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/sse"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

type fakeAI struct {
	mu           sync.Mutex
	completeFn   func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error)
	imageFn      func(ctx context.Context, prompt, imageType, outputFormat string) (*openai.ImageArtifact, error)
	mainPrompts  []string
	imagePrompts []string
}

func (f *fakeAI) Complete(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
	if req.System != summarizerInstruction {
		f.mu.Lock()
		f.mainPrompts = append(f.mainPrompts, req.Prompt)
		f.mu.Unlock()
	}
	return f.completeFn(ctx, req)
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt, imageType, outputFormat string) (*openai.ImageArtifact, error) {
	f.mu.Lock()
	f.imagePrompts = append(f.imagePrompts, prompt)
	f.mu.Unlock()
	if f.imageFn == nil {
		return nil, errors.New("no image backend")
	}
	return f.imageFn(ctx, prompt, imageType, outputFormat)
}

func (f *fakeAI) lastMainPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.mainPrompts) == 0 {
		return ""
	}
	return f.mainPrompts[len(f.mainPrompts)-1]
}

type fakeSearch struct {
	searchFn func(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error)
	mu       sync.Mutex
	queries  []string
}

func (f *fakeSearch) Search(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.searchFn(ctx, query, opts)
}

type fakeAgents struct {
	agent *types.Agent
	err   error
}

func (f *fakeAgents) GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.agent, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []HistoryRecord
	written chan struct{}
	stored  *StoredGeneration
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{written: make(chan struct{}, 8)}
}

func (f *fakeHistory) Record(ctx context.Context, rec HistoryRecord) (uuid.UUID, error) {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	f.written <- struct{}{}
	return uuid.New(), nil
}

func (f *fakeHistory) Load(ctx context.Context, id uuid.UUID) (*StoredGeneration, error) {
	if f.stored == nil {
		return nil, errors.New("not found")
	}
	return f.stored, nil
}

func (f *fakeHistory) waitForWrite(t *testing.T) HistoryRecord {
	t.Helper()
	select {
	case <-f.written:
	case <-time.After(2 * time.Second):
		t.Fatalf("history write never happened")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (f *fakePublisher) Publish(ctx context.Context, msg sse.Message) error {
	f.mu.Lock()
	f.events = append(f.events, msg.Event)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) saw(event sse.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func testAgent() *types.Agent {
	return &types.Agent{
		ID:           uuid.New(),
		Key:          "writer",
		Label:        "Writer",
		SystemPrompt: "You write things.",
		OutputFormat: "text",
		Model:        "test-model",
		AllowImages:  true,
	}
}

func completionOf(text string) *openai.Completion {
	return &openai.Completion{
		Response: text,
		Format:   "text",
		Usage:    openai.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}
}

func TestGenerateSuccessRecordsHistory(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return completionOf("the answer"), nil
		},
	}
	history := newFakeHistory()
	pub := &fakePublisher{}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, history, ai, nil, pub)

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "write an answer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.State != StateDone {
		t.Fatalf("state = %v, want done", outcome.State)
	}
	if outcome.MainText != "the answer" {
		t.Fatalf("main text = %q", outcome.MainText)
	}
	if outcome.PrimaryError != nil {
		t.Fatalf("unexpected primary error: %v", outcome.PrimaryError)
	}

	rec := history.waitForWrite(t)
	if rec.Response != "the answer" || rec.AgentID != agent.ID {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !pub.saw(sse.EventGenerationStarted) || !pub.saw(sse.EventGenerationCompleted) {
		t.Fatalf("lifecycle events missing: %v", pub.events)
	}
}

func TestGenerateMainFailureIsPrimary(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return nil, errors.New("boom")
		},
	}
	agent := testAgent()
	pub := &fakePublisher{}
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, nil, pub)

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "write",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PrimaryError == nil {
		t.Fatalf("expected a primary error")
	}
	if !pub.saw(sse.EventGenerationFailed) {
		t.Fatalf("failed event missing: %v", pub.events)
	}
}

func TestGenerateImageSuccessSuppressesMainError(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return nil, errors.New("text backend down")
		},
		imageFn: func(ctx context.Context, prompt, imageType, outputFormat string) (*openai.ImageArtifact, error) {
			return &openai.ImageArtifact{Ref: "https://img.example/1.png"}, nil
		},
	}
	agent := testAgent()
	history := newFakeHistory()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, history, ai, nil, &fakePublisher{})

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "a sunset",
		ImageType:  "photo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PrimaryError != nil {
		t.Fatalf("main error must be suppressed when the image succeeded, got %v", outcome.PrimaryError)
	}
	if outcome.MainError == nil {
		t.Fatalf("main error channel should retain the failure")
	}
	if outcome.ImageArtifact == "" {
		t.Fatalf("image artifact missing")
	}

	rec := history.waitForWrite(t)
	if !rec.UsedImage || rec.Response != "https://img.example/1.png" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGenerateBothStagesFailMainErrorPrimary(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return nil, errors.New("text down")
		},
		imageFn: func(ctx context.Context, prompt, imageType, outputFormat string) (*openai.ImageArtifact, error) {
			return nil, errors.New("image down")
		},
	}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, nil, &fakePublisher{})

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "a sunset",
		ImageType:  "photo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PrimaryError == nil || outcome.PrimaryError != outcome.MainError {
		t.Fatalf("main error should be primary when both stages fail")
	}
	if outcome.ImageError == nil {
		t.Fatalf("image error channel should retain the failure")
	}
}

func TestGenerateSearchResultsAugmentMainPrompt(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return completionOf("grounded answer"), nil
		},
	}
	search := &fakeSearch{
		searchFn: func(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error) {
			return []tavily.SearchResult{
				{Title: "Go release notes", URL: "https://go.dev/doc", Snippet: "What changed"},
			}, nil
		},
	}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, search, &fakePublisher{})

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "what is new in go",
		SearchMode: SearchModeBasic,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.SearchResults) != 1 {
		t.Fatalf("search results missing from outcome")
	}

	prompt := ai.lastMainPrompt()
	if !strings.HasPrefix(prompt, "what is new in go") {
		t.Fatalf("original prompt must lead, got %q", prompt)
	}
	if !strings.Contains(prompt, searchDivider) {
		t.Fatalf("divider missing from augmented prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "Go release notes") || !strings.Contains(prompt, "https://go.dev/doc") {
		t.Fatalf("rendered results missing: %q", prompt)
	}
}

func TestGenerateSearchFailureContinuesUnaugmented(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			return completionOf("plain answer"), nil
		},
	}
	search := &fakeSearch{
		searchFn: func(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error) {
			return nil, errors.New("search down")
		},
	}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, search, &fakePublisher{})

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  uuid.New(),
		UserPrompt: "what is new in go",
		SearchMode: SearchModeBasic,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PrimaryError != nil {
		t.Fatalf("search failure must not fail the generation: %v", outcome.PrimaryError)
	}
	if outcome.SearchError == nil {
		t.Fatalf("search error channel should retain the failure")
	}
	if got := ai.lastMainPrompt(); got != "what is new in go" {
		t.Fatalf("prompt must stay unaugmented, got %q", got)
	}
	if len(outcome.Warnings) == 0 {
		t.Fatalf("expected a search warning")
	}
}

func TestGenerateSummarizerSeedsSearch(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			if req.System == summarizerInstruction {
				return completionOf("condensed query"), nil
			}
			return completionOf("answer"), nil
		},
	}
	search := &fakeSearch{
		searchFn: func(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error) {
			return nil, errors.New("not relevant here")
		},
	}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, search, &fakePublisher{})

	_, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:                    agent.ID,
		SessionID:                  uuid.New(),
		UserPrompt:                 "a very long rambling request about many things",
		SearchMode:                 SearchModeBasic,
		SummarizeBeforeSearchImage: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	search.mu.Lock()
	defer search.mu.Unlock()
	if len(search.queries) != 1 || search.queries[0] != "condensed query" {
		t.Fatalf("search should receive the summary, got %v", search.queries)
	}
}

func TestGenerateSummarizerFailureFallsBackToRawPrompt(t *testing.T) {
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			if req.System == summarizerInstruction {
				return nil, errors.New("summarizer down")
			}
			return completionOf("answer"), nil
		},
	}
	search := &fakeSearch{
		searchFn: func(ctx context.Context, query string, opts tavily.SearchOptions) ([]tavily.SearchResult, error) {
			return nil, errors.New("skip")
		},
	}
	agent := testAgent()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, search, &fakePublisher{})

	outcome, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:                    agent.ID,
		SessionID:                  uuid.New(),
		UserPrompt:                 "raw prompt",
		SearchMode:                 SearchModeBasic,
		SummarizeBeforeSearchImage: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PrimaryError != nil {
		t.Fatalf("summarizer failure must be absorbed: %v", outcome.PrimaryError)
	}

	search.mu.Lock()
	defer search.mu.Unlock()
	if len(search.queries) != 1 || search.queries[0] != "raw prompt" {
		t.Fatalf("search should fall back to the raw prompt, got %v", search.queries)
	}
}

func TestStopCancelsActiveGeneration(t *testing.T) {
	started := make(chan struct{})
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	agent := testAgent()
	session := uuid.New()
	pub := &fakePublisher{}
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, nil, pub)

	done := make(chan *GenerationOutcome, 1)
	go func() {
		outcome, _ := o.Generate(context.Background(), GenerationRequest{
			AgentID:    agent.ID,
			SessionID:  session,
			UserPrompt: "slow one",
		})
		done <- outcome
	}()

	<-started
	if !o.Stop(context.Background(), session) {
		t.Fatalf("stop should report an active generation")
	}

	select {
	case outcome := <-done:
		if outcome.State != StateCancelled {
			t.Fatalf("state = %v, want cancelled", outcome.State)
		}
		if outcome.MainText != "" || outcome.PrimaryError != nil {
			t.Fatalf("cancelled outcome must be empty, got %+v", outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("generation never returned after stop")
	}
	if !pub.saw(sse.EventGenerationCancelled) {
		t.Fatalf("cancelled event missing: %v", pub.events)
	}
}

func TestNewGenerationSupersedesActiveOne(t *testing.T) {
	firstStarted := make(chan struct{})
	var once sync.Once
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			if req.Prompt == "first" {
				once.Do(func() { close(firstStarted) })
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return completionOf("second answer"), nil
		},
	}
	agent := testAgent()
	session := uuid.New()
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, newFakeHistory(), ai, nil, &fakePublisher{})

	firstDone := make(chan *GenerationOutcome, 1)
	go func() {
		outcome, _ := o.Generate(context.Background(), GenerationRequest{
			AgentID:    agent.ID,
			SessionID:  session,
			UserPrompt: "first",
		})
		firstDone <- outcome
	}()

	<-firstStarted
	second, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    agent.ID,
		SessionID:  session,
		UserPrompt: "second",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.MainText != "second answer" {
		t.Fatalf("second generation should complete, got %+v", second)
	}

	select {
	case outcome := <-firstDone:
		if outcome.State != StateCancelled {
			t.Fatalf("superseded generation state = %v, want cancelled", outcome.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded generation never returned")
	}
}

func TestGenerateUnknownAgentIsRequestError(t *testing.T) {
	o := NewOrchestrator(testLogger(t), &fakeAgents{err: errors.New("not found")}, newFakeHistory(), &fakeAI{}, nil, &fakePublisher{})
	if _, err := o.Generate(context.Background(), GenerationRequest{
		AgentID:    uuid.New(),
		SessionID:  uuid.New(),
		UserPrompt: "hi",
	}); err == nil {
		t.Fatalf("expected an error for an unknown agent")
	}
}

func TestRegenerateLinksPriorRecord(t *testing.T) {
	var captured string
	ai := &fakeAI{
		completeFn: func(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
			captured = req.Prompt
			return completionOf("revised"), nil
		},
	}
	agent := testAgent()
	history := newFakeHistory()
	priorID := uuid.New()
	history.stored = &StoredGeneration{
		ID:       priorID,
		AgentID:  agent.ID,
		Prompt:   "original prompt",
		Response: "original response",
	}
	o := NewOrchestrator(testLogger(t), &fakeAgents{agent: agent}, history, ai, nil, &fakePublisher{})

	outcome, err := o.Regenerate(context.Background(), GenerationRequest{SessionID: uuid.New()}, priorID, []Annotation{
		{SchemaLabel: "Tone", Items: []AnnotationItem{{ID: "t1", Label: "More formal"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.MainText != "revised" {
		t.Fatalf("got %q", outcome.MainText)
	}
	if !strings.HasPrefix(captured, "original prompt") {
		t.Fatalf("regeneration prompt must start with the prior prompt, got %q", captured)
	}
	if !strings.Contains(captured, "More formal") || !strings.Contains(captured, "original response") {
		t.Fatalf("annotations or prior response missing: %q", captured)
	}

	rec := history.waitForWrite(t)
	if rec.RegeneratedFrom == nil || *rec.RegeneratedFrom != priorID {
		t.Fatalf("record should link to the prior generation: %+v", rec)
	}
}
