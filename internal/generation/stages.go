package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

// Stage adapters share one shape: call in, (value, *StageError) out. Nothing
// escapes an adapter except through its error channel, and every adapter
// honors the run's cancellation scope.

const (
	stageSummarize = "summarize"
	stageSearch    = "search"
	stageMain      = "main"
	stageImage     = "image"

	defaultSummarizeTimeout = 60 * time.Second

	summarizerInstruction = "Condense the user's request into a short, focused prompt " +
		"suitable for a web search query or an image generation prompt. Respond with " +
		"plain prose only: no markup, no lists, no commentary."
)

type summarizerStage struct {
	ai      openai.Client
	log     *logger.Logger
	timeout time.Duration
}

func newSummarizerStage(ai openai.Client, log *logger.Logger) *summarizerStage {
	return &summarizerStage{
		ai:      ai,
		log:     log.With("stage", stageSummarize),
		timeout: defaultSummarizeTimeout,
	}
}

func (s *summarizerStage) Call(ctx context.Context, prompt string) (string, *StageError) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.ai.Complete(ctx, openai.CompletionRequest{
		System: summarizerInstruction,
		Prompt: prompt,
		Format: "text",
	})
	if err != nil {
		stageErr := classify(stageSummarize, err)
		observability.Current().ObserveStageResult(stageSummarize, string(stageErr.Kind))
		return "", stageErr
	}

	out := strings.TrimSpace(completion.Response)
	if out == "" {
		stageErr := newStageError(stageSummarize, ErrMalformedResponse, "empty summary", nil)
		observability.Current().ObserveStageResult(stageSummarize, string(stageErr.Kind))
		return "", stageErr
	}
	observability.Current().ObserveStageResult(stageSummarize, "ok")
	return out, nil
}

type searchStage struct {
	search tavily.Client
	log    *logger.Logger
}

func newSearchStage(search tavily.Client, log *logger.Logger) *searchStage {
	return &searchStage{search: search, log: log.With("stage", stageSearch)}
}

func (s *searchStage) Call(ctx context.Context, query, mode string) ([]tavily.SearchResult, *StageError) {
	if s.search == nil {
		return nil, newStageError(stageSearch, ErrPrecondition, "search backend not configured", nil)
	}
	depth := mode
	if depth != SearchModeAdvanced {
		depth = SearchModeBasic
	}
	results, err := s.search.Search(ctx, query, tavily.SearchOptions{
		MaxResults: 5,
		Depth:      depth,
	})
	if err != nil {
		stageErr := classify(stageSearch, err)
		observability.Current().ObserveStageResult(stageSearch, string(stageErr.Kind))
		return nil, stageErr
	}
	observability.Current().ObserveStageResult(stageSearch, "ok")
	return results, nil
}

// searchDivider separates the user's prompt from appended search context.
const searchDivider = "\n\n---\n\nWeb search results:\n\n"

// renderSearchResults produces the block appended to the downstream prompt.
func renderSearchResults(results []tavily.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, r.Title)
		if r.URL != "" {
			b.WriteString("\n   ")
			b.WriteString(r.URL)
		}
		if r.Snippet != "" {
			b.WriteString("\n   ")
			b.WriteString(r.Snippet)
		}
		if r.Date != "" {
			b.WriteString("\n   (")
			b.WriteString(r.Date)
			b.WriteString(")")
		}
	}
	return b.String()
}

type mainInput struct {
	System string
	Prompt string
	Model  string
	Format string
	Body   map[string]any
	Extra  map[string]any
}

type mainStage struct {
	ai  openai.Client
	log *logger.Logger
}

func newMainStage(ai openai.Client, log *logger.Logger) *mainStage {
	return &mainStage{ai: ai, log: log.With("stage", stageMain)}
}

func (s *mainStage) Call(ctx context.Context, in mainInput) (*openai.Completion, *StageError) {
	completion, err := s.ai.Complete(ctx, openai.CompletionRequest{
		System: in.System,
		Prompt: in.Prompt,
		Model:  in.Model,
		Format: in.Format,
		Body:   in.Body,
		Extra:  in.Extra,
	})
	if err != nil {
		stageErr := classify(stageMain, err)
		observability.Current().ObserveStageResult(stageMain, string(stageErr.Kind))
		return nil, stageErr
	}
	observability.Current().ObserveStageResult(stageMain, "ok")
	return completion, nil
}

type imageStage struct {
	ai  openai.Client
	log *logger.Logger
}

func newImageStage(ai openai.Client, log *logger.Logger) *imageStage {
	return &imageStage{ai: ai, log: log.With("stage", stageImage)}
}

func (s *imageStage) Call(ctx context.Context, prompt, imageType string) (string, *StageError) {
	artifact, err := s.ai.GenerateImage(ctx, prompt, imageType, "")
	if err != nil {
		stageErr := classify(stageImage, err)
		observability.Current().ObserveStageResult(stageImage, string(stageErr.Kind))
		return "", stageErr
	}
	observability.Current().ObserveStageResult(stageImage, "ok")
	return artifact.Ref, nil
}
