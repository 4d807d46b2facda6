package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/sse"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

// Publisher decouples the orchestrator from the event fanout. In production
// this is the redis event bus; tests hand in a recording stub.
type Publisher interface {
	Publish(ctx context.Context, msg sse.Message) error
}

// StoredGeneration is the slice of a persisted record the orchestrator needs
// to rebuild a regeneration request.
type StoredGeneration struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	SessionID *uuid.UUID
	Prompt    string
	Response  string
	Format    string
}

// HistoryRecorder persists completed generations off the critical path and
// loads prior ones for regeneration.
type HistoryRecorder interface {
	Record(ctx context.Context, rec HistoryRecord) (uuid.UUID, error)
	Load(ctx context.Context, id uuid.UUID) (*StoredGeneration, error)
}

const historyWriteTimeout = 10 * time.Second

// Orchestrator drives the staged generation pipeline: optional summarizer,
// optional search, then the main completion and image stages in parallel,
// then reconciliation. One generation may be active per session; a new
// request supersedes the old one.
type Orchestrator struct {
	log       *logger.Logger
	agents    AgentSource
	history   HistoryRecorder
	summarize *summarizerStage
	search    *searchStage
	main      *mainStage
	image     *imageStage
	publisher Publisher
	sessions  *sessionRegistry
}

// AgentSource is the read surface the orchestrator needs from agent storage.
type AgentSource interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error)
}

func NewOrchestrator(
	log *logger.Logger,
	agents AgentSource,
	history HistoryRecorder,
	ai openai.Client,
	search tavily.Client,
	publisher Publisher,
) *Orchestrator {
	olog := log.With("component", "orchestrator")
	return &Orchestrator{
		log:       olog,
		agents:    agents,
		history:   history,
		summarize: newSummarizerStage(ai, olog),
		search:    newSearchStage(search, olog),
		main:      newMainStage(ai, olog),
		image:     newImageStage(ai, olog),
		publisher: publisher,
		sessions:  newSessionRegistry(),
	}
}

// Generate runs the full pipeline for one request. The returned outcome is
// always non-nil; pipeline failures live inside it rather than in the error
// return, which is reserved for request-level problems such as an unknown
// agent.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (*GenerationOutcome, error) {
	agent, err := o.agents.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("resolving agent %s: %w", req.AgentID, err)
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	runCtx, runID := o.sessions.Begin(ctx, req.SessionID)
	defer o.sessions.End(req.SessionID, runID)

	o.publish(ctx, req.SessionID, sse.EventGenerationStarted, map[string]any{
		"run_id":   runID,
		"agent_id": agent.ID,
	})

	started := time.Now()
	outcome := o.run(runCtx, agent, req, runID)
	outcome.Duration = time.Since(started)

	observability.Current().ObserveGeneration(string(outcome.State))

	switch outcome.State {
	case StateCancelled:
		o.publish(ctx, req.SessionID, sse.EventGenerationCancelled, map[string]any{"run_id": runID})
	default:
		if outcome.PrimaryError != nil {
			o.publish(ctx, req.SessionID, sse.EventGenerationFailed, map[string]any{
				"run_id":  runID,
				"message": UserMessage(outcome.PrimaryError),
			})
		} else {
			o.publish(ctx, req.SessionID, sse.EventGenerationCompleted, map[string]any{"run_id": runID})
			o.recordHistory(ctx, agent, req, outcome)
		}
	}
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, agent *types.Agent, req GenerationRequest, runID uuid.UUID) *GenerationOutcome {
	outcome := &GenerationOutcome{
		State:  StateIdle,
		Format: agent.OutputFormat,
		Model:  agent.Model,
	}

	wantSearch := req.searchRequested()
	wantImage := req.imageRequested() && agent.AllowImages && !agent.IsImageAgent()

	// The side-stage seed starts as the raw prompt and is optionally replaced
	// by the summarizer's condensed form. The main prompt is never summarized.
	seed := req.UserPrompt
	mainPrompt := req.UserPrompt

	if req.SummarizeBeforeSearchImage && (wantSearch || wantImage) {
		outcome.State = StateSummarizing
		summary, stageErr := o.summarize.Call(ctx, req.UserPrompt)
		if stageErr.IsCancelled() {
			return cancelledOutcome(outcome)
		}
		if stageErr != nil {
			// Summarizer failures never block the pipeline. The raw prompt
			// seeds the side stages instead.
			o.log.Warn("summarizer failed, using raw prompt", "run_id", runID, "error", stageErr)
			outcome.Warnings = append(outcome.Warnings, "prompt summarization failed, raw prompt used for search and image")
		} else {
			seed = summary
			o.publish(ctx, req.SessionID, sse.EventGenerationSummarized, map[string]any{"run_id": runID})
		}
	}

	if wantSearch {
		outcome.State = StateSearching
		results, stageErr := o.search.Call(ctx, seed, req.SearchMode)
		if stageErr.IsCancelled() {
			return cancelledOutcome(outcome)
		}
		if stageErr != nil {
			o.log.Warn("search failed, continuing without results", "run_id", runID, "error", stageErr)
			outcome.SearchError = stageErr
			outcome.Warnings = append(outcome.Warnings, "web search failed, the response was generated without search context")
		} else if len(results) > 0 {
			outcome.SearchResults = results
			mainPrompt = mainPrompt + searchDivider + renderSearchResults(results)
			o.publish(ctx, req.SessionID, sse.EventGenerationSearched, map[string]any{
				"run_id":  runID,
				"results": len(results),
			})
		}
	}

	outcome.State = StateDispatching

	var (
		completion *openai.Completion
		mainErr    *StageError
		imageRef   string
		imageErr   *StageError
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		completion, mainErr = o.main.Call(ctx, mainInput{
			System: agent.SystemPrompt,
			Prompt: mainPrompt,
			Model:  agent.Model,
			Format: agent.OutputFormat,
			Body:   req.BodyParams,
			Extra:  req.ExtraParams,
		})
		return nil
	})
	if wantImage {
		g.Go(func() error {
			imageRef, imageErr = o.image.Call(ctx, seed, req.ImageType)
			return nil
		})
	}
	_ = g.Wait()

	outcome.State = StateReconciling

	if mainErr.IsCancelled() || imageErr.IsCancelled() || ctx.Err() != nil {
		return cancelledOutcome(outcome)
	}

	outcome.MainError = mainErr
	outcome.ImageError = imageErr
	outcome.ImageArtifact = imageRef

	if completion != nil {
		outcome.MainText = completion.Response
		outcome.Usage = completion.Usage
		outcome.Warnings = append(outcome.Warnings, completion.Warnings...)
		if completion.Format != "" {
			outcome.Format = completion.Format
		}
	}
	if imageErr != nil && wantImage {
		outcome.Warnings = append(outcome.Warnings, "image generation failed: "+UserMessage(imageErr))
	}

	// A failed main stage is demoted to a warning when the image stage
	// delivered, so a usable artifact is never discarded over a text error.
	outcome.PrimaryError = mainErr
	if mainErr != nil && imageRef != "" {
		outcome.PrimaryError = nil
		outcome.Warnings = append(outcome.Warnings, "text generation failed: "+UserMessage(mainErr))
	}

	outcome.State = StateDone
	return outcome
}

// cancelledOutcome clears every partial result. A superseded or stopped run
// must leave nothing behind for the caller to render.
func cancelledOutcome(outcome *GenerationOutcome) *GenerationOutcome {
	return &GenerationOutcome{
		State:  StateCancelled,
		Format: outcome.Format,
		Model:  outcome.Model,
	}
}

// recordHistory persists the outcome without blocking or failing the caller.
// The write detaches from the request's cancellation scope.
func (o *Orchestrator) recordHistory(ctx context.Context, agent *types.Agent, req GenerationRequest, outcome *GenerationOutcome) {
	if o.history == nil {
		return
	}
	response := outcome.MainText
	if response == "" && outcome.ImageArtifact != "" {
		response = outcome.ImageArtifact
	}
	if response == "" {
		return
	}

	session := req.SessionID
	rec := HistoryRecord{
		AgentID:         agent.ID,
		SessionID:       &session,
		Prompt:          req.UserPrompt,
		Response:        response,
		Format:          outcome.Format,
		Model:           outcome.Model,
		UsedSearch:      len(outcome.SearchResults) > 0,
		UsedImage:       outcome.ImageArtifact != "",
		Usage:           outcome.Usage,
		Duration:        outcome.Duration,
		RegeneratedFrom: req.PriorRecordID,
		Annotations:     req.Annotations,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	go func() {
		defer cancel()
		if _, err := o.history.Record(writeCtx, rec); err != nil {
			o.log.Error("recording generation history", "agent_id", agent.ID, "error", err)
		}
	}()
}

// Regenerate loads a prior record, folds the annotations into a fresh prompt
// and runs the pipeline again, linking the new record to the old one.
func (o *Orchestrator) Regenerate(ctx context.Context, base GenerationRequest, priorRecordID uuid.UUID, annotations []Annotation) (*GenerationOutcome, error) {
	if o.history == nil {
		return nil, fmt.Errorf("history storage not configured")
	}
	stored, err := o.history.Load(ctx, priorRecordID)
	if err != nil {
		return nil, fmt.Errorf("loading prior generation %s: %w", priorRecordID, err)
	}
	if base.AgentID == uuid.Nil {
		base.AgentID = stored.AgentID
	}

	req, stageErr := BuildRegenerationRequest(base, stored.Prompt, stored.Response, &stored.ID, annotations)
	if stageErr != nil {
		return nil, stageErr
	}
	return o.Generate(ctx, req)
}

// Stop cancels the session's in-flight generation, if any.
func (o *Orchestrator) Stop(ctx context.Context, session uuid.UUID) bool {
	stopped := o.sessions.Stop(session)
	if stopped {
		o.publish(ctx, session, sse.EventGenerationCancelled, nil)
	}
	return stopped
}

func (o *Orchestrator) publish(ctx context.Context, session uuid.UUID, event sse.Event, data any) {
	if o.publisher == nil {
		return
	}
	msg := sse.Message{Channel: session.String(), Event: event, Data: data}
	if err := o.publisher.Publish(ctx, msg); err != nil {
		o.log.Warn("publishing generation event", "event", event, "error", err)
	}
}
