package generation

import (
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
)

// Search modes accepted on a request. Anything other than NoSearch triggers
// the search stage; the value rides through to the search backend as depth.
const (
	SearchModeNone     = "no-search"
	SearchModeBasic    = "basic"
	SearchModeAdvanced = "advanced"
)

// ImageTypeNone disables the image stage explicitly.
const ImageTypeNone = "none"

type AnnotationItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Annotation is one schema's worth of requested modifications, collected from
// a prior response's artifacts.
type Annotation struct {
	SchemaID    string           `json:"schema_id"`
	SchemaLabel string           `json:"schema_label"`
	Items       []AnnotationItem `json:"items"`
}

// GenerationRequest is immutable once handed to the orchestrator.
type GenerationRequest struct {
	AgentID     uuid.UUID      `json:"agent_id"`
	SessionID   uuid.UUID      `json:"session_id"`
	UserPrompt  string         `json:"user_prompt"`
	BodyParams  map[string]any `json:"body_params,omitempty"`
	ExtraParams map[string]any `json:"extra_params,omitempty"`

	SearchMode string `json:"search_mode,omitempty"`
	ImageType  string `json:"image_type,omitempty"`

	SummarizeBeforeSearchImage bool `json:"summarize_before_search_image,omitempty"`

	// Annotation-regeneration inputs. Set by the regeneration adapter, never
	// directly by callers of Generate.
	PriorResponse string       `json:"prior_response,omitempty"`
	PriorPrompt   string       `json:"prior_prompt,omitempty"`
	PriorRecordID *uuid.UUID   `json:"prior_record_id,omitempty"`
	Annotations   []Annotation `json:"annotations,omitempty"`
}

func (r GenerationRequest) searchRequested() bool {
	return r.SearchMode != "" && r.SearchMode != SearchModeNone
}

func (r GenerationRequest) imageRequested() bool {
	return r.ImageType != "" && r.ImageType != ImageTypeNone
}

// State is the orchestrator's per-invocation lifecycle position.
type State string

const (
	StateIdle        State = "idle"
	StateSummarizing State = "summarizing"
	StateSearching   State = "searching"
	StateDispatching State = "dispatching"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateCancelled   State = "cancelled"
)

// GenerationOutcome reconciles the independent stage results. Main, image and
// search each own their slots; a failure in one never clears a success in
// another. PrimaryError is the post-tie-break error surface.
type GenerationOutcome struct {
	State State `json:"state"`

	MainText  string      `json:"main_text,omitempty"`
	MainError *StageError `json:"-"`

	ImageArtifact string      `json:"image_artifact,omitempty"`
	ImageError    *StageError `json:"-"`

	SearchResults []tavily.SearchResult `json:"search_results,omitempty"`
	SearchError   *StageError           `json:"-"`

	PrimaryError *StageError `json:"-"`

	Format   string        `json:"format,omitempty"`
	Model    string        `json:"model,omitempty"`
	Usage    openai.Usage  `json:"usage"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"-"`

	RecordID *uuid.UUID `json:"record_id,omitempty"`
}

// HistoryRecord is what the orchestrator hands to the recorder after a
// successful main stage.
type HistoryRecord struct {
	AgentID         uuid.UUID
	SessionID       *uuid.UUID
	Prompt          string
	Response        string
	Format          string
	Model           string
	UsedSearch      bool
	UsedImage       bool
	Usage           openai.Usage
	Duration        time.Duration
	RegeneratedFrom *uuid.UUID
	Annotations     []Annotation
}
