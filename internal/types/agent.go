package types

import (
	"time"

	"github.com/google/uuid"
)

// ImageAgentKey identifies the dedicated image-generation agent. When a
// generation targets this agent the orchestrator never dispatches a parallel
// image stage alongside the main call.
const ImageAgentKey = "image-generator"

type Agent struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Key          string    `gorm:"column:key;uniqueIndex;not null" json:"key"`
	Label        string    `gorm:"column:label;not null" json:"label"`
	SystemPrompt string    `gorm:"column:system_prompt" json:"system_prompt"`
	OutputFormat string    `gorm:"column:output_format;not null;default:text" json:"output_format"`
	Model        string    `gorm:"column:model" json:"model,omitempty"`
	SearchMode   string    `gorm:"column:search_mode;not null;default:no-search" json:"search_mode"`
	AllowImages  bool      `gorm:"column:allow_images;not null;default:false" json:"allow_images"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Agent) TableName() string {
	return "agent"
}

func (a *Agent) IsImageAgent() bool {
	if a == nil {
		return false
	}
	return a.Key == ImageAgentKey
}
