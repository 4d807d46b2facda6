package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GenerationRecord is the history row written after every successful main
// completion. One row per generation; image and search results ride along as
// metadata so a failed side stage never blocks the write.
type GenerationRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AgentID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"agent_id"`
	SessionID  *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Prompt     string     `gorm:"column:prompt;not null" json:"prompt"`
	Response   string     `gorm:"column:response;not null" json:"response"`
	Format     string     `gorm:"column:format" json:"format,omitempty"`
	Model      string     `gorm:"column:model" json:"model,omitempty"`
	UsedSearch bool       `gorm:"column:used_search;not null;default:false" json:"used_search"`
	UsedImage  bool       `gorm:"column:used_image;not null;default:false" json:"used_image"`
	// Regeneration provenance: set when the row came from an annotation pass.
	RegeneratedFrom *uuid.UUID     `gorm:"type:uuid;index" json:"regenerated_from,omitempty"`
	Annotations     datatypes.JSON `gorm:"type:jsonb;column:annotations" json:"annotations,omitempty"`
	Usage           datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage,omitempty"`
	DurationMs      int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (GenerationRecord) TableName() string {
	return "generation_record"
}
