package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/halcyonlabs/agentstudio-backend/internal/generation"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/repos"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

// HistoryService persists and reads back generation records. It doubles as
// the orchestrator's HistoryRecorder.
type HistoryService interface {
	Record(ctx context.Context, rec generation.HistoryRecord) (uuid.UUID, error)
	Load(ctx context.Context, id uuid.UUID) (*generation.StoredGeneration, error)
	Get(ctx context.Context, id uuid.UUID) (*types.GenerationRecord, error)
	List(ctx context.Context, agentID *uuid.UUID, limit int) ([]*types.GenerationRecord, error)
}

type historyService struct {
	records repos.GenerationRecordRepo
	log     *logger.Logger
}

func NewHistoryService(records repos.GenerationRecordRepo, baseLog *logger.Logger) HistoryService {
	return &historyService{
		records: records,
		log:     baseLog.With("service", "HistoryService"),
	}
}

func (s *historyService) Record(ctx context.Context, rec generation.HistoryRecord) (uuid.UUID, error) {
	row := &types.GenerationRecord{
		AgentID:         rec.AgentID,
		SessionID:       rec.SessionID,
		Prompt:          rec.Prompt,
		Response:        rec.Response,
		Format:          rec.Format,
		Model:           rec.Model,
		UsedSearch:      rec.UsedSearch,
		UsedImage:       rec.UsedImage,
		RegeneratedFrom: rec.RegeneratedFrom,
		DurationMs:      rec.Duration.Milliseconds(),
	}

	if len(rec.Annotations) > 0 {
		raw, err := json.Marshal(rec.Annotations)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshaling annotations: %w", err)
		}
		row.Annotations = datatypes.JSON(raw)
	}
	if rawUsage, err := json.Marshal(rec.Usage); err == nil {
		row.Usage = datatypes.JSON(rawUsage)
	}

	created, err := s.records.Create(ctx, nil, []*types.GenerationRecord{row})
	if err != nil {
		s.log.Error("creating generation record", "agent_id", rec.AgentID, "error", err)
		return uuid.Nil, err
	}
	return created[0].ID, nil
}

func (s *historyService) Load(ctx context.Context, id uuid.UUID) (*generation.StoredGeneration, error) {
	row, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &generation.StoredGeneration{
		ID:        row.ID,
		AgentID:   row.AgentID,
		SessionID: row.SessionID,
		Prompt:    row.Prompt,
		Response:  row.Response,
		Format:    row.Format,
	}, nil
}

func (s *historyService) Get(ctx context.Context, id uuid.UUID) (*types.GenerationRecord, error) {
	return s.records.GetByID(ctx, nil, id)
}

func (s *historyService) List(ctx context.Context, agentID *uuid.UUID, limit int) ([]*types.GenerationRecord, error) {
	return s.records.ListByAgent(ctx, nil, agentID, limit)
}
