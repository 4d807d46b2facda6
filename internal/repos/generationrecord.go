package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

type GenerationRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.GenerationRecord) ([]*types.GenerationRecord, error)
	GetByID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.GenerationRecord, error)
	ListByAgent(ctx context.Context, tx *gorm.DB, agentID *uuid.UUID, limit int) ([]*types.GenerationRecord, error)
}

type generationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRecordRepo {
	return &generationRecordRepo{db: db, log: baseLog.With("repo", "GenerationRecordRepo")}
}

func (r *generationRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.GenerationRecord) ([]*types.GenerationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.GenerationRecord{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *generationRecordRepo) GetByID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.GenerationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.GenerationRecord
	if err := transaction.WithContext(ctx).
		Where("id = ?", recordID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *generationRecordRepo) ListByAgent(ctx context.Context, tx *gorm.DB, agentID *uuid.UUID, limit int) ([]*types.GenerationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := transaction.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if agentID != nil && *agentID != uuid.Nil {
		q = q.Where("agent_id = ?", *agentID)
	}
	var results []*types.GenerationRecord
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
