package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/types"
)

type AgentRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.Agent, error)
	GetByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) (*types.Agent, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Agent, error)
	Upsert(ctx context.Context, tx *gorm.DB, agents []*types.Agent) ([]*types.Agent, error)
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: baseLog.With("repo", "AgentRepo")}
}

func (r *agentRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Agent
	if err := transaction.WithContext(ctx).
		Order("label ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *agentRepo) GetByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) (*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Agent
	if err := transaction.WithContext(ctx).
		Where("id = ?", agentID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *agentRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Agent
	if err := transaction.WithContext(ctx).
		Where("key = ?", key).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *agentRepo) Upsert(ctx context.Context, tx *gorm.DB, agents []*types.Agent) ([]*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(agents) == 0 {
		return []*types.Agent{}, nil
	}
	for _, a := range agents {
		existing, err := r.GetByKey(ctx, transaction, a.Key)
		if err == nil && existing != nil {
			a.ID = existing.ID
			if err := transaction.WithContext(ctx).Save(a).Error; err != nil {
				return nil, err
			}
			continue
		}
		if err := transaction.WithContext(ctx).Create(a).Error; err != nil {
			return nil, err
		}
	}
	return agents, nil
}
