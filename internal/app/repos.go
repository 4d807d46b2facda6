package app

import (
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/repos"
)

type Repos struct {
	Agents  repos.AgentRepo
	Records repos.GenerationRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Agents:  repos.NewAgentRepo(db, log),
		Records: repos.NewGenerationRecordRepo(db, log),
	}
}
