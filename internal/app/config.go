package app

import (
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/utils"
)

type Config struct {
	Environment    string
	ServiceName    string
	Version        string
	MetricsEnabled bool
	RedisEnabled   bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Environment:    utils.GetEnv("APP_ENV", "development", log),
		ServiceName:    utils.GetEnv("SERVICE_NAME", "agentstudio-backend", log),
		Version:        utils.GetEnv("SERVICE_VERSION", "dev", log),
		MetricsEnabled: utils.GetEnvAsBool("METRICS_ENABLED", true, log),
		RedisEnabled:   utils.GetEnv("REDIS_ADDR", "", log) != "",
	}
}
