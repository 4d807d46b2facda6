package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/halcyonlabs/agentstudio-backend/internal/db"
	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
	"github.com/halcyonlabs/agentstudio-backend/internal/sse"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Hub      *sse.Hub

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init()
	}
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := sse.NewHub(log)

	clientset, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, reposet, clientset, hub)

	if err := serviceset.Agents.EnsureDefaults(context.Background()); err != nil {
		log.Warn("seeding default agents failed", "error", err)
	}

	handlerset := wireHandlers(log, serviceset, hub)
	router := wireRouter(log, handlerset, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		Hub:          hub,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: the redis forwarder that feeds remote
// generation events into the local hub.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.Events != nil {
		if err := a.Clients.Events.StartForwarder(ctx, func(m sse.Message) {
			a.Hub.Publish(m)
		}); err != nil {
			a.Log.Warn("starting redis forwarder", "error", err)
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("http server listening", "addr", addr)
	return a.Router.Run(addr)
}

func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.Clients.Events != nil {
		if err := a.Clients.Events.Close(); err != nil {
			a.Log.Warn("closing redis event bus", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
