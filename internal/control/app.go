// Package control wires the memory backend together: storage, cache,
// resilience handler, service, and health server.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/recall/internal/core/config"
	"github.com/vietddude/recall/internal/health"
	"github.com/vietddude/recall/internal/infra/insights"
	"github.com/vietddude/recall/internal/infra/redis"
	memstore "github.com/vietddude/recall/internal/infra/storage/memory"
	"github.com/vietddude/recall/internal/infra/storage/postgres"
	"github.com/vietddude/recall/internal/memory"
	"github.com/vietddude/recall/internal/resilience"
)

// App owns the service and its infrastructure.
type App struct {
	cfg     *config.AppConfig
	service *memory.Service
	handler *resilience.Handler
	health  *health.Server
	db      *postgres.DB
	cache   *redis.Client
	scorer  *insights.Client
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	handler := resilience.NewHandler()

	svcCfg := memory.Config{
		Handler:      handler,
		ContextLimit: cfg.Memory.ContextLimit,
		MaxRetries:   cfg.Memory.MaxRetries,
	}

	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		dir := cfg.Database.MigrationsDir
		if dir == "" {
			dir = "migrations"
		}
		if err := db.Migrate(dir); err != nil {
			return nil, err
		}

		svcCfg.Messages = postgres.NewMessageRepo(db)
		svcCfg.Tickets = postgres.NewTicketRepo(db)
		svcCfg.Users = postgres.NewUserRepo(db)
		svcCfg.Tools = postgres.NewToolUsageRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memstore.NewMemoryStorage()
		svcCfg.Messages = memstore.NewMessageRepo(store)
		svcCfg.Tickets = memstore.NewTicketRepo(store)
		svcCfg.Users = memstore.NewUserRepo(store)
		svcCfg.Tools = memstore.NewToolUsageRepo(store)
		slog.Info("Using Memory storage")
	}

	var cache *redis.Client
	if cfg.Redis.URL != "" {
		var err error
		redisCfg := cfg.Redis
		if redisCfg.TTL == 0 {
			redisCfg.TTL = cfg.Memory.CacheTTL
		}
		cache, err = redis.NewClient(redisCfg)
		if err != nil {
			// The cache is optional; the service degrades to
			// database-only reads.
			handler.HandleCacheError(err, "connect")
			slog.Warn("Failed to connect to Redis, context cache disabled", "error", err)
		} else {
			svcCfg.Cache = cache
			slog.Info("Context cache enabled")
		}
	}

	var scorer *insights.Client
	if cfg.Insights.URL != "" {
		scorer = insights.NewClient(cfg.Insights.URL, cfg.Insights.APIKey, cfg.Insights.Timeout)
		svcCfg.Insights = scorer
		slog.Info("Sentiment analysis enabled")
	}

	return &App{
		cfg:     cfg,
		service: memory.NewService(svcCfg),
		handler: handler,
		health:  health.NewServer(handler, cfg.Server.Port),
		db:      db,
		cache:   cache,
		scorer:  scorer,
	}, nil
}

// Service returns the memory service.
func (a *App) Service() *memory.Service {
	return a.service
}

// Start launches the health server and background collectors.
func (a *App) Start(ctx context.Context) error {
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	go func() {
		slog.Info("Health server listening", "port", a.cfg.Server.Port)
		if err := a.health.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the app down gracefully.
func (a *App) Stop(ctx context.Context) error {
	if err := a.health.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop health server: %w", err)
	}
	if a.scorer != nil {
		if err := a.scorer.Close(); err != nil {
			slog.Warn("Failed to close insights client", "error", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
	return nil
}
