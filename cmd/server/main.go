// Package main is the entrypoint for the flowhook API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowhook/flowhook/internal/api"
	"github.com/flowhook/flowhook/internal/api/handler"
	mw "github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/audit"
	"github.com/flowhook/flowhook/internal/automation"
	"github.com/flowhook/flowhook/internal/cache"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/flowhook/flowhook/internal/config"
	"github.com/flowhook/flowhook/internal/ingest"
	"github.com/flowhook/flowhook/internal/session"
	"github.com/flowhook/flowhook/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create the shared rate-limit counter
	counter, err := cache.NewRedisCounter(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis counter: %w", err)
	}
	defer counter.Close()

	if err := counter.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Assemble the pipeline
	pgStore := store.NewPostgresStore(pool)
	auditor := audit.NewLogger(pgStore)
	events := catalog.Default()
	matcher := automation.NewMatcher(pgStore)
	ingestSvc := ingest.NewService(pgStore, events, matcher, auditor)
	processor := automation.NewProcessor(pgStore,
		automation.NewExecutorRegistry(automation.DefaultExecutors()...),
		automation.Options{
			MaxAttempts:      cfg.Jobs.MaxAttempts,
			ExecutionTimeout: cfg.Jobs.ExecutionTimeout,
			BackoffBase:      cfg.Jobs.BackoffBase,
		})
	tokens := session.NewTokenService(cfg.Session.JWTSecret, 0)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		Session:   mw.NewSession(tokens),
		RateLimit: mw.NewRateLimit(counter, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window),

		HealthHandler: handler.NewHealthHandler(pgStore, counter),

		IngestHandler: handler.NewIngestHandler(ingestSvc),

		CatalogListHandler: handler.NewCatalogListHandler(events),
		CatalogGetHandler:  handler.NewCatalogGetHandler(events),

		CreateWorkflowHandler:    handler.NewCreateWorkflowHandler(pgStore, auditor),
		ListWorkflowsHandler:     handler.NewListWorkflowsHandler(pgStore),
		GetWorkflowHandler:       handler.NewGetWorkflowHandler(pgStore),
		UpdateWorkflowHandler:    handler.NewUpdateWorkflowHandler(pgStore, auditor),
		SetWorkflowActiveHandler: handler.NewSetWorkflowActiveHandler(pgStore, auditor),
		DeleteWorkflowHandler:    handler.NewDeleteWorkflowHandler(pgStore, auditor),
		TriggerWorkflowHandler:   handler.NewTriggerWorkflowHandler(pgStore, matcher, auditor),

		ListRunsHandler:    handler.NewListRunsHandler(pgStore),
		GetRunHandler:      handler.NewGetRunHandler(pgStore),
		ListRunJobsHandler: handler.NewListRunJobsHandler(pgStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore, auditor),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore, auditor),

		ProcessJobsHandler: handler.NewProcessJobsHandler(processor, cfg.Jobs.BatchSize),

		ListAuditLogsHandler: handler.NewListAuditLogsHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
