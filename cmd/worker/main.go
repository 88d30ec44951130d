// Package main is the entrypoint for the flowhook job worker. It polls for
// due jobs across all organizations and executes them in batches. Multiple
// workers can run concurrently; claiming a job marks it processing so no two
// workers pick it up.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowhook/flowhook/internal/automation"
	"github.com/flowhook/flowhook/internal/config"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"poll_interval", cfg.Jobs.PollInterval, "batch_size", cfg.Jobs.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	pgStore := store.NewPostgresStore(pool)
	processor := automation.NewProcessor(pgStore,
		automation.NewExecutorRegistry(automation.DefaultExecutors()...),
		automation.Options{
			MaxAttempts:      cfg.Jobs.MaxAttempts,
			ExecutionTimeout: cfg.Jobs.ExecutionTimeout,
			BackoffBase:      cfg.Jobs.BackoffBase,
		})

	ticker := time.NewTicker(cfg.Jobs.PollInterval)
	defer ticker.Stop()

	slog.Info("worker started")
	for {
		// Poll immediately on startup, then on every tick.
		poll(ctx, pgStore, processor, cfg.Jobs.BatchSize)

		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// poll runs one sweep: every organization with due jobs gets one batch. An
// error in one organization's batch never skips the others.
func poll(ctx context.Context, st store.Store, processor *automation.Processor, batchSize int) {
	orgs, err := st.ListOrganizationsWithDueJobs(ctx)
	if err != nil {
		slog.Error("list organizations with due jobs", "error", err)
		return
	}

	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return
		}
		processOrg(ctx, processor, orgID, batchSize)
	}
}

func processOrg(ctx context.Context, processor *automation.Processor, orgID uuid.UUID, batchSize int) {
	results, err := processor.ProcessBatch(ctx, orgID, batchSize)
	if err != nil {
		slog.Error("process batch", "organization_id", orgID, "error", err)
		return
	}
	if len(results) == 0 {
		return
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Status == models.JobStatusSucceeded {
			succeeded++
		} else {
			failed++
		}
	}
	slog.Info("batch processed", "organization_id", orgID,
		"jobs", len(results), "succeeded", succeeded, "failed", failed)
}
