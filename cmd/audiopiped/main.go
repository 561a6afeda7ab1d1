package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/voxhall/audio-insights/internal/analysis"
	"github.com/voxhall/audio-insights/internal/async"
	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/ingest"
	"github.com/voxhall/audio-insights/internal/jobs"
	"github.com/voxhall/audio-insights/internal/pipeline"
	repo "github.com/voxhall/audio-insights/internal/repository"
	"github.com/voxhall/audio-insights/internal/report"
	"github.com/voxhall/audio-insights/internal/storage"
	"github.com/voxhall/audio-insights/internal/transcription"
)

func main() {
	_ = godotenv.Load()

	logger := common.NewLogger()
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	if err := repo.HealthCheck(ctx, db, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	jobsRepo := repo.NewJobRepository(db, logger)
	promptsRepo := repo.NewPromptRepository(db, logger)
	updater := jobs.NewUpdater(jobsRepo, logger)

	engine := transcription.NewEngine(cfg.Speech, logger)
	policy := transcription.RetryPolicy{
		Interval: cfg.Speech.PollInterval,
		Timeout:  cfg.Speech.PollTimeout,
	}
	invoker := analysis.NewInvoker(cfg.Analysis, logger)
	renderer := report.NewRenderer()
	store := storage.NewFSStore(cfg.Storage, logger)

	orch := pipeline.NewOrchestrator(logger, jobsRepo, updater, engine, policy,
		promptsRepo, invoker, renderer, store)

	queue := async.NewEventQueue(orch, logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(cfg.Speech.PollTimeout+time.Hour),
	)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Root:        cfg.Ingest.RecordingsDir,
		InitialScan: cfg.Ingest.InitialScan,
		Debounce:    cfg.Ingest.Debounce,
	})
	if err != nil {
		logger.Error("failed to start recordings watcher", "error", err)
		os.Exit(1)
	}

	logger.Info("audiopiped started",
		"recordings_dir", cfg.Ingest.RecordingsDir,
		"workers", cfg.Workers,
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case path, ok := <-events:
			if !ok {
				break loop
			}
			_ = queue.Enqueue(ctx, pipeline.Event{
				Path:    path,
				TraceID: uuid.NewString(),
			})
		case werr, ok := <-watchErrs:
			if ok && werr != nil {
				logger.Error("recordings watcher error", "error", werr)
			}
		}
	}

	logger.Info("shutting down")
	queue.Shutdown(context.Background())
}
