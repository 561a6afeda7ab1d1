package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/voxhall/audio-insights/internal/analysis"
	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/jobs"
	"github.com/voxhall/audio-insights/internal/pipeline"
	repo "github.com/voxhall/audio-insights/internal/repository"
	"github.com/voxhall/audio-insights/internal/report"
	"github.com/voxhall/audio-insights/internal/storage"
	"github.com/voxhall/audio-insights/internal/transcription"
)

// process runs the pipeline once for a single recording, for reruns and
// local debugging. The path is relative to the artifact store root.
func main() {
	path := flag.String("path", "", "recording path relative to the storage root")
	flag.Parse()

	_ = godotenv.Load()

	logger := common.NewLogger()
	slog.SetDefault(logger)

	if *path == "" {
		logger.Error("-path is required")
		os.Exit(2)
	}

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
	orch := pipeline.NewOrchestrator(logger, jobsRepo, updater, engine, policy,
		promptsRepo, analysis.NewInvoker(cfg.Analysis, logger),
		report.NewRenderer(), storage.NewFSStore(cfg.Storage, logger))

	if err := orch.Run(ctx, pipeline.Event{Path: *path, TraceID: uuid.NewString()}); err != nil {
		logger.Error("pipeline run failed", "path", *path, "error", err)
		os.Exit(1)
	}
	logger.Info("pipeline run finished", "path", *path)
}
