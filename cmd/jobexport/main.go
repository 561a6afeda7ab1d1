package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/export"
	repo "github.com/voxhall/audio-insights/internal/repository"
)

// jobexport writes the job ledger to an XLSX workbook for operators.
func main() {
	out := flag.String("o", "jobs.xlsx", "output workbook path")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := common.NewLogger()
	db, pool, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer repo.Close(db, pool, logger)

	svc := export.NewService(repo.NewJobRepository(db, logger), logger)
	content, err := svc.ExportJobsXLSX(ctx)
	if err != nil {
		log.Fatalf("exporting jobs: %v", err)
	}
	if err := os.WriteFile(*out, content, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *out, err)
	}
	log.Printf("wrote %s (%d bytes)", *out, len(content))
}
