package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/voxhall/audio-insights/internal/repository"
)

// Service is a tiny façade over the job repository that produces XLSX
// bytes for operator exports.
type Service struct {
	jobsRepo repository.JobRepository
	logger   *slog.Logger
}

func NewService(repo repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: repo, logger: logger}
}

// ExportJobsXLSX returns an XLSX workbook (as bytes) listing every job
// with its status, artifact locations, and timestamps, newest first.
func (s *Service) ExportJobsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	jobList, err := s.jobsRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Job ID",
		"Recording",
		"Status",
		"Transcription ID",
		"Transcript",
		"Report",
		"Error",
		"Created",
		"Updated",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobList {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.ID)
		write(2, j.SourceURI)
		write(3, string(j.Status))
		write(4, j.TranscriptionHandle)
		write(5, j.TranscriptURI)
		write(6, j.ReportURI)
		write(7, truncate(j.ErrorMessage, 140))
		if !j.CreatedAt.IsZero() {
			write(8, j.CreatedAt.UTC().Format(time.RFC3339))
		} else {
			write(8, "")
		}
		if !j.UpdatedAt.IsZero() {
			write(9, j.UpdatedAt.UTC().Format(time.RFC3339))
		} else {
			write(9, "")
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 38) // job id
	_ = f.SetColWidth(sheet, "B", "B", 48) // recording
	_ = f.SetColWidth(sheet, "C", "C", 14) // status
	_ = f.SetColWidth(sheet, "D", "D", 38) // transcription id
	_ = f.SetColWidth(sheet, "E", "F", 56) // artifact paths
	_ = f.SetColWidth(sheet, "G", "G", 48) // error
	_ = f.SetColWidth(sheet, "H", "I", 22) // timestamps

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(jobList),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
