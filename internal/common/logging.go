package common

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog logger. Local environments get
// the text handler; everything else logs JSON for ingestion.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	env := os.Getenv("ENVIRONMENT")
	var handler slog.Handler
	if env == "" || env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
