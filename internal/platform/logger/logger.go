// Package logger builds the process-wide slog logger. Every component takes
// a *slog.Logger rather than touching a global, so tests pass their own.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger on stdout. LOG_LEVEL=debug lowers the level;
// anything else stays at info.
func New() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
