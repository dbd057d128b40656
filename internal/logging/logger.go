package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/DMW2151/mta-buses/internal/config"
)

// NewRunID returns an identifier for one invocation of a binary.
func NewRunID() string {
	return uuid.NewString()
}

// New builds the process logger. Every record carries the app name and
// the run id so one scheduled run can be traced end to end.
func New(cfg config.LogConfig, appName, runID string) *slog.Logger {
	if cfg.Env == "dev" {
		h := tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName, "run_id", runID)
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level,
	})
	return slog.New(h).With(
		"app", appName,
		"run_id", runID,
		"env", cfg.Env,
	)
}
