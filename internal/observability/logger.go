// Package observability provides logging, metrics, and tracing.
//
// It integrates with Prometheus and OpenTelemetry so that job and
// inference behaviour can be monitored in one place.
package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/ai-exam-grader/internal/config"
)

// SetupLogger configures a JSON slog logger with environment fields.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	// In dev, show debug level; in prod, default to info
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
	return logger
}
