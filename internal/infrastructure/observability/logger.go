package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global zerolog logger and returns it. Logs go
// to stderr so command output on stdout stays clean.
func InitLogger(serviceName, level, format string) zerolog.Logger {
	return initLogger(os.Stderr, serviceName, level, format)
}

func initLogger(out io.Writer, serviceName, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "json" {
		log.Logger = zerolog.New(out).
			Level(lvl).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).
			Level(lvl).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}
	return log.Logger
}

// WithRun attaches a run-scoped logger to ctx
func WithRun(ctx context.Context, logger zerolog.Logger, runID string) context.Context {
	return logger.With().Str("run_id", runID).Logger().WithContext(ctx)
}

// LoggerFromContext returns the logger attached to ctx, or the global one
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return GetLogger()
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
