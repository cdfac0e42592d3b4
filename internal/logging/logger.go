// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// New builds a zap.Logger configured for development or production. Both
// variants write to stderr so command output on stdout stays machine readable.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger, nil
}

// EntryFields returns the fields every per-URL log line carries.
func EntryFields(entry scraper.QueueEntry) []zap.Field {
	return []zap.Field{
		zap.Int64("entry_id", entry.ID),
		zap.String("url", entry.URL),
		zap.String("category", entry.Category),
		zap.Int("retry_count", entry.RetryCount),
	}
}

// ErrorFields classifies err for structured logs.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	return []zap.Field{
		zap.Error(err),
		zap.String("error_kind", string(scraper.KindOf(err))),
		zap.Bool("retryable", scraper.IsRetryable(err)),
	}
}
