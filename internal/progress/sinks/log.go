package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
)

// LogSink writes one structured line per status event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Lifecycle events log at Info, stage
// completions at Debug and failures at Warn.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Int64("entry_id", evt.EntryID),
			zap.String("url", evt.URL),
			zap.String("category", evt.Category),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("duration", evt.Dur),
			zap.Int("attempt", evt.Attempt),
		}
		if evt.Stage == progress.StageFetch {
			fields = append(fields,
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("bytes", evt.Bytes))
		}
		if evt.Count > 0 {
			fields = append(fields, zap.Int("count", evt.Count))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "status event", fields...)
	}
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageEntryFailed, progress.StageEntryRetry:
		return zapcore.WarnLevel
	case progress.StageEntryStart, progress.StageEntryDone:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
