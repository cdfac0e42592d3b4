package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// PublisherSink forwards status events to a topic. By default only lifecycle
// events are published; stage completions stay local.
type PublisherSink struct {
	pub       scraper.Publisher
	topic     string
	allStages bool
	logger    *zap.Logger
}

// NewPublisherSink publishes to topic through pub. allStages also forwards
// per-stage events.
func NewPublisherSink(pub scraper.Publisher, topic string, allStages bool, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, allStages: allStages, logger: logger}
}

// Consume publishes the batch in order and stops at the first failure.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		if !s.allStages && !evt.Stage.Terminal() && evt.Stage != progress.StageEntryStart {
			continue
		}
		id, err := s.pub.Publish(ctx, s.topic, evt)
		if err != nil {
			return fmt.Errorf("publish status event for entry %d: %w", evt.EntryID, err)
		}
		s.logger.Debug("status event published",
			zap.String("message_id", id),
			zap.Int64("entry_id", evt.EntryID),
			zap.String("stage", string(evt.Stage)))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
