package progress

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
)

// Config sizes the Hub. Zero values take the defaults below.
type Config struct {
	// QueueDepth is how many events may wait for the batcher before Emit drops.
	QueueDepth int
	// BatchSize flushes once this many events are pending.
	BatchSize int
	// FlushInterval bounds how long a pending event waits for its batch.
	FlushInterval time.Duration
	// SinkTimeout bounds each sink call.
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultQueueDepth    = 4096
	defaultBatchSize     = 500
	defaultFlushInterval = 500 * time.Millisecond
	defaultSinkTimeout   = 10 * time.Second
	dropLogInterval      = 5 * time.Second
)

// Hub batches entry events and fans them out to sinks. It tracks which entry
// attempts are open, and an event that closes an attempt flushes the batch
// at once so sinks see every finished attempt whole. Emit never blocks.
type Hub struct {
	cfg     Config
	sinks   []Sink
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropLog *rate.Sometimes
	dropped atomic.Int64
	closed  atomic.Bool

	mu       sync.Mutex
	inFlight map[int64]Event

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts a Hub delivering to sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:      cfg,
		sinks:    append([]Sink(nil), sinks...),
		events:   make(chan Event, cfg.QueueDepth),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
		dropLog:  &rate.Sometimes{Interval: dropLogInterval},
		inFlight: make(map[int64]Event),
	}
	go h.run()
	return h
}

// Emit queues an event. A full queue drops it and counts the drop.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid entry event",
			zap.Int64("entry_id", evt.EntryID), zap.String("stage", string(evt.Stage)), zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		metrics.ObserveDroppedStatusEvent()
		if h.dropLog != nil {
			h.dropLog.Do(func() {
				h.logger.Warn("entry events dropped, sinks are behind", zap.Int64("dropped", h.dropped.Swap(0)))
			})
		}
	}
}

// InFlight returns the latest event of every entry attempt that has started
// but not reached a terminal stage, ordered by entry ID.
func (h *Hub) InFlight() []Event {
	h.mu.Lock()
	out := make([]Event, 0, len(h.inFlight))
	for _, evt := range h.inFlight {
		out = append(out, evt)
	}
	h.mu.Unlock()
	slices.SortFunc(out, func(a, b Event) int { return cmp.Compare(a.EntryID, b.EntryID) })
	return out
}

// Close delivers queued events, closes the sinks and waits for the batcher.
// Attempts still open are logged. Repeated calls are no-ops.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
	case <-ctx.Done():
		return fmt.Errorf("entry event hub close wait: %w", ctx.Err())
	}
	if open := h.InFlight(); len(open) > 0 {
		ids := make([]int64, len(open))
		for i, evt := range open {
			ids[i] = evt.EntryID
		}
		h.logger.Warn("entry attempts unfinished at shutdown", zap.Int64s("entry_ids", ids))
	}
	return nil
}

func (h *Hub) run() {
	defer close(h.doneCh)
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, h.cfg.BatchSize)
	for {
		select {
		case evt := <-h.events:
			batch = h.add(batch, evt)
		case <-ticker.C:
			batch = h.flush(batch)
		case <-h.stopCh:
		drain:
			for {
				select {
				case evt := <-h.events:
					batch = h.add(batch, evt)
				default:
					break drain
				}
			}
			h.flush(batch)
			h.closeSinks()
			return
		}
	}
}

// add tracks the attempt the event belongs to and flushes when the batch is
// full or the event closes an attempt.
func (h *Hub) add(batch []Event, evt Event) []Event {
	h.mu.Lock()
	if evt.Stage.Terminal() {
		delete(h.inFlight, evt.EntryID)
	} else {
		h.inFlight[evt.EntryID] = evt
	}
	h.mu.Unlock()

	batch = append(batch, evt)
	if len(batch) >= h.cfg.BatchSize || evt.Stage.Terminal() {
		return h.flush(batch)
	}
	return batch
}

// flush hands a copy of batch to every sink and returns batch emptied.
func (h *Hub) flush(batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}
	out := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("entry event sink failed", zap.Int("events", len(out)), zap.Error(err))
		}
		cancel()
	}
	return batch[:0]
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("entry event sink close failed", zap.Error(err))
		}
	}
}
