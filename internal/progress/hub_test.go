package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		QueueDepth:    8,
		BatchSize:     2,
		FlushInterval: time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageEntryStart)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		QueueDepth:    4,
		BatchSize:     10,
		FlushInterval: 25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageEntryStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers, even without sinks.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageEntryStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubFlushOnClose ensures Close drains any buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		QueueDepth:    4,
		BatchSize:     100,
		FlushInterval: time.Minute,
	}, sink)

	evt := sampleEvent(StageEntryStart)
	hub.Emit(evt)

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
}

// TestHubDropsWhenBufferFull ensures a full buffer discards events instead of blocking.
func TestHubDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event, 1),
		logger: zap.NewNop(),
	}
	hub.Emit(sampleEvent(StageEntryStart))
	hub.Emit(sampleEvent(StageEntryDone))
	require.Len(t, hub.events, 1)
	require.Equal(t, StageEntryStart, (<-hub.events).Stage)
}

// TestHubDiscardsInvalidEvents ensures events failing validation never reach sinks.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{QueueDepth: 4, BatchSize: 1}, sink)

	hub.Emit(Event{EntryID: 1, TS: time.Now(), Stage: StageEntryFailed})
	hub.Emit(Event{EntryID: 1, TS: time.Now(), Stage: StageFetch})
	hub.Emit(Event{TS: time.Now(), Stage: StageEntryStart})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

// TestHubIgnoresEmitAfterClose ensures late events are discarded once shutdown starts.
func TestHubIgnoresEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{QueueDepth: 4}, sink)
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(sampleEvent(StageEntryStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

// TestHubFlushesWhenAttemptEnds verifies a terminal event ships the pending batch without waiting.
func TestHubFlushesWhenAttemptEnds(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		QueueDepth:    8,
		BatchSize:     100,
		FlushInterval: time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageEntryStart))
	hub.Emit(sampleEvent(StageFetch))
	hub.Emit(sampleEvent(StageEntryDone))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)

	batch := sink.Batches()[0]
	require.Len(t, batch, 3)
	require.Equal(t, StageEntryDone, batch[2].Stage)
}

// TestHubTracksInFlightAttempts verifies open attempts are listed until a terminal stage closes them.
func TestHubTracksInFlightAttempts(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	sink := newStubSink()
	hub := NewHub(Config{
		QueueDepth:    8,
		BatchSize:     1,
		FlushInterval: time.Minute,
		Logger:        zap.New(core),
	}, sink)

	first := sampleEvent(StageEntryStart)
	first.EntryID = 7
	second := sampleEvent(StageEntryStart)
	second.EntryID = 3
	fetched := second
	fetched.Stage = StageFetch
	fetched.StatusClass = Status2xx
	hub.Emit(first)
	hub.Emit(second)
	hub.Emit(fetched)

	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 3
	}, time.Second, 5*time.Millisecond)
	open := hub.InFlight()
	require.Len(t, open, 2)
	require.Equal(t, int64(3), open[0].EntryID)
	require.Equal(t, StageFetch, open[0].Stage)
	require.Equal(t, int64(7), open[1].EntryID)

	done := first
	done.Stage = StageEntryRetry
	hub.Emit(done)
	require.Eventually(t, func() bool {
		return len(hub.InFlight()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close(context.Background()))
	entries := logs.FilterMessage("entry attempts unfinished at shutdown").All()
	require.Len(t, entries, 1)
	require.Equal(t, []any{int64(3)}, entries[0].ContextMap()["entry_ids"])
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyBatch := append([]Event(nil), batch...)
	s.batches = append(s.batches, copyBatch)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		ID:       NewID(),
		EntryID:  42,
		TS:       time.Now(),
		Stage:    stage,
		URL:      "https://example.com/doc/1",
		Site:     "example.com",
		Category: "census",
	}
	if stage == StageFetch {
		evt.StatusClass = Status2xx
	}
	return evt
}
