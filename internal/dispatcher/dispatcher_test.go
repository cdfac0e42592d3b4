// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/queue/memory"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	w := &blockingRunner{started: make(chan struct{}, 1)}
	dispatch := New(memory.NewQueue(), []Runner{w}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dispatch.Run(ctx)
	}()

	select {
	case <-w.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestDispatcherRequiresWorkers(t *testing.T) {
	t.Parallel()

	d := New(memory.NewQueue(), nil, nil)
	require.Error(t, d.Run(context.Background()))
	_, err := d.Drain(context.Background())
	require.Error(t, err)
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(memory.NewQueue(), nil, nil)
	_, err := dispatch.Enqueue(context.Background(), []scraper.NewEntry{{URL: " "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue enqueue: ")
}

func TestDrainCountsOutcomes(t *testing.T) {
	t.Parallel()

	script := &scriptedRunner{statuses: []scraper.QueueStatus{
		scraper.StatusCompleted,
		scraper.StatusFailed,
		scraper.StatusPending,
		scraper.StatusCompleted,
		scraper.StatusProcessing,
	}}
	d := New(memory.NewQueue(), []Runner{script, script}, zap.NewNop())

	res, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Completed: 2, Retried: 1, Failed: 1, Unrecorded: 1}, res)
	assert.Equal(t, 5, res.Processed())
}

func TestDrainStopsOnClaimError(t *testing.T) {
	t.Parallel()

	script := &scriptedRunner{err: errors.New("db down")}
	d := New(memory.NewQueue(), []Runner{script}, nil)

	_, err := d.Drain(context.Background())
	require.ErrorContains(t, err, "db down")
}

type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) {
	select {
	case r.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
}

func (r *blockingRunner) ProcessNext(context.Context) (scraper.QueueEntry, scraper.QueueStatus, error) {
	return scraper.QueueEntry{}, "", scraper.ErrQueueEmpty
}

// scriptedRunner hands out one status per call, shared across workers.
type scriptedRunner struct {
	mu       sync.Mutex
	statuses []scraper.QueueStatus
	err      error
}

func (r *scriptedRunner) Run(context.Context) {}

func (r *scriptedRunner) ProcessNext(context.Context) (scraper.QueueEntry, scraper.QueueStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return scraper.QueueEntry{}, "", r.err
	}
	if len(r.statuses) == 0 {
		return scraper.QueueEntry{}, "", scraper.ErrQueueEmpty
	}
	s := r.statuses[0]
	r.statuses = r.statuses[1:]
	return scraper.QueueEntry{}, s, nil
}
