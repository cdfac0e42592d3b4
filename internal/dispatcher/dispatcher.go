// Package dispatcher manages worker fan-out over the work queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Runner is a single sequential worker.
type Runner interface {
	Run(ctx context.Context)
	ProcessNext(ctx context.Context) (scraper.QueueEntry, scraper.QueueStatus, error)
}

// DrainResult counts what a drain processed.
type DrainResult struct {
	Completed int
	Retried   int
	Failed    int
	// Unrecorded counts entries whose transition could not be written.
	Unrecorded int
}

// Processed is the number of entries claimed during the drain.
func (r DrainResult) Processed() int {
	return r.Completed + r.Retried + r.Failed + r.Unrecorded
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   scraper.Queue
	workers []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue scraper.Queue, workers []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has finished its current entry.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.workers) == 0 {
		return errors.New("dispatcher has no workers")
	}
	d.logger.Info("workers starting", zap.Int("count", len(d.workers)))
	var g errgroup.Group
	for _, w := range d.workers {
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}
	err := g.Wait()
	d.logger.Info("workers stopped")
	return err
}

// Drain processes ready entries until the queue reports none, then returns.
// Entries re-pended for a later attempt are counted as retried.
func (d *Dispatcher) Drain(ctx context.Context) (DrainResult, error) {
	if len(d.workers) == 0 {
		return DrainResult{}, errors.New("dispatcher has no workers")
	}
	var (
		mu  sync.Mutex
		res DrainResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			for gctx.Err() == nil {
				_, status, err := w.ProcessNext(gctx)
				if errors.Is(err, scraper.ErrQueueEmpty) {
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				switch status {
				case scraper.StatusCompleted:
					res.Completed++
				case scraper.StatusPending:
					res.Retried++
				case scraper.StatusFailed:
					res.Failed++
				default:
					res.Unrecorded++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return res, fmt.Errorf("drain: %w", err)
	}
	d.logger.Info("drain finished",
		zap.Int("completed", res.Completed),
		zap.Int("retried", res.Retried),
		zap.Int("failed", res.Failed))
	return res, nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, entries []scraper.NewEntry) ([]int64, error) {
	ids, err := d.queue.Enqueue(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("queue enqueue: %w", err)
	}
	return ids, nil
}
