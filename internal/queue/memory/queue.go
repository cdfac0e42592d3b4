// Package memory provides an in-process work queue for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Queue implements scraper.Queue over a mutex-guarded map.
type Queue struct {
	mu      sync.Mutex
	entries map[int64]*scraper.QueueEntry
	nextID  int64
	now     func() time.Time
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		entries: make(map[int64]*scraper.QueueEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue adds entries. A URL that is already pending keeps its existing row.
func (q *Queue) Enqueue(ctx context.Context, entries []scraper.NewEntry) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			return ids, fmt.Errorf("url is required")
		}
		if id, ok := q.pendingID(url); ok {
			ids = append(ids, id)
			continue
		}
		q.nextID++
		entry := &scraper.QueueEntry{
			ID:          q.nextID,
			URL:         url,
			Category:    e.Category,
			Priority:    e.Priority,
			Status:      scraper.StatusPending,
			FetchMode:   e.FetchMode.Normalize(),
			SubmittedAt: q.now(),
			MaxRetries:  e.MaxRetries,
		}
		if entry.Category == "" {
			entry.Category = scraper.DefaultCategory
		}
		if entry.MaxRetries <= 0 {
			entry.MaxRetries = scraper.DefaultMaxRetries
		}
		q.entries[entry.ID] = entry
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

func (q *Queue) pendingID(url string) (int64, bool) {
	for id, e := range q.entries {
		if e.URL == url && e.Status == scraper.StatusPending {
			return id, true
		}
	}
	return 0, false
}

// Claim picks the highest priority, oldest ready entry and marks it processing.
func (q *Queue) Claim(ctx context.Context, now time.Time) (scraper.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return scraper.QueueEntry{}, fmt.Errorf("claim canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	ready := make([]*scraper.QueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.Status != scraper.StatusPending {
			continue
		}
		if e.NextAttemptAt != nil && e.NextAttemptAt.After(now) {
			continue
		}
		ready = append(ready, e)
	}
	if len(ready) == 0 {
		return scraper.QueueEntry{}, scraper.ErrQueueEmpty
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	e := ready[0]
	started := now
	e.Status = scraper.StatusProcessing
	e.StartedAt = &started
	e.CompletedAt = nil
	return clone(e), nil
}

// Fail records a failed attempt and re-pends or fails the entry.
func (q *Queue) Fail(
	_ context.Context,
	entry scraper.QueueEntry,
	cause error,
	summary scraper.ResultSummary,
	now time.Time,
) (scraper.QueueStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[entry.ID]
	if !ok || e.Status != scraper.StatusProcessing {
		return "", fmt.Errorf("entry %d is not processing: %w", entry.ID, scraper.ErrNotFound)
	}
	if cause != nil {
		e.ErrorMessage = cause.Error()
	}
	plan := scraper.PlanRetry(cause, e.RetryCount, e.MaxRetries, now)
	if plan.Retry {
		next := plan.NextAttemptAt
		e.Status = scraper.StatusPending
		e.RetryCount++
		e.NextAttemptAt = &next
		return e.Status, nil
	}
	completed := now
	s := summary
	e.Status = scraper.StatusFailed
	e.CompletedAt = &completed
	e.NextAttemptAt = nil
	e.ResultSummary = &s
	return e.Status, nil
}

// Complete marks a processing entry completed. The memory store calls it from Commit.
func (q *Queue) Complete(id int64, summary scraper.ResultSummary, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok || e.Status != scraper.StatusProcessing {
		return fmt.Errorf("entry %d is not processing: %w", id, scraper.ErrNotFound)
	}
	completed := now
	s := summary
	e.Status = scraper.StatusCompleted
	e.CompletedAt = &completed
	e.NextAttemptAt = nil
	e.ErrorMessage = ""
	e.ResultSummary = &s
	return nil
}

// ReclaimStale reverts processing entries claimed before olderThan.
func (q *Queue) ReclaimStale(_ context.Context, olderThan time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	for _, e := range q.entries {
		if e.Status == scraper.StatusProcessing && e.StartedAt != nil && e.StartedAt.Before(olderThan) {
			e.Status = scraper.StatusPending
			e.StartedAt = nil
			n++
		}
	}
	return n, nil
}

// Requeue revives a completed or failed entry.
func (q *Queue) Requeue(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return fmt.Errorf("entry %d: %w", id, scraper.ErrNotFound)
	}
	if !e.Status.Terminal() {
		return fmt.Errorf("entry %d is %s, not completed or failed", id, e.Status)
	}
	e.Status = scraper.StatusPending
	e.RetryCount = 0
	e.StartedAt = nil
	e.CompletedAt = nil
	e.NextAttemptAt = nil
	e.SubmittedAt = q.now()
	return nil
}

// Get returns a copy of an entry.
func (q *Queue) Get(_ context.Context, id int64) (scraper.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return scraper.QueueEntry{}, fmt.Errorf("entry %d: %w", id, scraper.ErrNotFound)
	}
	return clone(e), nil
}

// Stats counts entries per status.
func (q *Queue) Stats(_ context.Context) (scraper.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := scraper.QueueStats{}
	for _, e := range q.entries {
		stats[e.Status]++
	}
	return stats, nil
}

func clone(e *scraper.QueueEntry) scraper.QueueEntry {
	out := *e
	if e.ResultSummary != nil {
		s := *e.ResultSummary
		out.ResultSummary = &s
	}
	return out
}
