// Package postgres implements the durable work queue on the scraping_queue table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
	pgstore "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/postgres"
)

const entryColumns = `id, url, category, priority, status, fetch_mode, submitted_at, started_at, completed_at,
	next_attempt_at, retry_count, max_retries, error_message, result_summary`

const (
	enqueueSQL = `
WITH existing AS (
	SELECT id FROM scraping_queue WHERE url = $1 AND status = 'pending' LIMIT 1
), inserted AS (
	INSERT INTO scraping_queue (url, category, priority, status, fetch_mode, submitted_at, retry_count, max_retries)
	SELECT $1, $2, $3, 'pending', $4, $5, 0, $6
	WHERE NOT EXISTS (SELECT 1 FROM existing)
	RETURNING id
)
SELECT id FROM inserted
UNION ALL
SELECT id FROM existing`

	claimSQL = `
UPDATE scraping_queue SET status = 'processing', started_at = $1, completed_at = NULL
WHERE id = (
	SELECT id FROM scraping_queue
	WHERE status = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
	ORDER BY priority DESC, submitted_at, id
	LIMIT 1
	FOR UPDATE SKIP LOCKED
) AND status = 'pending'
RETURNING ` + entryColumns

	lockProcessingSQL = `
SELECT retry_count, max_retries FROM scraping_queue WHERE id = $1 AND status = 'processing' FOR UPDATE`

	retrySQL = `
UPDATE scraping_queue
SET status = 'pending', retry_count = retry_count + 1, next_attempt_at = $2, error_message = $3
WHERE id = $1`

	failSQL = `
UPDATE scraping_queue
SET status = 'failed', completed_at = $2, error_message = $3, result_summary = $4, next_attempt_at = NULL
WHERE id = $1`

	reclaimSQL = `
UPDATE scraping_queue SET status = 'pending', started_at = NULL
WHERE status = 'processing' AND started_at < $1`

	requeueSQL = `
UPDATE scraping_queue
SET status = 'pending', retry_count = 0, started_at = NULL, completed_at = NULL, next_attempt_at = NULL, submitted_at = $2
WHERE id = $1 AND status IN ('completed', 'failed')`

	getSQL = `SELECT ` + entryColumns + ` FROM scraping_queue WHERE id = $1`

	statsSQL = `SELECT status, count(*) FROM scraping_queue GROUP BY status`
)

// Queue implements scraper.Queue on Postgres.
type Queue struct {
	pool pgstore.Pool
	now  func() time.Time
}

// New wraps a pool.
func New(pool pgstore.Pool) (*Queue, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Queue{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Enqueue inserts entries. A URL already pending returns its existing ID.
func (q *Queue) Enqueue(ctx context.Context, entries []scraper.NewEntry) ([]int64, error) {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			return ids, fmt.Errorf("url is required")
		}
		category := e.Category
		if category == "" {
			category = scraper.DefaultCategory
		}
		maxRetries := e.MaxRetries
		if maxRetries <= 0 {
			maxRetries = scraper.DefaultMaxRetries
		}
		var id int64
		err := q.pool.QueryRow(ctx, enqueueSQL,
			url, category, e.Priority, string(e.FetchMode.Normalize()), q.now(), maxRetries,
		).Scan(&id)
		if err != nil {
			return ids, pgstore.Classify("enqueue", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Claim atomically moves the best ready entry to processing. Competing
// workers skip rows another transaction holds, so a row is claimed once.
func (q *Queue) Claim(ctx context.Context, now time.Time) (scraper.QueueEntry, error) {
	e, err := scanEntry(q.pool.QueryRow(ctx, claimSQL, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.QueueEntry{}, scraper.ErrQueueEmpty
	}
	if err != nil {
		return scraper.QueueEntry{}, pgstore.Classify("claim", err)
	}
	return e, nil
}

// Fail records a failed attempt. The retry decision uses the row's counters
// under a lock, not the caller's copy.
func (q *Queue) Fail(
	ctx context.Context,
	entry scraper.QueueEntry,
	cause error,
	summary scraper.ResultSummary,
	now time.Time,
) (_ scraper.QueueStatus, err error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return "", pgstore.Classify("begin fail", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var retryCount, maxRetries int
	if err := tx.QueryRow(ctx, lockProcessingSQL, entry.ID).Scan(&retryCount, &maxRetries); err != nil {
		return "", pgstore.Classify(fmt.Sprintf("lock entry %d", entry.ID), err)
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	status := scraper.StatusFailed
	plan := scraper.PlanRetry(cause, retryCount, maxRetries, now)
	if plan.Retry {
		status = scraper.StatusPending
		if _, err := tx.Exec(ctx, retrySQL, entry.ID, plan.NextAttemptAt, msg); err != nil {
			return "", pgstore.Classify("retry entry", err)
		}
	} else {
		raw, err := json.Marshal(summary)
		if err != nil {
			return "", fmt.Errorf("marshal summary: %w", err)
		}
		if _, err := tx.Exec(ctx, failSQL, entry.ID, now, msg, raw); err != nil {
			return "", pgstore.Classify("fail entry", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", pgstore.Classify("commit fail", err)
	}
	return status, nil
}

// ReclaimStale reverts processing entries claimed before olderThan.
func (q *Queue) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := q.pool.Exec(ctx, reclaimSQL, olderThan)
	if err != nil {
		return 0, pgstore.Classify("reclaim stale", err)
	}
	return tag.RowsAffected(), nil
}

// Requeue revives a completed or failed entry.
func (q *Queue) Requeue(ctx context.Context, id int64) error {
	tag, err := q.pool.Exec(ctx, requeueSQL, id, q.now())
	if err != nil {
		return pgstore.Classify("requeue", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	e, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("entry %d is %s, not completed or failed", id, e.Status)
}

// Get loads one entry.
func (q *Queue) Get(ctx context.Context, id int64) (scraper.QueueEntry, error) {
	e, err := scanEntry(q.pool.QueryRow(ctx, getSQL, id))
	if err != nil {
		return scraper.QueueEntry{}, pgstore.Classify(fmt.Sprintf("get entry %d", id), err)
	}
	return e, nil
}

// Stats counts entries per status.
func (q *Queue) Stats(ctx context.Context) (scraper.QueueStats, error) {
	rows, err := q.pool.Query(ctx, statsSQL)
	if err != nil {
		return nil, pgstore.Classify("stats", err)
	}
	defer rows.Close()

	stats := scraper.QueueStats{}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, pgstore.Classify("scan stats", err)
		}
		stats[scraper.QueueStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, pgstore.Classify("stats", err)
	}
	return stats, nil
}

func scanEntry(row pgx.Row) (scraper.QueueEntry, error) {
	var (
		e                 scraper.QueueEntry
		status, fetchMode string
		errMsg            *string
		summary           []byte
	)
	err := row.Scan(
		&e.ID, &e.URL, &e.Category, &e.Priority, &status, &fetchMode, &e.SubmittedAt,
		&e.StartedAt, &e.CompletedAt, &e.NextAttemptAt, &e.RetryCount, &e.MaxRetries, &errMsg, &summary,
	)
	if err != nil {
		return scraper.QueueEntry{}, err
	}
	e.Status = scraper.QueueStatus(status)
	e.FetchMode = scraper.FetchMode(fetchMode).Normalize()
	if errMsg != nil {
		e.ErrorMessage = *errMsg
	}
	if len(summary) > 0 {
		var s scraper.ResultSummary
		if err := json.Unmarshal(summary, &s); err != nil {
			return scraper.QueueEntry{}, fmt.Errorf("decode result summary: %w", err)
		}
		e.ResultSummary = &s
	}
	return e, nil
}
