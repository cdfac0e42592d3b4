package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const (
	dueForVerificationSQL = `
SELECT id, url, category, content_hash, content_type, storage_key, first_archived_at, last_verified_at, metadata
FROM (
	SELECT DISTINCT ON (url) *
	FROM archived_urls
	ORDER BY url, COALESCE(last_verified_at, first_archived_at) DESC, id DESC
) latest
WHERE COALESCE(last_verified_at, first_archived_at) < $1
ORDER BY COALESCE(last_verified_at, first_archived_at)
LIMIT NULLIF($2, 0)`

	markVerifiedSQL = `UPDATE archived_urls SET last_verified_at = $2 WHERE id = $1`

	reobserveSnapshotSQL = `
UPDATE archived_urls SET last_verified_at = $3
WHERE url = $1 AND content_hash = $2`

	insertAlertSQL = `
INSERT INTO watchdog_alerts (archived_url_id, url, alert_type, previous_hash, current_hash, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
)

// DueForVerification returns the newest snapshot of each URL not checked since verifiedBefore.
// A limit of 0 returns every due URL.
func (s *Store) DueForVerification(ctx context.Context, verifiedBefore time.Time, limit int) ([]scraper.ArchivedURL, error) {
	rows, err := s.pool.Query(ctx, dueForVerificationSQL, verifiedBefore, limit)
	if err != nil {
		return nil, Classify("due for verification", err)
	}
	defer rows.Close()

	var out []scraper.ArchivedURL
	for rows.Next() {
		a, err := scanSnapshot(rows)
		if err != nil {
			return nil, Classify("scan snapshot", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("due for verification", err)
	}
	return out, nil
}

// MarkVerified stamps a snapshot as checked.
func (s *Store) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, markVerifiedSQL, id, at)
	if err != nil {
		return Classify("mark verified", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("snapshot %d: %w", id, scraper.ErrNotFound)
	}
	return nil
}

// RecordChange inserts the new snapshot and its content_changed alert in one
// transaction. Bytes that match an earlier snapshot of the URL re-verify that
// row instead, which makes it the latest again.
func (s *Store) RecordChange(ctx context.Context, snapshot scraper.ArchivedURL, alert scraper.WatchdogAlert) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Classify("begin record change", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	id, err := insertSnapshot(ctx, tx, snapshot)
	if err != nil {
		return err
	}
	if id == 0 {
		if _, err = tx.Exec(ctx, reobserveSnapshotSQL, snapshot.URL, snapshot.ContentHash, snapshot.FirstArchivedAt); err != nil {
			return Classify("reobserve snapshot", err)
		}
	}
	if err = insertAlert(ctx, tx, alert); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return Classify("commit record change", err)
	}
	return nil
}

// RecordAlert stores a watchdog alert.
func (s *Store) RecordAlert(ctx context.Context, alert scraper.WatchdogAlert) error {
	return insertAlert(ctx, s.pool, alert)
}

func insertAlert(ctx context.Context, q querier, a scraper.WatchdogAlert) error {
	if _, err := q.Exec(ctx, insertAlertSQL,
		a.ArchivedURLID, a.URL, string(a.Type), a.PreviousHash, a.CurrentHash, a.Detail, a.CreatedAt,
	); err != nil {
		return Classify("insert alert", err)
	}
	return nil
}
