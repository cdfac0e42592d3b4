package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const reviewColumns = `id, unconfirmed_name, COALESCE(unconfirmed_person_id, ''),
	candidate_canonical_ids, candidate_scores, COALESCE(location_context, ''), priority,
	status, COALESCE(resolution, ''), COALESCE(resolved_by, ''), resolved_at, created_at`

const (
	listReviewsSQL = `
SELECT ` + reviewColumns + `
FROM name_match_queue
WHERE ($1 = '' OR status = $1)
ORDER BY priority DESC, created_at
LIMIT $2`

	getReviewSQL = `SELECT ` + reviewColumns + ` FROM name_match_queue WHERE id = $1`

	getUnconfirmedSQL = `
SELECT lead_id, full_name, person_type, source_url, COALESCE(source_page_title, ''), COALESCE(context_text, ''),
	locations, gender, birth_year, confidence_score, status, canonical_person_id,
	COALESCE(rejection_reason, ''), COALESCE(extraction_method, '')
FROM unconfirmed_persons
WHERE lead_id = $1`

	getCanonicalsSQL = `SELECT ` + canonicalColumns + ` FROM canonical_persons WHERE id = ANY($1) ORDER BY id`

	lockReviewSQL = `SELECT status, COALESCE(unconfirmed_person_id, '') FROM name_match_queue WHERE id = $1 FOR UPDATE`

	linkUnconfirmedSQL = `UPDATE unconfirmed_persons SET status = 'linked', canonical_person_id = $2 WHERE lead_id = $1`

	rejectUnconfirmedSQL = `UPDATE unconfirmed_persons SET status = 'rejected', rejection_reason = $2 WHERE lead_id = $1`

	resolveReviewSQL = `
UPDATE name_match_queue
SET status = 'resolved', resolution = $2, resolved_by = $3, resolved_at = $4
WHERE id = $1`
)

// ListReviews returns review items, highest priority first. An empty status lists all.
func (s *Store) ListReviews(ctx context.Context, status scraper.MatchStatus, limit int) ([]scraper.MatchQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, listReviewsSQL, string(status), limit)
	if err != nil {
		return nil, Classify("list reviews", err)
	}
	defer rows.Close()

	var out []scraper.MatchQueueItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, Classify("scan review", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("list reviews", err)
	}
	return out, nil
}

func scanReview(row pgx.Row) (scraper.MatchQueueItem, error) {
	var (
		item               scraper.MatchQueueItem
		status, resolution string
	)
	err := row.Scan(
		&item.ID, &item.UnconfirmedName, &item.UnconfirmedPersonID,
		&item.CandidateCanonicalIDs, &item.CandidateScores, &item.LocationContext, &item.Priority,
		&status, &resolution, &item.ResolvedBy, &item.ResolvedAt, &item.CreatedAt,
	)
	if err != nil {
		return scraper.MatchQueueItem{}, err
	}
	item.Status = scraper.MatchStatus(status)
	item.Resolution = scraper.Resolution(resolution)
	return item, nil
}

// GetReview loads an item with its unconfirmed person and candidate canonicals.
func (s *Store) GetReview(ctx context.Context, id int64) (scraper.ReviewDetail, error) {
	item, err := scanReview(s.pool.QueryRow(ctx, getReviewSQL, id))
	if err != nil {
		return scraper.ReviewDetail{}, Classify(fmt.Sprintf("get review %d", id), err)
	}
	detail := scraper.ReviewDetail{Item: item}

	if item.UnconfirmedPersonID != "" {
		u, err := scanUnconfirmed(s.pool.QueryRow(ctx, getUnconfirmedSQL, item.UnconfirmedPersonID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return scraper.ReviewDetail{}, Classify("get unconfirmed", err)
		default:
			detail.Unconfirmed = &u
		}
	}

	if len(item.CandidateCanonicalIDs) > 0 {
		rows, err := s.pool.Query(ctx, getCanonicalsSQL, item.CandidateCanonicalIDs)
		if err != nil {
			return scraper.ReviewDetail{}, Classify("get candidates", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCanonical(rows)
			if err != nil {
				return scraper.ReviewDetail{}, Classify("scan candidate", err)
			}
			detail.Candidates = append(detail.Candidates, c)
		}
		if err := rows.Err(); err != nil {
			return scraper.ReviewDetail{}, Classify("get candidates", err)
		}
	}
	return detail, nil
}

func scanUnconfirmed(row pgx.Row) (scraper.UnconfirmedPerson, error) {
	var (
		u                  scraper.UnconfirmedPerson
		personType, status string
		sex                *string
	)
	err := row.Scan(
		&u.LeadID, &u.FullName, &personType, &u.SourceURL, &u.SourcePageTitle, &u.ContextText,
		&u.Locations, &sex, &u.BirthYear, &u.Confidence, &status, &u.CanonicalPersonID,
		&u.RejectionReason, &u.ExtractionMethod,
	)
	if err != nil {
		return scraper.UnconfirmedPerson{}, err
	}
	u.PersonType = scraper.PersonType(personType)
	u.Status = scraper.UnconfirmedStatus(status)
	if sex != nil {
		v := scraper.Sex(*sex)
		u.Sex = &v
	}
	return u, nil
}

// ApplyReview locks the item row, checks it is still pending and writes the decision.
func (s *Store) ApplyReview(ctx context.Context, d scraper.ReviewDecision) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Classify("begin review", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var status, leadID string
	if err := tx.QueryRow(ctx, lockReviewSQL, d.ItemID).Scan(&status, &leadID); err != nil {
		return Classify(fmt.Sprintf("lock review %d", d.ItemID), err)
	}
	if scraper.MatchStatus(status) != scraper.MatchPending {
		return scraper.ErrAlreadyResolved
	}

	switch d.Resolution {
	case scraper.ResolutionLinkedExisting, scraper.ResolutionCreatedNew:
		canonicalID := d.CanonicalID
		if d.NewCanonical != nil {
			if canonicalID, err = insertCanonical(ctx, tx, *d.NewCanonical); err != nil {
				return err
			}
		}
		if d.Variant != nil {
			if _, err := insertVariant(ctx, tx, canonicalID, *d.Variant); err != nil {
				return err
			}
		}
		if leadID != "" {
			if _, err := tx.Exec(ctx, linkUnconfirmedSQL, leadID, canonicalID); err != nil {
				return Classify("link unconfirmed", err)
			}
		}
	case scraper.ResolutionMarkedDuplicate, scraper.ResolutionNotAPerson:
		if leadID != "" {
			if _, err := tx.Exec(ctx, rejectUnconfirmedSQL, leadID, string(d.Resolution)); err != nil {
				return Classify("reject unconfirmed", err)
			}
		}
	default:
		return fmt.Errorf("unknown resolution %q", d.Resolution)
	}

	if _, err := tx.Exec(ctx, resolveReviewSQL, d.ItemID, string(d.Resolution), d.ResolvedBy, d.ResolvedAt); err != nil {
		return Classify("resolve review", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify("commit review", err)
	}
	return nil
}
