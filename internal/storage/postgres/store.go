package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Store implements scraper.Store, scraper.ReviewStore and scraper.ArchiveRepository.
type Store struct {
	pool Pool
}

// NewStore wraps a pool.
func NewStore(pool Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return nil
}

const canonicalColumns = `id, canonical_name, first_name, COALESCE(middle_name, ''), last_name, COALESCE(suffix, ''),
	COALESCE(first_name_soundex, ''), COALESCE(last_name_soundex, ''),
	COALESCE(first_name_metaphone, ''), COALESCE(last_name_metaphone, ''),
	sex, birth_year_estimate, death_year_estimate,
	COALESCE(primary_state, ''), COALESCE(primary_county, ''),
	person_type, verification_status, confidence_score`

const findCandidatesSQL = `
SELECT ` + canonicalColumns + `
FROM canonical_persons
WHERE ($1 = 'ambiguous' OR person_type IN ($1, 'ambiguous'))
  AND (
	lower(canonical_name) = lower($2)
	OR ($3 <> '' AND substr(last_name_soundex, 2) = substr($3, 2))
	OR ($4 <> '' AND last_name_metaphone = $4)
	OR ($3 = '' AND COALESCE(last_name_soundex, '') = '' AND $5 <> '' AND substr(first_name_soundex, 2) = substr($5, 2))
  )
ORDER BY id
LIMIT $6`

// FindCandidates returns canonicals sharing a phonetic key or the full name.
// Soundex codes are compared on their digits so C636 meets K636.
func (s *Store) FindCandidates(ctx context.Context, q scraper.CandidateQuery) ([]scraper.CanonicalPerson, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, findCandidatesSQL,
		string(q.PersonType), q.FullName, q.LastSoundex, q.LastMetaphone, q.FirstSoundex, limit)
	if err != nil {
		return nil, Classify("find candidates", err)
	}
	defer rows.Close()

	var out []scraper.CanonicalPerson
	for rows.Next() {
		c, err := scanCanonical(rows)
		if err != nil {
			return nil, Classify("scan candidate", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("find candidates", err)
	}
	return out, nil
}

func scanCanonical(row pgx.Row) (scraper.CanonicalPerson, error) {
	var (
		c                  scraper.CanonicalPerson
		sex                *string
		personType, status string
	)
	err := row.Scan(
		&c.ID, &c.CanonicalName, &c.FirstName, &c.MiddleName, &c.LastName, &c.Suffix,
		&c.FirstSoundex, &c.LastSoundex, &c.FirstMetaphone, &c.LastMetaphone,
		&sex, &c.BirthYearEstimate, &c.DeathYearEstimate,
		&c.PrimaryState, &c.PrimaryCounty,
		&personType, &status, &c.Confidence,
	)
	if err != nil {
		return scraper.CanonicalPerson{}, err
	}
	if sex != nil {
		v := scraper.Sex(*sex)
		c.Sex = &v
	}
	c.PersonType = scraper.PersonType(personType)
	c.VerificationStatus = status
	return c, nil
}

const (
	insertSnapshotSQL = `
INSERT INTO archived_urls (url, category, content_hash, content_type, storage_key, first_archived_at, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url, content_hash) DO NOTHING
RETURNING id`

	insertCanonicalSQL = `
INSERT INTO canonical_persons (
	canonical_name, first_name, middle_name, last_name, suffix,
	first_name_soundex, last_name_soundex, first_name_metaphone, last_name_metaphone,
	sex, birth_year_estimate, death_year_estimate, primary_state, primary_county,
	person_type, verification_status, confidence_score
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING id`

	enrichCanonicalSQL = `
UPDATE canonical_persons SET
	primary_state = COALESCE(NULLIF(primary_state, ''), NULLIF($2, '')),
	primary_county = COALESCE(NULLIF(primary_county, ''), NULLIF($3, '')),
	birth_year_estimate = COALESCE(birth_year_estimate, $4),
	sex = COALESCE(sex, $5)
WHERE id = $1`

	insertVariantSQL = `
INSERT INTO name_variants (
	canonical_person_id, variant_name, source_url, source_type, match_method, match_confidence, levenshtein_distance
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (canonical_person_id, variant_name, source_url) DO NOTHING`

	insertUnconfirmedSQL = `
INSERT INTO unconfirmed_persons (
	lead_id, full_name, person_type, source_url, source_page_title, context_text,
	locations, relationships, gender, birth_year, confidence_score, status, extraction_method
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (lead_id) DO NOTHING`

	insertReviewSQL = `
INSERT INTO name_match_queue (
	unconfirmed_name, unconfirmed_person_id, candidate_canonical_ids, candidate_scores,
	location_context, priority, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,'pending',$7)`

	insertRelationshipSQL = `
INSERT INTO relationships (subject_id, object_id, relationship_type, source_url, confidence)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (subject_id, object_id, relationship_type, source_url) DO NOTHING`

	completeEntrySQL = `
UPDATE scraping_queue
SET status = 'completed', completed_at = $2, result_summary = $3, error_message = NULL, next_attempt_at = NULL
WHERE id = $1 AND status = 'processing'`
)

// Commit writes a URL pass in one transaction. Unique keys make replays no-ops.
func (s *Store) Commit(ctx context.Context, req scraper.CommitRequest) (_ scraper.CommitResult, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return scraper.CommitResult{}, Classify("begin commit", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	res := scraper.CommitResult{CanonicalIDs: make([]int64, len(req.Outcomes))}
	if req.Snapshot != nil {
		inserted, err := insertSnapshot(ctx, tx, *req.Snapshot)
		if err != nil {
			return scraper.CommitResult{}, err
		}
		res.SnapshotInserted = inserted > 0
	}

	for i, o := range req.Outcomes {
		if err := applyOutcome(ctx, tx, req, i, o, &res); err != nil {
			return scraper.CommitResult{}, err
		}
	}

	for _, r := range req.Relationships {
		if r.Subject < 0 || r.Subject >= len(res.CanonicalIDs) || r.Object < 0 || r.Object >= len(res.CanonicalIDs) {
			continue
		}
		subject, object := res.CanonicalIDs[r.Subject], res.CanonicalIDs[r.Object]
		if subject == 0 || object == 0 || (subject == object && !r.Type.AllowsSelf()) {
			continue
		}
		tag, err := tx.Exec(ctx, insertRelationshipSQL, subject, object, string(r.Type), req.SourceURL, r.Confidence)
		if err != nil {
			return scraper.CommitResult{}, Classify("insert relationship", err)
		}
		res.Relationships += int(tag.RowsAffected())
	}

	if req.Entry != nil {
		summary, err := json.Marshal(req.Summary)
		if err != nil {
			return scraper.CommitResult{}, fmt.Errorf("marshal summary: %w", err)
		}
		tag, err := tx.Exec(ctx, completeEntrySQL, req.Entry.ID, req.CompletedAt, summary)
		if err != nil {
			return scraper.CommitResult{}, Classify("complete entry", err)
		}
		if tag.RowsAffected() == 0 {
			return scraper.CommitResult{}, fmt.Errorf("complete entry %d: not processing: %w", req.Entry.ID, scraper.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return scraper.CommitResult{}, Classify("commit", err)
	}
	return res, nil
}

func applyOutcome(
	ctx context.Context,
	tx pgx.Tx,
	req scraper.CommitRequest,
	i int,
	o scraper.Outcome,
	res *scraper.CommitResult,
) error {
	switch o.Action {
	case scraper.ActionLink:
		id := o.CanonicalID
		if o.SameAs != nil {
			if *o.SameAs < 0 || *o.SameAs >= i {
				return scraper.DBFatal("commit", fmt.Errorf("outcome %d links to invalid index %d", i, *o.SameAs))
			}
			id = res.CanonicalIDs[*o.SameAs]
		}
		if e := o.Enrichment; e != nil {
			tag, err := tx.Exec(ctx, enrichCanonicalSQL, id, e.PrimaryState, e.PrimaryCounty, e.BirthYearEstimate, sexArg(e.Sex))
			if err != nil {
				return Classify("enrich canonical", err)
			}
			if tag.RowsAffected() == 0 {
				return scraper.DBFatal("enrich canonical", fmt.Errorf("canonical %d does not exist", id))
			}
		}
		if o.Variant != nil {
			n, err := insertVariant(ctx, tx, id, *o.Variant)
			if err != nil {
				return err
			}
			res.VariantsInserted += n
		}
		res.CanonicalIDs[i] = id
	case scraper.ActionCreate:
		if o.NewCanonical == nil {
			return scraper.DBFatal("commit", fmt.Errorf("outcome %d creates without a canonical", i))
		}
		id, err := insertCanonical(ctx, tx, *o.NewCanonical)
		if err != nil {
			return err
		}
		res.CanonicalCreated++
		if o.Variant != nil {
			n, err := insertVariant(ctx, tx, id, *o.Variant)
			if err != nil {
				return err
			}
			res.VariantsInserted += n
		}
		res.CanonicalIDs[i] = id
	case scraper.ActionReview, scraper.ActionUnconfirmed:
		if o.Unconfirmed == nil {
			return nil
		}
		inserted, err := insertUnconfirmed(ctx, tx, *o.Unconfirmed)
		if err != nil {
			return err
		}
		if !inserted || o.Review == nil {
			return nil
		}
		r, err := o.ResolvedReview(i, res.CanonicalIDs)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertReviewSQL,
			r.UnconfirmedName, r.UnconfirmedPersonID, r.CandidateCanonicalIDs, r.CandidateScores,
			r.LocationContext, r.Priority, req.CompletedAt,
		); err != nil {
			return Classify("insert review", err)
		}
	}
	return nil
}

func insertSnapshot(ctx context.Context, q querier, a scraper.ArchivedURL) (int64, error) {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	var id int64
	err = q.QueryRow(ctx, insertSnapshotSQL,
		a.URL, a.Category, a.ContentHash, a.ContentType, a.StorageKey, a.FirstArchivedAt, meta,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, Classify("insert snapshot", err)
	}
	return id, nil
}

func insertCanonical(ctx context.Context, q querier, c scraper.CanonicalPerson) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, insertCanonicalSQL,
		c.CanonicalName, c.FirstName, c.MiddleName, c.LastName, c.Suffix,
		c.FirstSoundex, c.LastSoundex, c.FirstMetaphone, c.LastMetaphone,
		sexArg(c.Sex), c.BirthYearEstimate, c.DeathYearEstimate, c.PrimaryState, c.PrimaryCounty,
		string(c.PersonType), c.VerificationStatus, c.Confidence,
	).Scan(&id)
	if err != nil {
		return 0, Classify("insert canonical", err)
	}
	return id, nil
}

func insertVariant(ctx context.Context, q querier, canonicalID int64, v scraper.NameVariant) (int, error) {
	tag, err := q.Exec(ctx, insertVariantSQL,
		canonicalID, v.VariantName, v.SourceURL, v.SourceType, v.MatchMethod, v.MatchConfidence, v.LevenshteinDistance,
	)
	if err != nil {
		return 0, Classify("insert variant", err)
	}
	return int(tag.RowsAffected()), nil
}

func insertUnconfirmed(ctx context.Context, q querier, u scraper.UnconfirmedPerson) (bool, error) {
	rels, err := json.Marshal(u.Relationships)
	if err != nil {
		return false, fmt.Errorf("marshal relationships: %w", err)
	}
	locations := u.Locations
	if locations == nil {
		locations = []string{}
	}
	tag, err := q.Exec(ctx, insertUnconfirmedSQL,
		u.LeadID, u.FullName, string(u.PersonType), u.SourceURL, u.SourcePageTitle, u.ContextText,
		locations, rels, sexArg(u.Sex), u.BirthYear, u.Confidence, string(u.Status), u.ExtractionMethod,
	)
	if err != nil {
		return false, Classify("insert unconfirmed", err)
	}
	return tag.RowsAffected() > 0, nil
}

func sexArg(s *scraper.Sex) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

const latestSnapshotSQL = `
SELECT id, url, category, content_hash, content_type, storage_key, first_archived_at, last_verified_at, metadata
FROM archived_urls
WHERE url = $1
ORDER BY COALESCE(last_verified_at, first_archived_at) DESC, id DESC
LIMIT 1`

// LatestSnapshot returns the most recently observed snapshot of url or scraper.ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, url string) (scraper.ArchivedURL, error) {
	a, err := scanSnapshot(s.pool.QueryRow(ctx, latestSnapshotSQL, url))
	if err != nil {
		return scraper.ArchivedURL{}, Classify("latest snapshot", err)
	}
	return a, nil
}

func scanSnapshot(row pgx.Row) (scraper.ArchivedURL, error) {
	var (
		a    scraper.ArchivedURL
		meta []byte
	)
	if err := row.Scan(
		&a.ID, &a.URL, &a.Category, &a.ContentHash, &a.ContentType, &a.StorageKey,
		&a.FirstArchivedAt, &a.LastVerifiedAt, &meta,
	); err != nil {
		return scraper.ArchivedURL{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return scraper.ArchivedURL{}, fmt.Errorf("decode snapshot metadata: %w", err)
		}
	}
	return a, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
