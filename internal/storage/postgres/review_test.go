package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

var reviewCols = []string{
	"id", "unconfirmed_name", "unconfirmed_person_id", "candidate_canonical_ids", "candidate_scores",
	"location_context", "priority", "status", "resolution", "resolved_by", "resolved_at", "created_at",
}

func TestListReviews(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM name_match_queue").
		WithArgs("pending", 50).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(
			int64(1), "John Smith", "lead-1", []int64{4, 5}, []float64{0.7, 0.7},
			"", 70, "pending", "", "", nil, created,
		))

	items, err := store.ListReviews(context.Background(), scraper.MatchPending, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []int64{4, 5}, items[0].CandidateCanonicalIDs)
	assert.Equal(t, scraper.MatchPending, items[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReviewLinksExisting(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "lead"}).AddRow("pending", "lead-1"))
	mock.ExpectExec("INSERT INTO name_variants").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE unconfirmed_persons SET status = 'linked'").
		WithArgs("lead-1", int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE name_match_queue").
		WithArgs(int64(3), "linked_existing", "ops", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.ApplyReview(context.Background(), scraper.ReviewDecision{
		ItemID:      3,
		Resolution:  scraper.ResolutionLinkedExisting,
		CanonicalID: 9,
		Variant:     &scraper.NameVariant{VariantName: "John Smith"},
		ResolvedBy:  "ops",
		ResolvedAt:  now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReviewRejectsResolvedItems(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "lead"}).AddRow("resolved", "lead-1"))
	mock.ExpectRollback()

	err := store.ApplyReview(context.Background(), scraper.ReviewDecision{ItemID: 3, Resolution: scraper.ResolutionNotAPerson})
	require.ErrorIs(t, err, scraper.ErrAlreadyResolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReviewMarksNotAPerson(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(pgxmock.NewRows([]string{"status", "lead"}).AddRow("pending", "lead-2"))
	mock.ExpectExec("UPDATE unconfirmed_persons SET status = 'rejected'").
		WithArgs("lead-2", "not_a_person").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE name_match_queue").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.ApplyReview(context.Background(), scraper.ReviewDecision{ItemID: 4, Resolution: scraper.ResolutionNotAPerson})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
