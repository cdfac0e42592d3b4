package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		kind      scraper.Kind
		retryable bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, kind: scraper.KindDBTransient, retryable: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, kind: scraper.KindDBTransient, retryable: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, kind: scraper.KindDBFatal},
		{name: "cancelled", err: context.Canceled, kind: scraper.KindShutdown},
		{name: "other", err: errors.New("boom"), retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify("op", tt.err)
			assert.Equal(t, tt.kind, scraper.KindOf(got))
			assert.Equal(t, tt.retryable, scraper.IsRetryable(got))
		})
	}

	require.ErrorIs(t, Classify("get", pgx.ErrNoRows), scraper.ErrNotFound)
	assert.NoError(t, Classify("noop", nil))
}

func TestConnectRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Config{})
	require.EqualError(t, err, "db.url is required")
}
