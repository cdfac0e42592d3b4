package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func TestBlobStoreRoundTripCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "archives/census/ab.html", "text/html", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, "memory://archives/census/ab.html", uri)

	got, err := store.GetObject(context.Background(), "archives/census/ab.html")
	require.NoError(t, err)
	got[0] = 'C'

	again, err := store.GetObject(context.Background(), "archives/census/ab.html")
	require.NoError(t, err)
	assert.Equal(t, "content", string(again))
	assert.Equal(t, []string{"archives/census/ab.html"}, store.Keys())
}

func TestBlobStoreMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "nope")
	require.ErrorIs(t, err, scraper.ErrNotFound)
}
