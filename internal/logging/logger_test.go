package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// TestNewLoggers confirms both logger variants build and log.
func TestNewLoggers(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready", EntryFields(scraper.QueueEntry{ID: 1, URL: "https://example.org"})...)
		_ = logger.Sync()
	}
}

// TestErrorFields checks classification fields for taxonomy errors.
func TestErrorFields(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ErrorFields(nil))
	fields := ErrorFields(scraper.HTTPStatus("fetch", 503))
	require.Len(t, fields, 3)
	assert.Equal(t, "error_kind", fields[1].Key)
	assert.Equal(t, "http_5xx", fields[1].String)
	assert.Equal(t, "retryable", fields[2].Key)
	assert.Equal(t, int64(1), fields[2].Integer)
}
