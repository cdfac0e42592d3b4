package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{EntryID: 7, TS: now, Stage: progress.StageEntryStart},
		{
			EntryID:     7,
			TS:          now.Add(2 * time.Second),
			Stage:       progress.StageFetch,
			Site:        "example.com",
			Bytes:       1024,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{EntryID: 7, TS: now.Add(3 * time.Second), Stage: progress.StageParse, Count: 4},
		{EntryID: 7, TS: now.Add(15 * time.Second), Stage: progress.StageEntryDone, Dur: 15 * time.Second},
		{EntryID: 8, TS: now, Stage: progress.StageEntryStart},
		{EntryID: 8, TS: now.Add(time.Second), Stage: progress.StageEntryRetry, Dur: time.Second, Note: "timeout"},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.entriesStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.entriesFinished.WithLabelValues("completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.entriesFinished.WithLabelValues("retried")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.entriesFinished.WithLabelValues("failed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.entriesRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stageEvents.WithLabelValues("PARSE")))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("example.com", string(progress.Status2xx))),
		1e-9,
	)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "scraper_status_fetch_duration_seconds"))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register status collector")
}
