package scraper

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHTTPStatusClassification verifies status codes map onto the taxonomy.
func TestHTTPStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code      int
		kind      Kind
		retryable bool
	}{
		{code: 404, kind: KindHTTP4xx, retryable: false},
		{code: 410, kind: KindHTTP4xx, retryable: false},
		{code: 408, kind: KindHTTP4xx, retryable: true},
		{code: 403, kind: KindBlocked, retryable: true},
		{code: 429, kind: KindBlocked, retryable: true},
		{code: 500, kind: KindHTTP5xx, retryable: true},
		{code: 503, kind: KindHTTP5xx, retryable: true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.code), func(t *testing.T) {
			t.Parallel()
			err := HTTPStatus("fetch", tc.code)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.retryable, IsRetryable(err))
		})
	}
}

// TestKindSurvivesWrapping ensures classification looks through fmt wrapping.
func TestKindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("commit: %w", DBTransient("tx", errors.New("40001")))
	assert.Equal(t, KindDBTransient, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ParseFailed("petition", errors.New("no text"))))
	assert.Empty(t, KindOf(errors.New("plain")))
}

// TestPlanRetryExhaustion walks a persistent 5xx through the default retry budget.
func TestPlanRetryExhaustion(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := HTTPStatus("fetch", 500)
	for retry := 0; retry < DefaultMaxRetries; retry++ {
		plan := PlanRetry(err, retry, DefaultMaxRetries, now)
		require.True(t, plan.Retry, "attempt with retryCount=%d should re-pend", retry)
		assert.Equal(t, now.Add(RetryDelay), plan.NextAttemptAt)
	}
	assert.False(t, PlanRetry(err, DefaultMaxRetries, DefaultMaxRetries, now).Retry)
}

// TestPlanRetryBlockedBackoff checks the exponential schedule for blocked fetches.
func TestPlanRetryBlockedBackoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := HTTPStatus("fetch", 429)
	assert.Equal(t, now.Add(30*time.Second), PlanRetry(err, 0, 5, now).NextAttemptAt)
	assert.Equal(t, now.Add(60*time.Second), PlanRetry(err, 1, 5, now).NextAttemptAt)
	assert.Equal(t, now.Add(120*time.Second), PlanRetry(err, 2, 5, now).NextAttemptAt)
}

// TestPlanRetryOnce verifies ssl and ocr failures only retry once.
func TestPlanRetryOnce(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, err := range []error{SSL("fetch", errors.New("x509")), OCRFailed("ocr", errors.New("both failed"))} {
		assert.True(t, PlanRetry(err, 0, 3, now).Retry)
		assert.False(t, PlanRetry(err, 1, 3, now).Retry)
	}
	assert.False(t, PlanRetry(HTTPStatus("fetch", 404), 0, 3, now).Retry)
}

func TestOutcomeResolvedReview(t *testing.T) {
	t.Parallel()

	o := Outcome{
		Review:       &MatchQueueItem{CandidateCanonicalIDs: []int64{0, 9}},
		ReviewSameAs: map[int]int{0: 1},
	}
	item, err := o.ResolvedReview(2, []int64{5, 6, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 9}, item.CandidateCanonicalIDs)
	assert.Equal(t, []int64{0, 9}, o.Review.CandidateCanonicalIDs)

	_, err = o.ResolvedReview(1, []int64{5, 0})
	require.Error(t, err)
	assert.Equal(t, KindDBFatal, KindOf(err))

	_, err = o.ResolvedReview(2, []int64{5, 0, 0})
	require.Error(t, err, "slot filled by an outcome that produced no canonical")
}
