package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesConcurrentFetchesToOneHost(t *testing.T) {
	t.Parallel()

	const delay = 100 * time.Millisecond
	l := New(delay)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		starts []time.Time
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background(), "https://example.org/doc/1"))
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, starts, 2)
	gap := starts[1].Sub(starts[0])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, delay-10*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(time.Second)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://a.example.org/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.org/1"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	require.NoError(t, l.Wait(context.Background(), "https://example.org/"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://EXAMPLE.org/other"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.org", Host("https://Example.org:8443/a"))
	assert.Equal(t, "unknown", Host("::"))
}
