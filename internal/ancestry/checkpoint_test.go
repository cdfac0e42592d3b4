package ancestry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCheckpointsRoundTrip(t *testing.T) {
	t.Parallel()

	cps, err := OpenCheckpoints(filepath.Join(t.TempDir(), "ancestry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cps.Close() })

	ctx := context.Background()
	_, ok, err := cps.Load(ctx, "R")
	require.NoError(t, err)
	assert.False(t, ok)

	f := NewFrontier("R")
	f.push(f.Queue[0], "F")
	f.Visits = 1
	f.Matches = []Match{{FSID: "F", CanonicalID: 7, Score: 0.95, Path: []string{"R", "F"}}}
	require.NoError(t, cps.Save(ctx, f))

	f.Done = true
	require.NoError(t, cps.Save(ctx, f))

	got, ok, err := cps.Load(ctx, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestFrontierPushDeduplicates(t *testing.T) {
	t.Parallel()

	f := NewFrontier("R")
	root := f.Queue[0]
	assert.True(t, f.push(root, "F"))
	assert.False(t, f.push(root, "F"))
	assert.False(t, f.push(root, "R"))
	assert.False(t, f.push(root, ""))
	require.Len(t, f.Queue, 2)
	assert.Equal(t, Node{FSID: "F", Depth: 1, Path: []string{"R", "F"}}, f.Queue[1])
	assert.Equal(t, []string{"R"}, root.Path)
}
