package sha256

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	assert.Equal(t, want, h.Hash([]byte("hello world")))
	assert.Equal(t, want, h.Hash([]byte("hello world")))

	streamed, err := h.HashReader(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, want, streamed)
}

func TestHasherDistinguishesContent(t *testing.T) {
	t.Parallel()

	h := New()
	assert.NotEqual(t, h.Hash([]byte("Petition of John Smith")), h.Hash([]byte("Petition of John Smith.")))
	assert.Len(t, h.Hash(nil), 64)
}
