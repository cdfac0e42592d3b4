package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://FamilySearch.org/ark:/61903", "familysearch.org"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserversInitialiseLazily(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(resolutionsTotal.WithLabelValues("link"))
	ObserveResolution("link")
	assert.Equal(t, before+1, testutil.ToFloat64(resolutionsTotal.WithLabelValues("link")))

	before = testutil.ToFloat64(fetchBytesTotal.WithLabelValues("example.org"))
	ObserveFetch("https://example.org/doc/1", "plain", "200", 512)
	assert.Equal(t, before+512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("example.org")))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://www.familysearch.org", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
