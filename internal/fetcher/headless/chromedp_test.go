package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer fetcher.Close()
	assert.Equal(t, 2, cap(fetcher.limiter))
	assert.Equal(t, 500*time.Millisecond, fetcher.cfg.SettleDelay)
}

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	assert.Equal(t, 45*time.Second, fetcher.navTimeout())
	fetcher.cfg.NavigationTimeout = time.Second
	assert.Equal(t, time.Second, fetcher.navTimeout())
}

func TestCookieConversion(t *testing.T) {
	t.Parallel()

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	params := toCookieParams("https://www.familysearch.org/ark:/1", []*http.Cookie{
		{Name: "fssessionid", Value: "s1", Domain: ".familysearch.org", Path: "/", Secure: true, Expires: expires},
		{Name: "host_only", Value: "v"},
		nil,
	})
	require.Len(t, params, 2)
	assert.Equal(t, ".familysearch.org", params[0].Domain)
	assert.Empty(t, params[0].URL)
	require.NotNil(t, params[0].Expires)
	assert.True(t, params[0].Expires.Time().Equal(expires))
	assert.Equal(t, "https://www.familysearch.org/ark:/1", params[1].URL)
	assert.Nil(t, params[1].Expires)

	back := fromNetworkCookies([]*network.Cookie{
		{Name: "fssessionid", Value: "s2", Domain: ".familysearch.org", Path: "/", Expires: float64(expires.Unix()), HTTPOnly: true},
		{Name: "tmp", Value: "x", Session: true, Expires: -1},
	})
	require.Len(t, back, 2)
	assert.Equal(t, "s2", back[0].Value)
	assert.True(t, back[0].HttpOnly)
	assert.True(t, back[0].Expires.Equal(expires))
	assert.True(t, back[1].Expires.IsZero())
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		RequestID: "doc-1",
		Type:      network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  404,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "abc", headers.Get("X-Request-ID"))
	assert.Equal(t, "https://example.com/rendered", url)
	assert.Equal(t, network.RequestID("doc-1"), meta.requestID())

	meta.capture(&network.EventResponseReceived{RequestID: "img-1", Type: network.ResourceTypeImage, Response: &network.Response{Status: 200}})
	assert.Equal(t, network.RequestID("doc-1"), meta.requestID())

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://final", url)
}

func TestResponseBodyRequiresDocumentRequest(t *testing.T) {
	t.Parallel()

	_, err := responseBody(context.Background(), "")
	require.Error(t, err)
}

func TestCloneHeader(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	assert.Len(t, src["X-Test"], 2)
	assert.Nil(t, cloneHeader(nil))
}
