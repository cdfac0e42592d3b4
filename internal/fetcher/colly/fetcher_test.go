package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func newServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchReturnsBodyAndCookies(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		session, err := r.Cookie("session")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", session.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "seen", Value: "1", Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><title>Will</title></html>")
	}))

	f := New(Config{UserAgent: "test-agent", MaxBytes: 1 << 20})
	res, err := f.Fetch(context.Background(), fetcher.Request{
		URL:     srv.URL + "/doc",
		Cookies: []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Response.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Response.ContentType)
	assert.Contains(t, string(res.Response.Body), "Will")
	assert.Equal(t, srv.URL+"/doc", res.Response.FinalURL)
	require.Len(t, res.Cookies, 1)
	assert.Equal(t, "seen", res.Cookies[0].Name)
	assert.Equal(t, "127.0.0.1", res.Cookies[0].Domain)
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "final")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := newServer(t, mux)

	f := New(Config{MaxBytes: 1 << 20, MaxRedirects: 3})
	res, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + "/a"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/b", res.Response.FinalURL)
	assert.Equal(t, "final", string(res.Response.Body))

	_, err = f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + "/loop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

type hostLog struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (h *hostLog) Wait(_ context.Context, rawURL string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, rawURL)
	return h.err
}

func TestFetchPacesRedirectHops(t *testing.T) {
	t.Parallel()

	target := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "register page")
	}))
	origin := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/ark/1", http.StatusFound)
	}))

	log := &hostLog{}
	f := New(Config{MaxBytes: 1 << 20, Limiter: log})
	res, err := f.Fetch(context.Background(), fetcher.Request{URL: origin.URL + "/short"})
	require.NoError(t, err)
	assert.Equal(t, target.URL+"/ark/1", res.Response.FinalURL)
	assert.Equal(t, []string{target.URL + "/ark/1"}, log.urls, "only the hop is paced here")

	log.err = errors.New("host wait aborted")
	_, err = f.Fetch(context.Background(), fetcher.Request{URL: origin.URL + "/short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host wait aborted")
}

func TestFetchClassifiesStatus(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			http.Error(w, "gone", http.StatusNotFound)
		case "/busy":
			http.Error(w, "busy", http.StatusServiceUnavailable)
		default:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}
	}))
	f := New(Config{MaxBytes: 1 << 20})

	cases := map[string]scraper.Kind{
		"/gone":    scraper.KindHTTP4xx,
		"/busy":    scraper.KindHTTP5xx,
		"/limited": scraper.KindBlocked,
	}
	for path, kind := range cases {
		res, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + path})
		require.Error(t, err, path)
		assert.Equal(t, kind, scraper.KindOf(err), path)
		assert.NotZero(t, res.Response.StatusCode, path)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	f := New(Config{MaxBytes: 10})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, scraper.KindTooLarge, scraper.KindOf(err))
	assert.False(t, scraper.IsRetryable(err))
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	f := New(Config{MaxBytes: 1 << 20, Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, scraper.KindTimeout, scraper.KindOf(err))
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{MaxBytes: 1 << 20}).Fetch(context.Background(), fetcher.Request{URL: addr})
	require.Error(t, err)
	assert.True(t, scraper.IsRetryable(err))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxBytes: 8})
	v := &visit{start: time.Now(), finalURL: "https://example.com/x"}
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, v)
	require.NotNil(t, hooks.onHeaders)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"Set-Cookie": {"a=1; Path=/"}, "Content-Type": {"text/plain"}},
	})
	res, err := v.finish(8)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", res.Response.ContentType)
	require.Len(t, res.Cookies, 1)
	assert.Equal(t, "example.com", res.Cookies[0].Domain)

	hooks.onError(nil, errors.New("boom"))
	_, err = v.finish(8)
	assert.Equal(t, scraper.KindTransport, scraper.KindOf(err))
}

type stubHooks struct {
	onHeaders  colly.ResponseHeadersCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponseHeaders(cb colly.ResponseHeadersCallback) {
	s.onHeaders = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
