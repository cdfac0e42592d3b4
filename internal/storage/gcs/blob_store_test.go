package gcs_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/gcs"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newClient(t *testing.T, fn roundTripperFunc) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: fn}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func respond(r *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    r,
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client := newClient(t, func(r *http.Request) (*http.Response, error) { return respond(r, 200, `{}`), nil })
	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		uploaded []byte
	)
	client := newClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/b/archive-bucket/o")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		mu.Lock()
		uploaded = body
		mu.Unlock()
		return respond(r, http.StatusOK, `{"name":"archives/census/abc.html","bucket":"archive-bucket"}`), nil
	})

	store, err := gcs.New(client, gcs.Config{Bucket: "archive-bucket"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "archives/census/abc.html", "text/html", bytes.NewReader([]byte("<html>1860</html>")))
	require.NoError(t, err)
	assert.Equal(t, "gs://archive-bucket/archives/census/abc.html", uri)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, string(uploaded), "<html>1860</html>")
}

func TestPutObjectRequiresKey(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(r *http.Request) (*http.Response, error) { return respond(r, 200, `{}`), nil })
	store, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestGetObjectNotFound(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(r *http.Request) (*http.Response, error) {
		return respond(r, http.StatusNotFound, ``), nil
	})
	store, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)

	_, err = store.GetObject(context.Background(), "missing.pdf")
	require.ErrorIs(t, err, scraper.ErrNotFound)
}

func TestCheckReportsBucketErrors(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(r *http.Request) (*http.Response, error) {
		return respond(r, http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`), nil
	})
	store, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)

	err = store.Check(context.Background())
	require.ErrorContains(t, err, `bucket "b"`)
}
