package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/readyz-test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing-test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	for _, path := range []string{"/readyz-test", "/missing-test"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")))
	assert.Positive(t, testutil.CollectAndCount(httpRequestDurationSecs))
}
