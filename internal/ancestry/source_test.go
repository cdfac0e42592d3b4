package ancestry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

type stubFetcher struct {
	body []byte
	req  scraper.FetchRequest
}

func (s *stubFetcher) Fetch(_ context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	s.req = req
	return scraper.FetchResponse{URL: req.URL, StatusCode: 200, ContentType: "application/json", Body: s.body}, nil
}

func TestFetchSourcePerson(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{body: []byte(`{"rootId":"KWJ1-ABC","persons":[
		{"id":"KWJ1-ABC","name":"Mary Jones","birthYear":1850,"fatherId":"KWJ1-F","motherId":"KWJ1-M"},
		{"id":"KWJ1-F","name":"John Carter"}]}`)}
	src := NewFetchSource(f, "https://tree.example/pedigree/%s?numGenerations=4")

	p, err := src.Person(context.Background(), "KWJ1-ABC")
	require.NoError(t, err)
	assert.Equal(t, "Mary Jones", p.Name)
	assert.Equal(t, "KWJ1-F", p.FatherID)
	assert.Equal(t, "https://tree.example/pedigree/KWJ1-ABC?numGenerations=4", f.req.URL)
	assert.True(t, f.req.NoArchive)
	assert.Equal(t, scraper.FetchModePlain, f.req.Mode)

	_, err = src.Person(context.Background(), "KWJ1-XYZ")
	assert.Equal(t, scraper.KindParseFailed, scraper.KindOf(err))
}
