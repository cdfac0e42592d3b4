package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

type stubParser struct {
	name     string
	mentions []scraper.ExtractedMention
	err      error
	calls    int
}

func (s *stubParser) Name() string { return s.name }

func (s *stubParser) Parse(context.Context, scraper.Page) ([]scraper.ExtractedMention, error) {
	s.calls++
	return s.mentions, s.err
}

func TestRegistryFirstProducingParserWins(t *testing.T) {
	t.Parallel()

	skip := &stubParser{name: "skip", err: ErrNotApplicable}
	hit := &stubParser{name: "hit", mentions: []scraper.ExtractedMention{{RawName: "Peter"}}}
	never := &stubParser{name: "never", mentions: []scraper.ExtractedMention{{RawName: "Paul"}}}

	r := NewRegistry(nil, Options{})
	r.Register("test", skip, hit, never)

	page := scraper.Page{URL: "https://example.org/a", Title: "A page", Category: "TEST"}
	mentions, used, err := r.Parse(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "hit", used)
	require.Len(t, mentions, 1)
	assert.Equal(t, "https://example.org/a", mentions[0].SourceURL)
	assert.Equal(t, "A page", mentions[0].PageTitle)
	assert.Equal(t, "hit", mentions[0].ExtractionMethod)
	assert.Zero(t, never.calls)
}

func TestRegistryFailsOnlyWithoutMentions(t *testing.T) {
	t.Parallel()

	broken := &stubParser{name: "broken", err: errors.New("unexpected layout")}
	hit := &stubParser{name: "hit", mentions: []scraper.ExtractedMention{{RawName: "Peter"}}}

	r := NewRegistry(nil, Options{})
	r.Register("ok", broken, hit)
	r.Register("bad", broken)

	_, _, err := r.Parse(context.Background(), scraper.Page{Category: "ok"})
	require.NoError(t, err)

	_, _, err = r.Parse(context.Background(), scraper.Page{Category: "bad"})
	require.Error(t, err)
	assert.Equal(t, scraper.KindParseFailed, scraper.KindOf(err))
	assert.False(t, scraper.IsRetryable(err))
}

func TestRegistryGenericChain(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, Options{})
	mentions, used, err := r.Parse(context.Background(), petitionPage(petitionText))
	require.NoError(t, err)
	assert.Equal(t, "petition", used)
	assert.NotEmpty(t, mentions)

	unknown := petitionPage(petitionText)
	unknown.Category = "somewhere-new"
	_, used, err = r.Parse(context.Background(), unknown)
	require.NoError(t, err)
	assert.Equal(t, "petition", used)

	empty, used, err := r.Parse(context.Background(), petitionPage("no people mentioned"))
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Empty(t, used)
}
