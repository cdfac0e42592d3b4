package login

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

var familySearch = fetcher.LoginPage{
	URL:      "https://ident.familysearch.org/en/identity/login/",
	Patterns: []string{"ident.familysearch.org", "/auth/"},
}

func TestWaitForExitReturnsFirstNonLoginURL(t *testing.T) {
	t.Parallel()

	urls := []string{
		"about:blank",
		"https://ident.familysearch.org/en/identity/login/",
		"https://www.familysearch.org/auth/familysearch/callback",
		"https://www.familysearch.org/en/home/portal/",
	}
	i := 0
	current := func() (string, error) {
		u := urls[i]
		if i < len(urls)-1 {
			i++
		}
		return u, nil
	}
	got, err := WaitForExit(context.Background(), familySearch, current, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "https://www.familysearch.org/en/home/portal/", got)
}

func TestWaitForExitTimesOutAsBlocked(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := WaitForExit(ctx, familySearch, func() (string, error) {
		return familySearch.URL, nil
	}, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, scraper.KindBlocked, scraper.KindOf(err))
}

func TestWaitForExitCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitForExit(ctx, familySearch, func() (string, error) {
		return familySearch.URL, nil
	}, time.Millisecond)
	assert.Equal(t, scraper.KindShutdown, scraper.KindOf(err))
}

func TestFromRod(t *testing.T) {
	t.Parallel()

	expires := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	got := FromRod([]*proto.NetworkCookie{
		{Name: "fssessionid", Value: "abc", Domain: ".familysearch.org", Path: "/", Expires: proto.TimeSinceEpoch(expires.Unix()), Secure: true},
		{Name: "tmp", Value: "x", Session: true},
		nil,
	})
	require.Len(t, got, 2)
	assert.True(t, got[0].Expires.Equal(expires))
	assert.True(t, got[0].Secure)
	assert.True(t, got[1].Expires.IsZero())
	assert.Equal(t, 5*time.Minute, New(Config{}, nil).cfg.Timeout)
}
