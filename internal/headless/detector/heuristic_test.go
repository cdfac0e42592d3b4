package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func htmlResponse(body string) scraper.FetchResponse {
	return scraper.FetchResponse{StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote(htmlResponse("  ")))
}

func TestHeuristic_ShouldPromote_MountPoint(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote(htmlResponse(`<html><body><div id="__next"></div></body></html>`)))
	require.True(t, h.ShouldPromote(htmlResponse(`<html><body><app-root>Loading...</app-root></body></html>`)))
}

func TestHeuristic_ShouldPromote_ContentRichPageWithMount(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	text := strings.Repeat("Petition of Ann Smith for the release of Peter. ", 10)
	require.False(t, h.ShouldPromote(htmlResponse(`<html><body><div id="root"><p>`+text+`</p></div></body></html>`)))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.ShouldPromote(htmlResponse(`<html><script>var a=1;</script><p>t</p></html>`)))
}

func TestHeuristic_ShouldPromote_StaticPage(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	require.False(t, h.ShouldPromote(htmlResponse(`<html><body><table><tr><td>John Smith</td></tr></table></body></html>`)))
}

func TestHeuristic_ShouldPromote_DisabledForNon200AndBinary(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.False(t, h.ShouldPromote(scraper.FetchResponse{StatusCode: 404, Body: []byte("not found")}))
	require.False(t, h.ShouldPromote(scraper.FetchResponse{StatusCode: 200, ContentType: "application/pdf", Body: nil}))
}
