// Package detector decides when a plain fetch returned an SPA shell that must
// be rendered in a headless browser.
package detector

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// MinVisibleText is the visible character count below which a page with an
	// application mount point counts as a shell.
	MinVisibleText int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold, MinVisibleText: 200}
}

var mountPoints = []string{
	"#__next",
	"#root",
	"#app",
	"[data-reactroot]",
	"[ng-app]",
	"app-root",
	"#__nuxt",
}

var shellMarkers = [][]byte{
	[]byte("__NEXT_DATA__"),
	[]byte("window.__INITIAL_STATE__"),
	[]byte("You need to enable JavaScript"),
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp scraper.FetchResponse) bool {
	if resp.StatusCode != 200 {
		return false
	}
	if !isHTML(resp.ContentType) {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	doc.Find("script, style, noscript, template").Remove()
	visible := utf8.RuneCountInString(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	if visible >= h.MinVisibleText {
		return false
	}
	for _, sel := range mountPoints {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
