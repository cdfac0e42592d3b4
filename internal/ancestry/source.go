package ancestry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// TreeSource looks up one person and their parent links.
type TreeSource interface {
	Person(ctx context.Context, fsID string) (parser.PedigreePerson, error)
}

// FetchSource reads pedigree JSON through the fetcher, reusing the
// category's session cookies.
type FetchSource struct {
	fetcher  scraper.Fetcher
	template string
	category string
}

// NewFetchSource builds a source that formats urlTemplate with the person ID.
func NewFetchSource(fetcher scraper.Fetcher, urlTemplate string) *FetchSource {
	return &FetchSource{fetcher: fetcher, template: urlTemplate, category: "familysearch"}
}

// Person implements TreeSource.
func (s *FetchSource) Person(ctx context.Context, fsID string) (parser.PedigreePerson, error) {
	resp, err := s.fetcher.Fetch(ctx, scraper.FetchRequest{
		URL:       fmt.Sprintf(s.template, url.PathEscape(fsID)),
		Category:  s.category,
		Mode:      scraper.FetchModePlain,
		NoArchive: true,
	})
	if err != nil {
		return parser.PedigreePerson{}, err
	}
	doc, err := parser.DecodePedigree(resp.Body)
	if err != nil {
		return parser.PedigreePerson{}, scraper.ParseFailed("pedigree", err)
	}
	for _, p := range doc.Persons {
		if p.ID == fsID {
			return p, nil
		}
	}
	return parser.PedigreePerson{}, scraper.ParseFailed("pedigree", fmt.Errorf("person %s missing from response", fsID))
}
