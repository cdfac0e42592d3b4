// Package parser turns fetched pages and their OCR text into extracted person
// mentions. Parsers never write to storage; they only return values.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// ErrNotApplicable is returned by a parser when the page does not have the
// shape it understands. The registry moves on to the next parser.
var ErrNotApplicable = errors.New("parser not applicable")

// Parser extracts mentions from one page.
type Parser interface {
	Name() string
	Parse(ctx context.Context, page scraper.Page) ([]scraper.ExtractedMention, error)
}

// Registry maps a source category to an ordered chain of parsers.
type Registry struct {
	chains   map[string][]Parser
	fallback []Parser
	logger   *zap.Logger
}

// Options configures the default registry.
type Options struct {
	MaxGenerations int
	CutoffYear     int
}

// NewRegistry wires the parser chains for every known category.
func NewRegistry(logger *zap.Logger, opts Options) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	panel := Panel{}
	petition := Petition{}
	schedule := Schedule{}
	census := Schedule{Force: true}
	pedigree := Pedigree{MaxGenerations: opts.MaxGenerations, CutoffYear: opts.CutoffYear}

	r := &Registry{
		chains:   make(map[string][]Parser),
		fallback: []Parser{panel, schedule, petition},
		logger:   logger,
	}
	r.Register("familysearch", panel, pedigree, schedule)
	r.Register("census", census)
	r.Register("civilwardc", petition)
	r.Register("petition", petition)
	r.Register("pedigree", pedigree)
	r.Register(scraper.DefaultCategory, r.fallback...)
	return r
}

// Register replaces the chain for category.
func (r *Registry) Register(category string, parsers ...Parser) {
	r.chains[strings.ToLower(category)] = parsers
}

// Chain returns the parsers tried for category.
func (r *Registry) Chain(category string) []Parser {
	if chain, ok := r.chains[strings.ToLower(category)]; ok {
		return chain
	}
	return r.fallback
}

// Parse runs the category's chain and returns the first non-empty result.
// Parser failures only fail the page when no parser produced mentions.
func (r *Registry) Parse(ctx context.Context, page scraper.Page) ([]scraper.ExtractedMention, string, error) {
	var errs []error
	for _, p := range r.Chain(page.Category) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		mentions, err := p.Parse(ctx, page)
		switch {
		case errors.Is(err, ErrNotApplicable):
			continue
		case err != nil:
			r.logger.Warn("parser failed",
				zap.String("parser", p.Name()), zap.String("url", page.URL), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(mentions) > 0 {
			return stamp(mentions, page, p.Name()), p.Name(), nil
		}
	}
	if len(errs) > 0 {
		return nil, "", scraper.ParseFailed("parse", errors.Join(errs...))
	}
	return nil, "", nil
}

func stamp(mentions []scraper.ExtractedMention, page scraper.Page, method string) []scraper.ExtractedMention {
	for i := range mentions {
		m := &mentions[i]
		if m.SourceURL == "" {
			m.SourceURL = page.URL
		}
		if m.PageTitle == "" {
			m.PageTitle = page.Title
		}
		if m.ExtractionMethod == "" {
			m.ExtractionMethod = method
		}
	}
	return mentions
}
