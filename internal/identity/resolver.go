// Package identity maps noisy extracted names onto canonical persons using
// phonetic keys, additive evidence scores and a human review queue for the
// ambiguous middle band.
package identity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// CandidateSource returns canonicals worth scoring against a mention.
type CandidateSource interface {
	FindCandidates(ctx context.Context, q scraper.CandidateQuery) ([]scraper.CanonicalPerson, error)
}

// leadNamespace scopes deterministic unconfirmed person IDs.
var leadNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9a51-2c7b8f0d4e19")

const defaultCandidateLimit = 200

// Resolver plans identity writes for classified mentions.
type Resolver struct {
	source  CandidateSource
	weights Weights
	bands   Bands
	limit   int
	logger  *zap.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option { return func(r *Resolver) { r.weights = w } }

// WithBands overrides the decision thresholds.
func WithBands(b Bands) Option { return func(r *Resolver) { r.bands = b } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Resolver) { r.logger = l } }

// New builds a Resolver over a candidate source.
func New(source CandidateSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		weights: DefaultWeights,
		bands:   DefaultBands,
		limit:   defaultCandidateLimit,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pendingCanonical struct {
	index  int
	person scraper.CanonicalPerson
}

// Plan resolves every accepted mention and derives the relationships between
// them. Rejected mentions are skipped. Failures are contained per mention.
func (r *Resolver) Plan(
	ctx context.Context,
	sourceURL string,
	mentions []scraper.ClassifiedMention,
) ([]scraper.Outcome, []scraper.PendingRelationship) {
	outcomes := make([]scraper.Outcome, 0, len(mentions))
	var pending []pendingCanonical
	for _, m := range mentions {
		if m.Rejected || !m.Role.Persistable() {
			continue
		}
		out := r.resolveOne(ctx, sourceURL, m, pending)
		if out.Err != nil {
			r.logger.Warn("mention resolution failed",
				zap.String("name", m.RawName), zap.String("source_url", sourceURL), zap.Error(out.Err))
		}
		if out.Action == scraper.ActionCreate {
			pending = append(pending, pendingCanonical{index: len(outcomes), person: *out.NewCanonical})
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, relationshipsFor(outcomes)
}

func (r *Resolver) resolveOne(
	ctx context.Context,
	sourceURL string,
	m scraper.ClassifiedMention,
	pending []pendingCanonical,
) scraper.Outcome {
	out := scraper.Outcome{Mention: m, Confidence: m.Confidence}
	if strings.TrimSpace(m.RawName) == "" {
		out.Action = scraper.ActionUnconfirmed
		out.Unconfirmed = unconfirmedFor(m, sourceURL, unnamedLabel(m), scraper.UnconfirmedNeedsReview)
		return out
	}

	personType := scraper.PersonTypeFor(m.Role)
	query := NewQuery(m.RawName, personType, m.Locations, m.BirthYearEstimate)
	if query.Name.Empty() {
		out.Action = scraper.ActionFailed
		out.Err = scraper.Validation("resolve", fmt.Errorf("unparseable name %q", m.RawName))
		return out
	}

	candidates, err := r.source.FindCandidates(ctx, scraper.CandidateQuery{
		FullName:       query.FullName,
		FirstSoundex:   query.Codes.FirstSoundex,
		LastSoundex:    query.Codes.LastSoundex,
		FirstMetaphone: query.Codes.FirstMetaphone,
		LastMetaphone:  query.Codes.LastMetaphone,
		PersonType:     personType,
		Limit:          r.limit,
	})
	if err != nil {
		out.Action = scraper.ActionFailed
		out.Err = fmt.Errorf("find candidates: %w", err)
		return out
	}

	scores := make([]Score, 0, len(candidates)+len(pending))
	for _, c := range candidates {
		if compatibleTypes(personType, c.PersonType) {
			scores = append(scores, ScoreCandidate(query, c, r.weights))
		}
	}
	for _, p := range pending {
		if compatibleTypes(personType, p.person.PersonType) {
			s := ScoreCandidate(query, p.person, r.weights)
			s.Pending = p.index
			scores = append(scores, s)
		}
	}
	Rank(scores)

	decision := r.bands.Decide(scores, m.Confidence, m.Role)
	out.Action = decision.Action
	switch decision.Action {
	case scraper.ActionLink:
		top := decision.Top
		out.Confidence = top.Value
		out.CanonicalID = top.Candidate.ID
		if top.Pending >= 0 {
			idx := top.Pending
			out.SameAs = &idx
		}
		dist := top.Levenshtein
		out.Variant = &scraper.NameVariant{
			CanonicalPersonID:   top.Candidate.ID,
			VariantName:         strings.TrimSpace(m.RawName),
			SourceURL:           sourceURL,
			SourceType:          m.ExtractionMethod,
			MatchMethod:         strings.Join(top.Evidence, "+"),
			MatchConfidence:     top.Value,
			LevenshteinDistance: &dist,
		}
		out.Enrichment = &scraper.CanonicalPerson{
			PrimaryState:      StateOf(m.Locations),
			PrimaryCounty:     CountyOf(m.Locations),
			BirthYearEstimate: m.BirthYearEstimate,
			Sex:               m.Sex,
		}
	case scraper.ActionReview:
		out.Confidence = decision.Top.Value
		out.Unconfirmed = unconfirmedFor(m, sourceURL, query.FullName, scraper.UnconfirmedNeedsReview)
		out.Review, out.ReviewSameAs = reviewItem(query, m, out.Unconfirmed.LeadID, decision)
	case scraper.ActionCreate:
		out.NewCanonical = newCanonical(query, m)
		zero := 0
		out.Variant = &scraper.NameVariant{
			VariantName:         strings.TrimSpace(m.RawName),
			SourceURL:           sourceURL,
			SourceType:          m.ExtractionMethod,
			MatchMethod:         "created",
			MatchConfidence:     1,
			LevenshteinDistance: &zero,
		}
	default:
		out.Unconfirmed = unconfirmedFor(m, sourceURL, query.FullName, scraper.UnconfirmedNeedsReview)
	}
	return out
}

func compatibleTypes(a, b scraper.PersonType) bool {
	return a == b || a == scraper.PersonAmbiguous || b == scraper.PersonAmbiguous
}

// reviewItem lists every scored candidate. Slots held by canonicals created
// earlier in the batch carry a zero ID and are returned as slot -> outcome
// index for the store to fill.
func reviewItem(p Query, m scraper.ClassifiedMention, leadID string, d Decision) (*scraper.MatchQueueItem, map[int]int) {
	item := &scraper.MatchQueueItem{
		UnconfirmedName:     p.FullName,
		UnconfirmedPersonID: leadID,
		LocationContext:     strings.Join(m.Locations, "; "),
		Priority:            int(math.Round(d.Top.Value * 100)),
		Status:              scraper.MatchPending,
	}
	var sameAs map[int]int
	for _, c := range d.Candidates {
		if c.Pending >= 0 {
			if sameAs == nil {
				sameAs = make(map[int]int)
			}
			sameAs[len(item.CandidateCanonicalIDs)] = c.Pending
		}
		item.CandidateCanonicalIDs = append(item.CandidateCanonicalIDs, c.Candidate.ID)
		item.CandidateScores = append(item.CandidateScores, c.Value)
	}
	return item, sameAs
}

func newCanonical(p Query, m scraper.ClassifiedMention) *scraper.CanonicalPerson {
	c := &scraper.CanonicalPerson{
		CanonicalName:      p.Name.Full(),
		FirstName:          p.Name.First,
		MiddleName:         p.Name.Middle,
		LastName:           p.Name.Last,
		Suffix:             p.Name.Suffix,
		FirstSoundex:       p.Codes.FirstSoundex,
		LastSoundex:        p.Codes.LastSoundex,
		FirstMetaphone:     p.Codes.FirstMetaphone,
		LastMetaphone:      p.Codes.LastMetaphone,
		Sex:                m.Sex,
		BirthYearEstimate:  m.BirthYearEstimate,
		PrimaryState:       StateOf(m.Locations),
		PrimaryCounty:      CountyOf(m.Locations),
		PersonType:         p.PersonType,
		VerificationStatus: "unverified",
		Confidence:         m.Confidence,
	}
	if node, ok := m.Shape.(scraper.PedigreeNode); ok && node.DeathYear != nil {
		c.DeathYearEstimate = node.DeathYear
	}
	return c
}

// LeadID derives a stable unconfirmed person ID so replays do not duplicate leads.
func LeadID(sourceURL, fullName string, pt scraper.PersonType) string {
	key := strings.Join([]string{sourceURL, strings.ToLower(fullName), string(pt)}, "\x00")
	return uuid.NewSHA1(leadNamespace, []byte(key)).String()
}

func unconfirmedFor(
	m scraper.ClassifiedMention,
	sourceURL, fullName string,
	status scraper.UnconfirmedStatus,
) *scraper.UnconfirmedPerson {
	pt := scraper.PersonTypeFor(m.Role)
	return &scraper.UnconfirmedPerson{
		LeadID:           LeadID(sourceURL, fullName, pt),
		FullName:         fullName,
		PersonType:       pt,
		SourceURL:        sourceURL,
		SourcePageTitle:  m.PageTitle,
		ContextText:      m.ContextText,
		Locations:        m.Locations,
		Relationships:    m.RelationshipHints,
		Sex:              m.Sex,
		BirthYear:        m.BirthYearEstimate,
		Confidence:       m.Confidence,
		Status:           status,
		ExtractionMethod: m.ExtractionMethod,
	}
}

// unnamedLabel describes a schedule row that carries no name.
func unnamedLabel(m scraper.ClassifiedMention) string {
	parts := []string{"Unnamed " + string(scraper.PersonTypeFor(m.Role)) + " person"}
	if row, ok := m.Shape.(scraper.TabularRow); ok {
		parts = append(parts, fmt.Sprintf("page %d row %d", row.Page, row.Row))
	}
	if m.Age != nil {
		parts = append(parts, fmt.Sprintf("age %d", *m.Age))
	}
	if m.Sex != nil {
		parts = append(parts, string(*m.Sex))
	}
	for _, h := range m.RelationshipHints {
		if h.Type == scraper.RelEnslavedBy {
			parts = append(parts, "held by "+h.RelatedTo)
			break
		}
	}
	return strings.Join(parts, "; ")
}

// relationshipsFor resolves relationship hints between outcomes of one page.
func relationshipsFor(outcomes []scraper.Outcome) []scraper.PendingRelationship {
	byName := make(map[string]int, len(outcomes))
	for i, o := range outcomes {
		key := nameKey(o.Mention.RawName)
		if _, seen := byName[key]; !seen && key != "" {
			byName[key] = i
		}
	}
	var rels []scraper.PendingRelationship
	for i, o := range outcomes {
		for _, h := range o.Mention.RelationshipHints {
			j, ok := byName[nameKey(h.RelatedTo)]
			if !ok || i == j {
				continue
			}
			rels = append(rels, scraper.PendingRelationship{
				Subject:    i,
				Object:     j,
				Type:       h.Type,
				Confidence: math.Min(o.Mention.Confidence, outcomes[j].Mention.Confidence),
			})
		}
	}
	return rels
}

func nameKey(raw string) string {
	return strings.ToLower(ParseName(raw).Full())
}
