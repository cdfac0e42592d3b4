package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// ErrCanonicalRequired is returned when linked_existing lacks a canonical ID.
var ErrCanonicalRequired = errors.New("linked_existing requires a canonical id")

// ReviewStore is the persistence the review workflow needs.
type ReviewStore interface {
	GetReview(ctx context.Context, id int64) (scraper.ReviewDetail, error)
	ApplyReview(ctx context.Context, decision scraper.ReviewDecision) error
}

// ResolveReview turns an operator's verdict into a decision and applies it.
// The store re-checks that the item is still pending under a row lock.
func (r *Resolver) ResolveReview(
	ctx context.Context,
	store ReviewStore,
	id int64,
	resolution scraper.Resolution,
	canonicalID int64,
	resolvedBy string,
	now time.Time,
) (scraper.ReviewDecision, error) {
	detail, err := store.GetReview(ctx, id)
	if err != nil {
		return scraper.ReviewDecision{}, fmt.Errorf("get review %d: %w", id, err)
	}
	if detail.Item.Status != scraper.MatchPending {
		return scraper.ReviewDecision{}, scraper.ErrAlreadyResolved
	}

	decision := scraper.ReviewDecision{
		ItemID:      id,
		Resolution:  resolution,
		CanonicalID: canonicalID,
		ResolvedBy:  resolvedBy,
		ResolvedAt:  now,
	}
	sourceURL, sourceType := "", "review"
	if detail.Unconfirmed != nil {
		sourceURL = detail.Unconfirmed.SourceURL
		if detail.Unconfirmed.ExtractionMethod != "" {
			sourceType = detail.Unconfirmed.ExtractionMethod
		}
	}

	switch resolution {
	case scraper.ResolutionLinkedExisting:
		if canonicalID <= 0 {
			return scraper.ReviewDecision{}, ErrCanonicalRequired
		}
		decision.Variant = &scraper.NameVariant{
			CanonicalPersonID: canonicalID,
			VariantName:       detail.Item.UnconfirmedName,
			SourceURL:         sourceURL,
			SourceType:        sourceType,
			MatchMethod:       "manual",
			MatchConfidence:   1,
		}
	case scraper.ResolutionCreatedNew:
		decision.CanonicalID = 0
		decision.NewCanonical = canonicalFromReview(detail)
		decision.Variant = &scraper.NameVariant{
			VariantName:     detail.Item.UnconfirmedName,
			SourceURL:       sourceURL,
			SourceType:      sourceType,
			MatchMethod:     "manual_created",
			MatchConfidence: 1,
		}
	case scraper.ResolutionMarkedDuplicate, scraper.ResolutionNotAPerson:
	default:
		return scraper.ReviewDecision{}, fmt.Errorf("unknown resolution %q", resolution)
	}

	if err := store.ApplyReview(ctx, decision); err != nil {
		return scraper.ReviewDecision{}, fmt.Errorf("apply review %d: %w", id, err)
	}
	return decision, nil
}

func canonicalFromReview(d scraper.ReviewDetail) *scraper.CanonicalPerson {
	name := d.Item.UnconfirmedName
	pt := scraper.PersonAmbiguous
	var locations []string
	var sex *scraper.Sex
	var birth *int
	confidence := 1.0
	if u := d.Unconfirmed; u != nil {
		pt = u.PersonType
		locations = u.Locations
		sex = u.Sex
		birth = u.BirthYear
		confidence = u.Confidence
	}
	p := NewQuery(name, pt, locations, birth)
	return &scraper.CanonicalPerson{
		CanonicalName:      p.Name.Full(),
		FirstName:          p.Name.First,
		MiddleName:         p.Name.Middle,
		LastName:           p.Name.Last,
		Suffix:             p.Name.Suffix,
		FirstSoundex:       p.Codes.FirstSoundex,
		LastSoundex:        p.Codes.LastSoundex,
		FirstMetaphone:     p.Codes.FirstMetaphone,
		LastMetaphone:      p.Codes.LastMetaphone,
		Sex:                sex,
		BirthYearEstimate:  birth,
		PrimaryState:       StateOf(locations),
		PrimaryCounty:      CountyOf(locations),
		PersonType:         pt,
		VerificationStatus: "human_verified",
		Confidence:         confidence,
	}
}
