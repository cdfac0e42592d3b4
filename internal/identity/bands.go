package identity

import "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"

// Bands are the score thresholds the resolver acts on.
type Bands struct {
	Link             float64
	Review           float64
	Candidate        float64
	CreateConfidence float64
}

// DefaultBands link at 0.90, review from 0.60, list candidates from 0.40 and
// create canonicals for mentions with confidence of at least 0.75.
var DefaultBands = Bands{
	Link:             0.90,
	Review:           0.60,
	Candidate:        0.40,
	CreateConfidence: 0.75,
}

// Decision is the resolver's verdict for one mention.
type Decision struct {
	Action scraper.Action
	Top    *Score
	// Candidates are the scores at or above the candidate band, best first.
	Candidates []Score
}

// Decide applies the bands to ranked scores. Two distinct candidates tied on
// the unclamped score cannot be told apart and go to review.
func (b Bands) Decide(ranked []Score, mentionConfidence float64, role scraper.Role) Decision {
	var d Decision
	for _, s := range ranked {
		if s.Value >= b.Candidate {
			d.Candidates = append(d.Candidates, s)
		}
	}
	if len(ranked) > 0 {
		top := ranked[0]
		d.Top = &top
		tied := len(ranked) > 1 && ranked[1].Raw == top.Raw && !sameCandidate(ranked[0], ranked[1])
		switch {
		case top.Value >= b.Link && !tied:
			d.Action = scraper.ActionLink
			return d
		case top.Value >= b.Review:
			d.Action = scraper.ActionReview
			return d
		}
	}
	if mentionConfidence >= b.CreateConfidence && (role == scraper.RoleOwner || role == scraper.RoleEnslaved) {
		d.Action = scraper.ActionCreate
		return d
	}
	d.Action = scraper.ActionUnconfirmed
	return d
}

func sameCandidate(a, b Score) bool {
	if a.Pending >= 0 || b.Pending >= 0 {
		return a.Pending == b.Pending
	}
	return a.Candidate.ID == b.Candidate.ID
}
