package identity

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Weights are the additive evidence weights used to score a candidate.
type Weights struct {
	ExactCase       float64
	ExactFold       float64
	Soundex         float64
	Metaphone       float64
	Location        float64
	BirthYear       float64
	PersonType      float64
	BirthYearWindow int
}

// DefaultWeights place a spelling variant with matching place and type at the link band.
var DefaultWeights = Weights{
	ExactCase:       0.50,
	ExactFold:       0.45,
	Soundex:         0.30,
	Metaphone:       0.25,
	Location:        0.25,
	BirthYear:       0.15,
	PersonType:      0.10,
	BirthYearWindow: 15,
}

// Query is the mention side of a comparison.
type Query struct {
	FullName   string
	Name       Name
	Codes      Codes
	PersonType scraper.PersonType
	Locations  []string
	BirthYear  *int
}

// NewQuery parses and encodes a mention name.
func NewQuery(raw string, pt scraper.PersonType, locations []string, birthYear *int) Query {
	n := ParseName(raw)
	return Query{
		FullName:   n.Full(),
		Name:       n,
		Codes:      CodesFor(n),
		PersonType: pt,
		Locations:  locations,
		BirthYear:  birthYear,
	}
}

// Score is a scored candidate.
type Score struct {
	Candidate scraper.CanonicalPerson
	// Raw is the unclamped sum used for ranking.
	Raw float64
	// Value is Raw clamped to [0,1].
	Value       float64
	Levenshtein int
	Evidence    []string
	// Pending is the outcome index of a canonical created earlier in the same batch, or -1.
	Pending int
}

// ScoreCandidate sums the evidence linking p to c.
func ScoreCandidate(p Query, c scraper.CanonicalPerson, w Weights) Score {
	s := Score{Candidate: c, Pending: -1}
	add := func(weight float64, label string) {
		s.Raw += weight
		s.Evidence = append(s.Evidence, label)
	}

	switch {
	case p.FullName != "" && p.FullName == c.CanonicalName:
		add(w.ExactCase, "exact")
	case p.FullName != "" && strings.EqualFold(p.FullName, c.CanonicalName):
		add(w.ExactFold, "exact_fold")
	}

	if pairMatches(p.Codes.FirstSoundex, c.FirstSoundex, p.Codes.LastSoundex, c.LastSoundex, SoundexEquivalent) {
		add(w.Soundex, "soundex")
	}
	if pairMatches(p.Codes.FirstMetaphone, c.FirstMetaphone, p.Codes.LastMetaphone, c.LastMetaphone,
		func(a, b string) bool { return a == b }) {
		add(w.Metaphone, "metaphone")
	}
	if locationMatches(p.Locations, c.PrimaryState, c.PrimaryCounty) {
		add(w.Location, "location")
	}
	if p.BirthYear != nil && c.BirthYearEstimate != nil && absInt(*p.BirthYear-*c.BirthYearEstimate) <= w.BirthYearWindow {
		add(w.BirthYear, "birth_year")
	}
	if p.PersonType != "" && p.PersonType == c.PersonType {
		add(w.PersonType, "person_type")
	}

	s.Raw = round4(s.Raw)
	s.Value = math.Min(1, s.Raw)
	s.Levenshtein = levenshtein.ComputeDistance(strings.ToLower(p.FullName), strings.ToLower(c.CanonicalName))
	return s
}

// pairMatches requires both the first and last codes to match. A part missing on
// both sides counts as matching, but at least one part must carry a code.
func pairMatches(pf, cf, pl, cl string, eq func(a, b string) bool) bool {
	if pf == "" && pl == "" {
		return false
	}
	return partMatches(pf, cf, eq) && partMatches(pl, cl, eq)
}

func partMatches(a, b string, eq func(a, b string) bool) bool {
	if a == "" || b == "" {
		return a == b
	}
	return eq(a, b)
}

func locationMatches(locations []string, state, county string) bool {
	for _, loc := range locations {
		l := strings.ToLower(loc)
		if state != "" && strings.Contains(l, strings.ToLower(state)) {
			return true
		}
		if county != "" && strings.Contains(l, strings.ToLower(county)) {
			return true
		}
	}
	return false
}

// Rank orders scores best first. Ties keep the lower canonical ID first.
func Rank(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Raw != scores[j].Raw {
			return scores[i].Raw > scores[j].Raw
		}
		return scores[i].Candidate.ID < scores[j].Candidate.ID
	})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
