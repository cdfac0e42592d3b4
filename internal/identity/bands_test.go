package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func scoreOf(id int64, raw float64) Score {
	v := raw
	if v > 1 {
		v = 1
	}
	return Score{Candidate: scraper.CanonicalPerson{ID: id}, Raw: raw, Value: v, Pending: -1}
}

func TestDecideBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  float64
		want scraper.Action
	}{
		{"just below link", 0.895, scraper.ActionReview},
		{"below link", 0.893, scraper.ActionReview},
		{"exactly link", 0.90, scraper.ActionLink},
		{"above link", 0.905, scraper.ActionLink},
		{"above link low", 0.904, scraper.ActionLink},
		{"exactly review", 0.60, scraper.ActionReview},
		{"below review", 0.59, scraper.ActionCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := DefaultBands.Decide([]Score{scoreOf(1, tt.raw)}, 0.9, scraper.RoleOwner)
			assert.Equal(t, tt.want, d.Action)
		})
	}
}

func TestDecideTieGoesToReview(t *testing.T) {
	t.Parallel()

	ranked := []Score{scoreOf(3, 1.15), scoreOf(4, 1.15)}
	d := DefaultBands.Decide(ranked, 0.9, scraper.RoleOwner)
	require.Equal(t, scraper.ActionReview, d.Action)
	require.Len(t, d.Candidates, 2)
}

func TestDecideClampedButDistinctLinks(t *testing.T) {
	t.Parallel()

	// Both clamp to 1.0 but the raw sums still rank them.
	ranked := []Score{scoreOf(3, 1.15), scoreOf(4, 1.05)}
	d := DefaultBands.Decide(ranked, 0.9, scraper.RoleOwner)
	require.Equal(t, scraper.ActionLink, d.Action)
	assert.Equal(t, int64(3), d.Top.Candidate.ID)
}

func TestDecideWithoutCandidates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, scraper.ActionCreate, DefaultBands.Decide(nil, 0.80, scraper.RoleEnslaved).Action)
	assert.Equal(t, scraper.ActionUnconfirmed, DefaultBands.Decide(nil, 0.70, scraper.RoleEnslaved).Action)
	assert.Equal(t, scraper.ActionUnconfirmed, DefaultBands.Decide(nil, 0.95, scraper.RoleAmbiguous).Action)
}

func TestScoreCandidateSpellingVariant(t *testing.T) {
	t.Parallel()

	query := NewQuery("Elizabeth Karter", scraper.PersonOwner, []string{"Hanover County, Virginia"}, nil)
	s := ScoreCandidate(query, canonical(7, "Elizabeth Carter", scraper.PersonOwner, "Virginia"), DefaultWeights)
	assert.InDelta(t, 0.90, s.Value, 1e-9)
	assert.Equal(t, []string{"soundex", "metaphone", "location", "person_type"}, s.Evidence)
	assert.Equal(t, 1, s.Levenshtein)
}

func TestScoreCandidateExactMatchesAreExclusive(t *testing.T) {
	t.Parallel()

	c := canonical(1, "John Smith", scraper.PersonOwner, "")
	exact := ScoreCandidate(NewQuery("John Smith", scraper.PersonOwner, nil, nil), c, DefaultWeights)
	assert.InDelta(t, 1.15, exact.Raw, 1e-9)
	assert.Equal(t, 1.0, exact.Value)
	assert.Contains(t, exact.Evidence, "exact")
	assert.NotContains(t, exact.Evidence, "exact_fold")
}

func TestScoreCandidateBirthYearWindow(t *testing.T) {
	t.Parallel()

	c := canonical(1, "Mary Jones", scraper.PersonEnslaved, "")
	c.BirthYearEstimate = scraper.IntPtr(1820)
	in := ScoreCandidate(NewQuery("Mary Jones", scraper.PersonEnslaved, nil, scraper.IntPtr(1835)), c, DefaultWeights)
	out := ScoreCandidate(NewQuery("Mary Jones", scraper.PersonEnslaved, nil, scraper.IntPtr(1836)), c, DefaultWeights)
	assert.Contains(t, in.Evidence, "birth_year")
	assert.NotContains(t, out.Evidence, "birth_year")
}

func TestRankPrefersLowerIDOnTies(t *testing.T) {
	t.Parallel()

	scores := []Score{scoreOf(9, 0.7), scoreOf(2, 0.7), scoreOf(5, 0.8)}
	Rank(scores)
	assert.Equal(t, []int64{5, 2, 9}, []int64{scores[0].Candidate.ID, scores[1].Candidate.ID, scores[2].Candidate.ID})
}

func canonical(id int64, full string, pt scraper.PersonType, state string) scraper.CanonicalPerson {
	n := ParseName(full)
	codes := CodesFor(n)
	return scraper.CanonicalPerson{
		ID:             id,
		CanonicalName:  n.Full(),
		FirstName:      n.First,
		MiddleName:     n.Middle,
		LastName:       n.Last,
		FirstSoundex:   codes.FirstSoundex,
		LastSoundex:    codes.LastSoundex,
		FirstMetaphone: codes.FirstMetaphone,
		LastMetaphone:  codes.LastMetaphone,
		PrimaryState:   state,
		PersonType:     pt,
	}
}
