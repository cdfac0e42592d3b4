package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func TestClassifyText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want scraper.DocumentType
	}{
		{
			name: "slave schedule",
			text: "SCHEDULE 2.—Slave Inhabitants in the County of Fairfax\nNames of Slave Owners. Number of Slaves. Age. Sex. Colour.",
			want: scraper.DocSlaveSchedule,
		},
		{
			name: "population schedule with occupations",
			text: "SCHEDULE 1.—Free Inhabitants\nProfession, Occupation, or Trade\nJohn Ball 45 M Farmer\nMary Ball 40 F\nJames Cole 30 M Blacksmith\nWill Dean 28 M Carpenter",
			want: scraper.DocPopulationSchedule,
		},
		{
			name: "petition",
			text: "To the Commissioners. The petition of John Smith respectfully states that your petitioner held Peter to service or labor.",
			want: scraper.DocPetition,
		},
		{
			name: "close scores are uncertain",
			text: "Petition of the estate of John Smith",
			want: scraper.DocUncertain,
		},
		{
			name: "nothing recognisable",
			text: "Lorem ipsum dolor sit amet",
			want: scraper.DocUncertain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyText(tt.text)
			assert.Equal(t, tt.want, got.Type, "%v", got.Scores)
		})
	}
}

func TestClassifyTextScores(t *testing.T) {
	t.Parallel()

	got := ClassifyText("Slave Inhabitants. Number of Slaves.")
	assert.Equal(t, headerWeight+columnWeight, got.Scores[scraper.DocSlaveSchedule])
	assert.Zero(t, got.Scores[scraper.DocProbate])
}
