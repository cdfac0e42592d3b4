package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const slaveScheduleText = `SCHEDULE 2 Slave Inhabitants in the County of Hanover, State of Virginia
Names of Slave Owners  Number  Age  Sex  Colour
Page 12
Henry Ball 1 40 M B
 1 35 F M
 1 12 F B
Ann Carter
 1 22 M B
Peter 30 M B
`

func TestScheduleGroupsRowsUnderOwner(t *testing.T) {
	t.Parallel()

	page := scraper.Page{
		URL:      "https://example.org/census/1860/hanover/12",
		Category: "census",
		OCR:      scraper.OCRResult{Text: slaveScheduleText, DocumentType: scraper.DocSlaveSchedule},
	}
	mentions, err := Schedule{}.Parse(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, mentions, 7)

	assert.Equal(t, "Henry Ball", mentions[0].RawName)
	assert.Equal(t, scraper.RoleOwner, mentions[0].Role)
	assert.Equal(t, []string{"Hanover County, Virginia"}, mentions[0].Locations)

	for _, i := range []int{1, 2, 3} {
		m := mentions[i]
		assert.Empty(t, m.RawName)
		assert.Equal(t, scraper.RoleEnslaved, m.Role)
		assert.Equal(t, ScheduleUnnamedConfidence, m.Confidence)
		assert.Equal(t, []scraper.RelationshipHint{{Type: scraper.RelEnslavedBy, RelatedTo: "Henry Ball"}},
			m.RelationshipHints)
	}
	row, ok := mentions[2].Shape.(scraper.TabularRow)
	require.True(t, ok)
	assert.Equal(t, 12, row.Page)
	assert.Equal(t, 2, row.Row)
	assert.Equal(t, "M", row.Colour)
	require.NotNil(t, mentions[2].Sex)
	assert.Equal(t, scraper.SexFemale, *mentions[2].Sex)
	assert.Equal(t, 35, *mentions[2].Age)

	assert.Equal(t, "Ann Carter", mentions[4].RawName)
	assert.Equal(t, scraper.RoleOwner, mentions[4].Role)
	assert.Equal(t, "Ann Carter", mentions[5].RelationshipHints[0].RelatedTo)

	assert.Equal(t, "Peter", mentions[6].RawName)
	assert.Equal(t, ScheduleNamedConfidence, mentions[6].Confidence)
	assert.Equal(t, "Ann Carter", mentions[6].RelationshipHints[0].RelatedTo)
}

func TestScheduleNeedsTabularText(t *testing.T) {
	t.Parallel()

	page := scraper.Page{OCR: scraper.OCRResult{Text: slaveScheduleText, DocumentType: scraper.DocPetition}}
	_, err := Schedule{}.Parse(context.Background(), page)
	require.ErrorIs(t, err, ErrNotApplicable)

	mentions, err := Schedule{Force: true}.Parse(context.Background(), page)
	require.NoError(t, err)
	assert.NotEmpty(t, mentions)
}

func TestSchedulePopulationRows(t *testing.T) {
	t.Parallel()

	text := "Free Inhabitants in the County of Fairfax\nJohn Jones 44 M W\n 3 F W\nSarah Jones 40 F W\n"
	page := scraper.Page{OCR: scraper.OCRResult{Text: text, DocumentType: scraper.DocPopulationSchedule}}
	mentions, err := Schedule{}.Parse(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	assert.Equal(t, "John Jones", mentions[0].RawName)
	assert.Equal(t, scraper.RoleUnknown, mentions[0].Role)
	assert.Equal(t, []string{"Fairfax County"}, mentions[0].Locations)
}
