package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const petition = "Petition of John Smith ... negro man Peter ... Witness for Petitioner Thomas Jones ... " +
	"Justice of the Peace William Brown"

func TestDefaultRulesLoad(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	require.NotEmpty(t, rules)
	assert.Equal(t, scraper.RoleOfficial, rules[0].Role)
	var sawPage bool
	for _, r := range rules {
		if r.Scope == ScopePage {
			sawPage = true
		}
	}
	assert.True(t, sawPage)
}

func TestClassifyPetitionRoles(t *testing.T) {
	t.Parallel()

	page := scraper.Page{URL: "https://example.org/doc/2", OCR: scraper.OCRResult{Text: petition}}
	mentions, err := parser.Petition{}.Parse(context.Background(), page)
	require.NoError(t, err)

	got := New(nil, 0, nil).Classify(petition, mentions)
	byName := make(map[string]scraper.ClassifiedMention)
	for _, m := range got {
		byName[m.RawName] = m
	}

	require.Contains(t, byName, "John Smith")
	assert.Equal(t, scraper.RoleOwner, byName["John Smith"].Role)
	assert.False(t, byName["John Smith"].Rejected)

	assert.Equal(t, scraper.RoleEnslaved, byName["Peter"].Role)
	assert.False(t, byName["Peter"].Rejected)

	for _, name := range []string{"Thomas Jones", "William Brown"} {
		assert.Equal(t, scraper.RoleOfficial, byName[name].Role, name)
		assert.True(t, byName[name].Rejected, name)
	}

	persisted := 0
	for _, m := range got {
		if !m.Rejected && m.Role.Persistable() {
			persisted++
		}
	}
	assert.Equal(t, 2, persisted)
}

func prose(text, name string, role scraper.Role, confidence float64) scraper.ExtractedMention {
	return scraper.ExtractedMention{
		RawName:     name,
		Role:        role,
		ContextText: text,
		Confidence:  confidence,
	}
}

func TestClassifyDecisionOrder(t *testing.T) {
	t.Parallel()

	c := New(nil, 0, nil)
	tests := []struct {
		name     string
		mention  scraper.ExtractedMention
		wantRole scraper.Role
		wantRule string
		rejected bool
	}{
		{
			name:     "denylisted token",
			mention:  prose("NAMES AGE SEX", "NAMES", scraper.RoleOwner, 0.9),
			wantRole: scraper.RoleOwner,
			wantRule: "name_filter",
			rejected: true,
		},
		{
			name:     "appositive official",
			mention:  prose("signed before John Doe, Justice of the Peace for the county", "John Doe", scraper.RoleUnknown, 0.5),
			wantRole: scraper.RoleOfficial,
			wantRule: "official_justice",
			rejected: true,
		},
		{
			name:     "appositive enslaved",
			mention:  prose("the estate includes Hannah, a negro woman of about twenty years", "Hannah", scraper.RoleUnknown, 0.5),
			wantRole: scraper.RoleEnslaved,
			wantRule: "enslaved_descriptor",
		},
		{
			name:     "official anchor after the name does not count",
			mention:  prose("Peter was freed. Witness for Petitioner: Samuel Hand", "Peter", scraper.RoleEnslaved, 0.8),
			wantRole: scraper.RoleEnslaved,
			wantRule: "parser_role",
		},
		{
			name:     "confident parser role adopted",
			mention:  prose("Robert Ball of Fairfax paid the tax assessed upon his property", "Robert Ball", scraper.RoleOwner, 0.8),
			wantRole: scraper.RoleOwner,
			wantRule: "parser_role",
		},
		{
			name:     "low confidence becomes ambiguous",
			mention:  prose("Robert Ball of Fairfax paid the tax assessed upon his property", "Robert Ball", scraper.RoleOwner, 0.7),
			wantRole: scraper.RoleAmbiguous,
			wantRule: "ambiguous",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify("", []scraper.ExtractedMention{tt.mention})
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantRole, got[0].Role)
			assert.Equal(t, tt.wantRule, got[0].Rule)
			assert.Equal(t, tt.rejected, got[0].Rejected)
		})
	}
}

func TestClassifyAmbiguousConfidence(t *testing.T) {
	t.Parallel()

	got := New(nil, 0, nil).Classify("", []scraper.ExtractedMention{
		prose("a list of names from the ledger", "Ruth Ball", scraper.RoleUnknown, 0.9),
	})
	assert.Equal(t, AmbiguousConfidence, got[0].Confidence)
}

func TestClassifyKeepsUnnamedScheduleRows(t *testing.T) {
	t.Parallel()

	row := scraper.ExtractedMention{
		Role:       scraper.RoleEnslaved,
		Confidence: 0.6,
		Shape:      scraper.TabularRow{Page: 1, Row: 2},
	}
	got := New(nil, 0, nil).Classify("", []scraper.ExtractedMention{row})
	require.Len(t, got, 1)
	assert.False(t, got[0].Rejected)
	assert.Equal(t, scraper.RoleEnslaved, got[0].Role)
	assert.Equal(t, "unnamed_row", got[0].Rule)
}

func TestClassifyPropagatesOfficials(t *testing.T) {
	t.Parallel()

	text := "Witness for Petitioner Thomas Jones"
	got := New(nil, 0, nil).Classify("", []scraper.ExtractedMention{
		prose(text, "Thomas Jones", scraper.RoleUnknown, 0.5),
		prose("the account of Thomas Jones for board", "Thomas Jones", scraper.RoleUnknown, 0.5),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "official_witness", got[0].Rule)
	assert.Equal(t, "official_elsewhere", got[1].Rule)
	assert.True(t, got[1].Rejected)
}

func TestParseRulesValidation(t *testing.T) {
	t.Parallel()

	_, err := ParseRules([]byte("rules:\n  - name: broken\n    pattern: '('\n"))
	require.Error(t, err)

	_, err = ParseRules([]byte("rules:\n  - name: nameless\n    scope: page\n    pattern: 'petition of'\n"))
	require.ErrorContains(t, err, "name group")
}
