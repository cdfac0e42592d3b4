package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Name
	}{
		{"John Smith", Name{First: "John", Last: "Smith"}},
		{"JOHN HENRY SMITH JR.", Name{First: "John", Middle: "Henry", Last: "Smith", Suffix: "Jr"}},
		{"Smith, John Henry, Jr.", Name{First: "John", Middle: "Henry", Last: "Smith", Suffix: "Jr"}},
		{"Smith, John", Name{First: "John", Last: "Smith"}},
		{"Martin Van Buren", Name{First: "Martin", Last: "Van Buren"}},
		{"mary o'brien", Name{First: "Mary", Last: "O'Brien"}},
		{"angus mc donald", Name{First: "Angus", Last: "McDonald"}},
		{"Mac Donald, Flora", Name{First: "Flora", Last: "MacDonald"}},
		{"Patrick O' Neill", Name{First: "Patrick", Last: "O'Neill"}},
		{"John O Hara", Name{First: "John", Middle: "O", Last: "Hara"}},
		{"Smith Mc", Name{First: "Smith", Last: "Mc"}},
		{"Thomas Jefferson III", Name{First: "Thomas", Last: "Jefferson", Suffix: "III"}},
		{"Sarah", Name{First: "Sarah"}},
		{"Smith, Jr", Name{First: "Smith", Suffix: "Jr"}},
		{"  ", Name{}},
		{"123 ---", Name{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseName(tt.raw))
		})
	}
}

func TestRenderRoundTrips(t *testing.T) {
	t.Parallel()

	corpus := []string{
		"John Smith",
		"Smith, John Henry, Jr.",
		"Martin Van Buren",
		"Smith, John De",
		"Buren, Martin van",
		"ELIZABETH CARTER",
		"Mary-Ann O'Brien Sr",
		"Nancy",
		"de la Cruz, Maria",
		"mc donald",
	}
	for _, raw := range corpus {
		n := ParseName(raw)
		rendered := n.Render()
		require.Equal(t, n, ParseName(rendered), "raw=%q rendered=%q", raw, rendered)
		require.Equal(t, rendered, ParseName(rendered).Render(), "render not stable for %q", raw)
	}
}

func TestNameEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, ParseName("").Empty())
	assert.True(t, ParseName(", ,").Empty())
	assert.False(t, ParseName("Nancy").Empty())
}
