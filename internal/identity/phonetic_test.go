package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoundex(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Carter":    "C636",
		"Karter":    "K636",
		"Elizabeth": "E421",
		"Smith":     "S530",
		"John":      "J500",
		"Robert":    "R163",
		"Ashcraft":  "A261",
		"Tymczak":   "T522",
		"Pfister":   "P236",
		"O'Brien":   "O165",
		"Éloise":    "E420",
		"Øster":     "S360",
		"Müller":    "M460",
		"":          "",
		"1850":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Soundex(in), "Soundex(%q)", in)
	}
}

func TestSoundexEquivalent(t *testing.T) {
	t.Parallel()

	assert.True(t, SoundexEquivalent("C636", "C636"))
	assert.True(t, SoundexEquivalent("C636", "K636"))
	assert.False(t, SoundexEquivalent("C636", "C635"))
	// A and E are both uncoded, so the leading letter decides.
	assert.False(t, SoundexEquivalent("A261", "E261"))
	assert.False(t, SoundexEquivalent("", "C636"))
	assert.True(t, SoundexEquivalent(Soundex("Seller"), Soundex("Zeller")))
}

func TestFoldLetters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ELOISE", foldLetters("Éloise"))
	assert.Equal(t, "FRANCOIS", foldLetters("François"))
	assert.Equal(t, "OBRIEN", foldLetters("O'Brien"))
	assert.Empty(t, foldLetters("1850"))
}

func TestMetaphone(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Carter":    "KRTR",
		"Karter":    "KRTR",
		"Elizabeth": "ALSP",
		"Smith":     "SM0",
		"Knight":    "NT",
		"Phillip":   "FLP",
		"Wright":    "RT",
		"John":      "JN",
		"Smyth":     "SM0",
		"Éloise":    "ALS",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Metaphone(in), "Metaphone(%q)", in)
	}
}

func TestCodesFor(t *testing.T) {
	t.Parallel()

	got := CodesFor(ParseName("Elizabeth Karter"))
	assert.Equal(t, Codes{
		FirstSoundex:   "E421",
		LastSoundex:    "K636",
		FirstMetaphone: "ALSP",
		LastMetaphone:  "KRTR",
	}, got)
}
