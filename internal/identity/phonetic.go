package identity

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldLetters strips diacritics and keeps the ASCII letters of s, upper-cased.
// "Éloise" becomes "ELOISE".
func foldLetters(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}

// Soundex returns the four character American Soundex code of s, or "" when s
// has no letters.
func Soundex(s string) string {
	letters := foldLetters(s)
	if letters == "" {
		return ""
	}
	return matchr.Soundex(letters)
}

// soundexClass is the Soundex digit of an upper-case letter, '0' when uncoded.
func soundexClass(c byte) byte {
	if c < 'A' || c > 'Z' {
		return '0'
	}
	// A is uncoded, so the second position carries c's own class.
	return matchr.Soundex("A" + string(c))[1]
}

// SoundexEquivalent reports whether two codes describe the same sound. Codes
// whose leading letters share a class (Carter C636, Karter K636) are equivalent.
func SoundexEquivalent(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) != 4 || len(b) != 4 || a[1:] != b[1:] {
		return false
	}
	da, db := soundexClass(a[0]), soundexClass(b[0])
	return da != '0' && da == db
}

// Metaphone returns the primary Double Metaphone key of s, or "" when s has no letters.
func Metaphone(s string) string {
	letters := foldLetters(s)
	if letters == "" {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(letters)
	return primary
}

// Codes are the phonetic keys stored alongside a canonical name.
type Codes struct {
	FirstSoundex   string
	LastSoundex    string
	FirstMetaphone string
	LastMetaphone  string
}

// CodesFor computes phonetic keys for the first and last name independently.
func CodesFor(n Name) Codes {
	return Codes{
		FirstSoundex:   Soundex(n.First),
		LastSoundex:    Soundex(n.Last),
		FirstMetaphone: Metaphone(n.First),
		LastMetaphone:  Metaphone(n.Last),
	}
}
