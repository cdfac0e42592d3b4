package identity

import (
	"strings"
	"unicode"
)

// Name is a person name split into its parts.
type Name struct {
	First  string
	Middle string
	Last   string
	Suffix string
}

var suffixes = map[string]string{
	"jr":  "Jr",
	"sr":  "Sr",
	"ii":  "II",
	"iii": "III",
	"iv":  "IV",
	"v":   "V",
}

// particles join the surname they precede.
var particles = map[string]bool{
	"van": true, "von": true, "de": true, "del": true, "della": true, "da": true,
	"di": true, "du": true, "la": true, "le": true, "ten": true, "ter": true, "st": true,
}

// ParseName splits a raw name. It accepts natural order ("John Henry Smith Jr.")
// and catalogue order ("Smith, John Henry, Jr.").
func ParseName(raw string) Name {
	parts := splitComma(raw)
	var n Name
	switch {
	case len(parts) == 0:
		return n
	case len(parts) == 2 && isSuffix(parts[1]):
		n = parseNatural(tokens(parts[0]))
		n.Suffix = suffixes[suffixKey(parts[1])]
	case len(parts) >= 2:
		given := tokens(parts[1])
		if len(given) > 0 {
			n.First = given[0]
			n.Middle = strings.Join(given[1:], " ")
		}
		n.Last = strings.Join(tokens(parts[0]), " ")
		if len(parts) > 2 && isSuffix(parts[2]) {
			n.Suffix = suffixes[suffixKey(parts[2])]
		}
		if n.First == "" {
			n = parseNatural(tokens(parts[0]))
		}
	default:
		n = parseNatural(tokens(parts[0]))
	}
	return n
}

func parseNatural(toks []string) Name {
	var n Name
	if len(toks) >= 2 && isSuffix(toks[len(toks)-1]) {
		n.Suffix = suffixes[suffixKey(toks[len(toks)-1])]
		toks = toks[:len(toks)-1]
	}
	switch len(toks) {
	case 0:
		return n
	case 1:
		n.First = toks[0]
		return n
	}
	lastStart := len(toks) - 1
	for lastStart > 1 && particles[strings.ToLower(toks[lastStart-1])] {
		lastStart--
	}
	n.First = toks[0]
	n.Middle = strings.Join(toks[1:lastStart], " ")
	n.Last = strings.Join(toks[lastStart:], " ")
	return n
}

// Full renders the name in natural order.
func (n Name) Full() string {
	return joinNonEmpty(n.First, n.Middle, n.Last, n.Suffix)
}

// Render produces a string that ParseName maps back onto n. Names whose
// surname boundary natural order cannot express are rendered in catalogue order.
func (n Name) Render() string {
	full := n.Full()
	if n.First == "" || n.Last == "" || ParseName(full) == n {
		return full
	}
	given := joinNonEmpty(n.First, n.Middle)
	if n.Suffix != "" {
		return n.Last + ", " + given + ", " + n.Suffix
	}
	return n.Last + ", " + given
}

// Empty reports whether no part was recognised.
func (n Name) Empty() bool {
	return n.First == "" && n.Last == ""
}

func splitComma(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if len(tokens(part)) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// tokens cleans a name fragment into case-normalised words. A detached Mc,
// Mac or O' prefix is joined to the word that follows ("mc donald" is McDonald).
func tokens(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	prefix := ""
	for _, f := range fields {
		clean := strings.Map(func(r rune) rune {
			switch {
			case unicode.IsLetter(r), r == '-', r == '\'':
				return r
			default:
				return -1
			}
		}, f)
		apostrophe := strings.HasSuffix(clean, "'")
		clean = strings.Trim(clean, "-'")
		if clean == "" {
			continue
		}
		word := normalizeCase(clean)
		if prefix != "" {
			word, prefix = prefix+word, ""
			out = append(out, word)
			continue
		}
		if p, ok := surnamePrefix(word, apostrophe); ok {
			prefix = p
			continue
		}
		out = append(out, word)
	}
	if prefix != "" {
		out = append(out, strings.TrimSuffix(prefix, "'"))
	}
	return out
}

// surnamePrefix reports whether word is a prefix written apart from its surname.
func surnamePrefix(word string, apostrophe bool) (string, bool) {
	switch strings.ToLower(word) {
	case "mc":
		return "Mc", true
	case "mac":
		return "Mac", true
	case "o":
		if apostrophe {
			return "O'", true
		}
	}
	return "", false
}

// normalizeCase title-cases all-upper and all-lower words and leaves mixed case alone.
func normalizeCase(word string) string {
	if word != strings.ToUpper(word) && word != strings.ToLower(word) {
		return word
	}
	if lower := strings.ToLower(word); len(lower) > 1 && strings.Trim(lower, "iv") == "" {
		// Roman numeral suffixes stay upper case.
		return strings.ToUpper(word)
	}
	pieces := strings.Split(word, "-")
	for i, p := range pieces {
		pieces[i] = titleWord(p)
	}
	return strings.Join(pieces, "-")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	// O'Brien, D'Angelo
	if len(runes) > 2 && runes[1] == '\'' {
		runes[2] = unicode.ToUpper(runes[2])
	}
	return string(runes)
}

func isSuffix(s string) bool {
	_, ok := suffixes[suffixKey(s)]
	return ok
}

func suffixKey(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), "."))
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
