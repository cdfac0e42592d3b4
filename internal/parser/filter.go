package parser

import (
	"strings"
	"unicode"
)

// denylist holds document structure tokens and legal boilerplate that OCR and
// loose regexes routinely mistake for names.
var denylist = map[string]bool{
	"name": true, "names": true, "age": true, "ages": true, "sex": true, "color": true, "colour": true,
	"owner": true, "owners": true, "slave": true, "slaves": true, "slave owners": true, "names of slave owners": true,
	"number of slaves": true, "fugitives": true, "manumitted": true, "remarks": true, "description": true,
	"total": true, "number": true, "county": true, "state": true, "schedule": true, "page": true,
	"male": true, "female": true, "negro": true, "mulatto": true, "black": true,
	"aforesaid": true, "said": true, "deceased": true, "estate": true, "petitioner": true,
	"your petitioner": true, "the petitioner": true, "witness": true, "justice of the peace": true,
	"the court": true, "court": true, "clerk": true, "unknown": true, "none": true, "district of columbia": true,
	"united states": true, "commissioners": true, "slave inhabitants": true, "free inhabitants": true,
}

// boilerplate phrases reject a name wherever they occur inside it.
var boilerplate = []string{"aforesaid", "your petitioner", "petition of", "subscribed", "sworn to"}

// Denied reports whether name is a known non-name token.
func Denied(name string) bool {
	key := normalizeKey(name)
	if denylist[key] {
		return true
	}
	for _, phrase := range boilerplate {
		if strings.Contains(key, phrase) {
			return true
		}
	}
	return false
}

// RejectReason returns why name is not a plausible person name, or "" when it is.
func RejectReason(name string) string {
	if strings.ContainsAny(name, "\r\n") {
		return "contains newline"
	}
	trimmed := strings.TrimSpace(name)
	if len([]rune(trimmed)) < 2 {
		return "too short"
	}
	if Denied(trimmed) {
		return "denylisted token"
	}
	if numeric(trimmed) {
		return "numeric"
	}
	if shouting(trimmed) {
		return "upper case without vowels"
	}
	return ""
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".,;:()[]\"'")
	return strings.Join(strings.Fields(s), " ")
}

func numeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r), unicode.IsPunct(r):
		default:
			return false
		}
	}
	return digits > 0
}

func shouting(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter && !strings.ContainsAny(s, "AEIOUY")
}
