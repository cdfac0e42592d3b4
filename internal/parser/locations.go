package parser

import (
	"regexp"
	"strings"
)

var (
	countyOf = regexp.MustCompile(`(?i:county\s+of)\s+([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)?)`)
	xCounty  = regexp.MustCompile(`\b([A-Z][A-Za-z]+) (?i:county)\b`)
	stateOf  = regexp.MustCompile(`(?i:state\s+of)\s+([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)?)`)
	district = regexp.MustCompile(`(?i)district\s+of\s+columbia|washington,?\s+d\.\s?c\.?`)
)

// pageLocations reads the county and state a document is headed with.
func pageLocations(text string) []string {
	var county, state string
	if m := countyOf.FindStringSubmatch(text); m != nil {
		county = m[1] + " County"
	} else if m := xCounty.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "the") {
		county = m[1] + " County"
	}
	if m := stateOf.FindStringSubmatch(text); m != nil {
		state = m[1]
	} else if district.MatchString(text) {
		state = "District of Columbia"
	}
	switch {
	case county != "" && state != "":
		return []string{county + ", " + state}
	case county != "":
		return []string{county}
	case state != "":
		return []string{state}
	}
	return nil
}
