package identity

import "strings"

var usStates = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut", "Delaware",
	"District of Columbia", "Florida", "Georgia", "Hawaii", "Idaho", "Illinois", "Indiana", "Iowa",
	"Kansas", "Kentucky", "Louisiana", "Maine", "Maryland", "Massachusetts", "Michigan", "Minnesota",
	"Mississippi", "Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
	"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio", "Oklahoma", "Oregon",
	"Pennsylvania", "Rhode Island", "South Carolina", "South Dakota", "Tennessee", "Texas", "Utah",
	"Vermont", "Virginia", "Washington", "West Virginia", "Wisconsin", "Wyoming",
}

// StateOf returns the first US state named in locations.
func StateOf(locations []string) string {
	for _, loc := range locations {
		l := strings.ToLower(loc)
		best := ""
		for _, st := range usStates {
			// "West Virginia" must win over "Virginia".
			if strings.Contains(l, strings.ToLower(st)) && len(st) > len(best) {
				best = st
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

// CountyOf returns the first "<Name> County" found in locations.
func CountyOf(locations []string) string {
	for _, loc := range locations {
		for _, part := range strings.Split(loc, ",") {
			part = strings.TrimSpace(part)
			if strings.HasSuffix(strings.ToLower(part), " county") {
				return part
			}
		}
	}
	return ""
}
