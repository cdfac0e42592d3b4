package ocr

import (
	"regexp"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Structure score weights.
const (
	headerWeight     = 3
	columnWeight     = 2
	occupationWeight = 4
	minOccupations   = 3
	winningMargin    = 2
)

type docProfile struct {
	kind        scraper.DocumentType
	headers     []*regexp.Regexp
	columns     []*regexp.Regexp
	occupations bool
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

var profiles = []docProfile{
	{
		kind: scraper.DocSlaveSchedule,
		headers: patterns(
			`slave\s+inhabitants`, `names\s+of\s+slave\s+owners`, `schedule\s+(?:2|no\.?\s*2|ii)\b`,
			`fugitives\s+from\s+the\s+state`, `number\s+of\s+slave\s+houses`,
		),
		columns: patterns(`number\s+of\s+slaves`, `\bmanumitted\b`, `deaf\s*(?:&|and)\s*dumb`, `\bcolou?r\b`),
	},
	{
		kind: scraper.DocPopulationSchedule,
		headers: patterns(
			`free\s+inhabitants`, `schedule\s+(?:1|no\.?\s*1|i)\b`, `population\s+schedule`,
			`dwelling-?\s*houses\s+numbered`, `families\s+numbered`,
		),
		columns: patterns(
			`profession,?\s+occupation,?\s+or\s+trade`, `place\s+of\s+birth`,
			`value\s+of\s+real\s+estate`, `attended\s+school`,
		),
		occupations: true,
	},
	{
		kind: scraper.DocPetition,
		headers: patterns(
			`petition\s+of`, `your\s+petitioner`, `emancipation`, `commissioners`, `compensation`,
		),
		columns: patterns(
			`witness\s+for\s+(?:the\s+)?petitioner`, `justice\s+of\s+the\s+peace`,
			`sworn\s+to\s+and\s+subscribed`, `service\s+or\s+labou?r`,
		),
	},
	{
		kind: scraper.DocProbate,
		headers: patterns(
			`last\s+will\s+and\s+testament`, `inventory\s+and\s+appraise?ment`, `estate\s+of`,
			`\bexecut(?:or|rix)\b`, `\badministrat(?:or|rix)\b`,
		),
		columns: patterns(`\bappraised\b`, `\bbequeath`, `\bdevise\b`, `\bheirs\b`),
	},
}

var occupationTerms = []string{
	"farmer", "laborer", "labourer", "carpenter", "blacksmith", "merchant", "planter", "physician",
	"shoemaker", "teacher", "seamstress", "servant", "overseer", "lawyer", "mariner", "miller",
	"cooper", "wheelwright", "tailor", "mason", "clerk", "grocer",
}

// Classification is the structure heuristic's verdict with its score table.
type Classification struct {
	Type   scraper.DocumentType
	Scores map[scraper.DocumentType]int
}

// ClassifyText scores text against every document profile. The best type
// wins only when it leads the runner-up by at least two points.
func ClassifyText(text string) Classification {
	scores := make(map[scraper.DocumentType]int, len(profiles))
	occupations := countOccupations(text)
	for _, p := range profiles {
		s := 0
		for _, re := range p.headers {
			if re.MatchString(text) {
				s += headerWeight
			}
		}
		for _, re := range p.columns {
			if re.MatchString(text) {
				s += columnWeight
			}
		}
		if p.occupations && occupations >= minOccupations {
			s += occupationWeight
		}
		scores[p.kind] = s
	}

	var best, second int
	bestType := scraper.DocUncertain
	for _, p := range profiles {
		s := scores[p.kind]
		switch {
		case s > best:
			second = best
			best = s
			bestType = p.kind
		case s > second:
			second = s
		}
	}
	if best == 0 || best-second < winningMargin {
		bestType = scraper.DocUncertain
	}
	return Classification{Type: bestType, Scores: scores}
}

func countOccupations(text string) int {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		words[w] = true
	}
	n := 0
	for _, o := range occupationTerms {
		if words[o] {
			n++
		}
	}
	return n
}
