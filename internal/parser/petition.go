package parser

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Petition role hint confidences. The classifier makes the final call.
const (
	PetitionerConfidence = 0.85
	SubjectConfidence    = 0.80
	OfficialConfidence   = 0.80
)

const (
	honorific = `(?:(?:Mr|Mrs|Miss|Dr|Rev|Col|Capt)\.?\s+)?`
	nameExpr  = `(?P<name>[A-Z][a-zA-Z'\-]+(?:[ \t]+(?:[A-Z]\.|[A-Z][a-zA-Z'\-]+)){0,3})`
	negroNoun = `(?i:negro|colou?red|mulatto)\s+(?P<noun>(?i:man|woman|boy|girl))`
)

type anchor struct {
	label string
	role  scraper.Role
	re    *regexp.Regexp
}

func before(label string, role scraper.Role, prefix string) anchor {
	return anchor{label: label, role: role, re: regexp.MustCompile(prefix + honorific + nameExpr)}
}

func after(label string, role scraper.Role, suffix string) anchor {
	return anchor{label: label, role: role, re: regexp.MustCompile(honorific + nameExpr + suffix)}
}

var petitionAnchors = []anchor{
	before("petition of", scraper.RoleOwner, `(?i:petition\s+of)\s+`),
	before("your petitioner", scraper.RoleOwner, `(?i:your\s+petitioner),?\s+`),
	before("racial descriptor", scraper.RoleEnslaved, negroNoun+`\s+(?:(?i:named|called)\s+)?`),
	after("racial descriptor", scraper.RoleEnslaved, `,\s+(?i:an?)\s+`+negroNoun),
	before("service or labor", scraper.RoleEnslaved, `(?i:service\s+or\s+labou?r\s+of)\s+`),
	before("slave named", scraper.RoleEnslaved, `(?i:slaves?\s+named)\s+`),
	before("witness for petitioner", scraper.RoleOfficial, `(?i:witness(?:es)?\s+for\s+(?:the\s+)?petitioner)[:,]?\s+`),
	before("justice of the peace", scraper.RoleOfficial, `(?i:justice\s+of\s+the\s+peace)[:,]?\s+`),
	before("sworn before", scraper.RoleOfficial, `(?i:sworn\s+to\s+and\s+subscribed\s+before\s+me)[:,]?\s+`),
	before("signed by", scraper.RoleOfficial, `\((?i:signed\s+by)\)\s+`),
	after("justice of the peace", scraper.RoleOfficial, `,\s+(?i:justice\s+of\s+the\s+peace|j\.\s?p\.|clerk|commissioner)`),
}

var ageAfter = regexp.MustCompile(`^,?\s+(?i:aged?|about)\s+(?:(?i:about)\s+)?(\d{1,3})`)

// trailing words a greedy name match picks up from the next phrase.
var nameStopWords = map[string]bool{
	"witness": true, "justice": true, "sworn": true, "petitioner": true, "esq": true, "the": true,
	"and": true, "of": true, "clerk": true, "commissioner": true, "aged": true, "subscribed": true,
	"that": true, "who": true, "said": true, "respectfully": true, "states": true, "your": true,
}

// Petition extracts petitioners, enslaved subjects and officials from prose
// emancipation petitions using anchor phrases.
type Petition struct{}

// Name implements Parser.
func (Petition) Name() string { return "petition" }

type petitionHit struct {
	start, end int
	anchor     string
	role       scraper.Role
	name       string
	sex        *scraper.Sex
}

// Parse implements Parser.
func (Petition) Parse(_ context.Context, page scraper.Page) ([]scraper.ExtractedMention, error) {
	text := page.OCR.Text
	if strings.TrimSpace(text) == "" {
		return nil, ErrNotApplicable
	}

	hits := findAnchored(text)
	if len(hits) == 0 {
		return nil, ErrNotApplicable
	}

	petitioner := ""
	for _, h := range hits {
		if h.role == scraper.RoleOwner {
			petitioner = h.name
			break
		}
	}
	locations := pageLocations(text)

	out := make([]scraper.ExtractedMention, 0, len(hits))
	for _, h := range hits {
		m := scraper.ExtractedMention{
			RawName:     h.name,
			Role:        h.role,
			Sex:         h.sex,
			Locations:   locations,
			ContextText: Window(text, h.start, h.end),
			Confidence:  hitConfidence(h.role),
			Shape:       scraper.ProseMention{Offset: h.start, Anchor: h.anchor},
		}
		if am := ageAfter.FindStringSubmatch(text[h.end:min(len(text), h.end+40)]); am != nil {
			if age, err := strconv.Atoi(am[1]); err == nil {
				m.Age = scraper.IntPtr(age)
			}
		}
		if h.role == scraper.RoleEnslaved && petitioner != "" {
			m.RelationshipHints = []scraper.RelationshipHint{{Type: scraper.RelEnslavedBy, RelatedTo: petitioner}}
		}
		out = append(out, m)
	}
	return out, nil
}

// findAnchored returns one hit per (role, name), earliest occurrence first.
func findAnchored(text string) []petitionHit {
	seen := make(map[string]bool)
	var hits []petitionHit
	for _, a := range petitionAnchors {
		nameIdx := a.re.SubexpIndex("name")
		nounIdx := a.re.SubexpIndex("noun")
		for _, loc := range a.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*nameIdx], loc[2*nameIdx+1]
			name, trimmedEnd := trimName(text[start:end])
			if name == "" {
				continue
			}
			key := string(a.role) + "\x00" + strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			h := petitionHit{start: start, end: start + trimmedEnd, anchor: a.label, role: a.role, name: name}
			if nounIdx >= 0 && loc[2*nounIdx] >= 0 {
				h.sex = nounSex(text[loc[2*nounIdx]:loc[2*nounIdx+1]])
			}
			hits = append(hits, h)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	return hits
}

// trimName drops stop words a greedy match swallowed from the following phrase.
func trimName(raw string) (string, int) {
	words := strings.Fields(raw)
	for len(words) > 0 && nameStopWords[strings.ToLower(strings.Trim(words[len(words)-1], "."))] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 || nameStopWords[strings.ToLower(words[0])] {
		return "", 0
	}
	name := strings.Join(words, " ")
	last := words[len(words)-1]
	return name, strings.LastIndex(raw, last) + len(last)
}

func nounSex(noun string) *scraper.Sex {
	var s scraper.Sex
	switch strings.ToLower(noun) {
	case "man", "boy":
		s = scraper.SexMale
	case "woman", "girl":
		s = scraper.SexFemale
	default:
		return nil
	}
	return &s
}

func hitConfidence(role scraper.Role) float64 {
	switch role {
	case scraper.RoleOwner:
		return PetitionerConfidence
	case scraper.RoleEnslaved:
		return SubjectConfidence
	default:
		return OfficialConfidence
	}
}
