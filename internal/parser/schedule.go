package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Schedule confidences.
const (
	ScheduleOwnerConfidence   = 0.85
	ScheduleNamedConfidence   = 0.80
	ScheduleUnnamedConfidence = 0.60
	SchedulePersonConfidence  = 0.60
)

var (
	// name? number? age sex colour rest
	scheduleRow = regexp.MustCompile(
		`^\s*(?:([A-Za-z][A-Za-z.'\- ]*?[A-Za-z.])\s+)?(?:(\d{1,3})\s+)?(\d{1,3})\s+([MFmf])\s+([BMWbmw])\b(.*)$`)
	scheduleOwnerHeader = regexp.MustCompile(`^\s*([A-Z][A-Za-z.'\-]+(?:\s+[A-Z][A-Za-z.'\-]*){1,3})\s*$`)
	schedulePage        = regexp.MustCompile(`(?i)^\s*page\s+(?:no\.?\s*)?(\d+)`)
)

// Schedule reads census schedules line by line. In slave schedules a row that
// starts with a name opens a new slaveholder group and every following row is
// an enslaved person held by that owner.
type Schedule struct {
	// Force parses the text even when the OCR router did not label it tabular.
	Force bool
}

// Name implements Parser.
func (Schedule) Name() string { return "schedule" }

// Parse implements Parser.
func (s Schedule) Parse(_ context.Context, page scraper.Page) ([]scraper.ExtractedMention, error) {
	docType := page.OCR.DocumentType
	if !docType.Tabular() && !s.Force {
		return nil, ErrNotApplicable
	}
	text := page.OCR.Text
	if strings.TrimSpace(text) == "" {
		return nil, ErrNotApplicable
	}
	slave := docType != scraper.DocPopulationSchedule

	locations := pageLocations(text)
	var (
		out    []scraper.ExtractedMention
		owner  string
		pageNo = 1
		row    int
		offset int
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		start := offset
		offset += len(line)
		trimmed := strings.TrimRight(line, "\r\n")

		if m := schedulePage.FindStringSubmatch(trimmed); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				pageNo = n
				row = 0
			}
			continue
		}
		fields := scheduleRow.FindStringSubmatch(trimmed)
		if fields == nil {
			if h := scheduleOwnerHeader.FindStringSubmatch(trimmed); slave && h != nil && !structural(h[1]) {
				owner = collapse(h[1])
				out = append(out, s.ownerMention(owner, text, start, start+len(trimmed), locations, pageNo, row))
			}
			continue
		}
		row++
		name, count := collapse(fields[1]), fields[2]
		age, _ := strconv.Atoi(fields[3])
		sex, _ := scraper.ParseSex(strings.ToUpper(fields[4]))
		colour := strings.ToUpper(fields[5])
		columns := strings.Fields(trimmed)
		snippet := Window(text, start, start+len(trimmed))

		if !slave {
			if name == "" {
				continue
			}
			out = append(out, scheduleMention(name, scraper.RoleUnknown, SchedulePersonConfidence,
				age, sex, colour, snippet, locations, pageNo, row, columns))
			continue
		}

		role, confidence, person := scraper.RoleEnslaved, ScheduleUnnamedConfidence, ""
		switch {
		case name != "" && count != "":
			// Owner name shares its row with the first enslaved person.
			owner = name
			out = append(out, s.ownerMention(owner, text, start, start+len(trimmed), locations, pageNo, row))
		case name != "":
			person, confidence = name, ScheduleNamedConfidence
		}
		m := scheduleMention(person, role, confidence, age, sex, colour, snippet, locations, pageNo, row, columns)
		if owner != "" {
			m.RelationshipHints = []scraper.RelationshipHint{{Type: scraper.RelEnslavedBy, RelatedTo: owner}}
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNotApplicable
	}
	return out, nil
}

func (Schedule) ownerMention(
	name, text string,
	start, end int,
	locations []string,
	pageNo, row int,
) scraper.ExtractedMention {
	return scraper.ExtractedMention{
		RawName:     name,
		Role:        scraper.RoleOwner,
		Locations:   locations,
		ContextText: Window(text, start, end),
		Confidence:  ScheduleOwnerConfidence,
		Shape:       scraper.TabularRow{Page: pageNo, Row: row, Columns: []string{name}},
	}
}

func scheduleMention(
	name string,
	role scraper.Role,
	confidence float64,
	age int,
	sex scraper.Sex,
	colour, snippet string,
	locations []string,
	pageNo, row int,
	columns []string,
) scraper.ExtractedMention {
	m := scraper.ExtractedMention{
		RawName:     name,
		Role:        role,
		Age:         scraper.IntPtr(age),
		Locations:   locations,
		ContextText: snippet,
		Confidence:  confidence,
		Shape:       scraper.TabularRow{Page: pageNo, Row: row, Colour: colour, Columns: columns},
	}
	if sex != "" {
		m.Sex = &sex
	}
	return m
}

// structural reports whether a heading line is form furniture rather than a name.
func structural(line string) bool {
	if RejectReason(line) != "" {
		return true
	}
	for _, w := range strings.Fields(line) {
		switch strings.ToLower(strings.Trim(w, ".,:")) {
		case "county", "state", "schedule", "inhabitants", "enumerated", "district", "township", "ward":
			return true
		}
	}
	return false
}
