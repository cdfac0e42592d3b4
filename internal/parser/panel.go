package parser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// PanelConfidence is assigned to rows read from a volunteer transcription panel.
const PanelConfidence = 0.95

// Panel reads the transcribed image index some archives render next to the
// scanned page. Rows carry their own role labels, so they beat OCR.
type Panel struct{}

// Name implements Parser.
func (Panel) Name() string { return "panel" }

type panelColumns struct {
	name, role, age, sex, colour, place int
}

// Parse implements Parser.
func (Panel) Parse(_ context.Context, page scraper.Page) ([]scraper.ExtractedMention, error) {
	if !strings.Contains(strings.ToLower(page.ContentType), "html") || len(page.Body) == 0 {
		return nil, ErrNotApplicable
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []scraper.ExtractedMention
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		out = append(out, panelRows(table)...)
	})
	if len(out) == 0 {
		return nil, ErrNotApplicable
	}
	return out, nil
}

func panelRows(table *goquery.Selection) []scraper.ExtractedMention {
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil
	}
	cols, ok := panelHeader(rows.First())
	if !ok {
		return nil
	}

	var lines []string
	var cells [][]string
	rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("td,th").Each(func(_ int, td *goquery.Selection) {
			row = append(row, collapse(td.Text()))
		})
		if len(row) > 0 {
			cells = append(cells, row)
			lines = append(lines, strings.Join(row, " | "))
		}
	})
	text := strings.Join(lines, "\n")

	var out []scraper.ExtractedMention
	owner := ""
	offset := 0
	for i, row := range cells {
		start := offset
		offset += len(lines[i]) + 1
		name := cell(row, cols.name)
		if name == "" {
			continue
		}
		m := scraper.ExtractedMention{
			RawName:     name,
			Role:        panelRole(cell(row, cols.role)),
			ContextText: Window(text, start, start+len(lines[i])),
			Confidence:  PanelConfidence,
			Shape: scraper.TabularRow{
				Page:    1,
				Row:     i + 1,
				Colour:  cell(row, cols.colour),
				Columns: row,
			},
		}
		if age, err := strconv.Atoi(strings.TrimSpace(cell(row, cols.age))); err == nil {
			m.Age = scraper.IntPtr(age)
		}
		if sex, ok := scraper.ParseSex(cell(row, cols.sex)); ok {
			m.Sex = &sex
		}
		if place := cell(row, cols.place); place != "" {
			m.Locations = []string{place}
		}
		switch m.Role {
		case scraper.RoleOwner:
			owner = name
		case scraper.RoleEnslaved:
			if owner != "" {
				m.RelationshipHints = []scraper.RelationshipHint{{Type: scraper.RelEnslavedBy, RelatedTo: owner}}
			}
		}
		out = append(out, m)
	}
	return out
}

func panelHeader(tr *goquery.Selection) (panelColumns, bool) {
	cols := panelColumns{name: -1, role: -1, age: -1, sex: -1, colour: -1, place: -1}
	tr.Find("td,th").Each(func(i int, s *goquery.Selection) {
		switch h := strings.ToLower(collapse(s.Text())); {
		case h == "name" || h == "full name" || h == "names":
			cols.name = i
		case strings.HasPrefix(h, "role") || h == "relationship" || h == "relationship to head":
			cols.role = i
		case h == "age":
			cols.age = i
		case h == "sex" || h == "gender":
			cols.sex = i
		case h == "race" || h == "color" || h == "colour":
			cols.colour = i
		case strings.Contains(h, "place") || h == "residence":
			cols.place = i
		}
	})
	return cols, cols.name >= 0 && cols.role >= 0
}

func panelRole(label string) scraper.Role {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "owner", "slaveholder", "slave owner", "enslaver":
		return scraper.RoleOwner
	case "slave", "enslaved", "enslaved person":
		return scraper.RoleEnslaved
	case "witness", "official", "clerk", "justice", "commissioner":
		return scraper.RoleOfficial
	default:
		return scraper.RoleUnknown
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
