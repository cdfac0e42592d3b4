package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// PedigreeConfidence is the role-free confidence of a family tree node.
const PedigreeConfidence = 0.70

// Pedigree defaults.
const (
	DefaultMaxGenerations = 8
	DefaultCutoffYear     = 1700
)

// PedigreePerson is one person in a pedigree document.
type PedigreePerson struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	BirthYear  *int   `json:"birthYear,omitempty"`
	DeathYear  *int   `json:"deathYear,omitempty"`
	BirthPlace string `json:"birthPlace,omitempty"`
	DeathPlace string `json:"deathPlace,omitempty"`
	FatherID   string `json:"fatherId,omitempty"`
	MotherID   string `json:"motherId,omitempty"`
}

// PedigreeDoc is the JSON a tree service returns for a person and their ancestors.
type PedigreeDoc struct {
	RootID  string           `json:"rootId"`
	Persons []PedigreePerson `json:"persons"`
}

// PedigreeRecord is a visited tree node.
type PedigreeRecord struct {
	PedigreePerson
	Generation int
	Locations  []string
}

// PedigreeEdge is a parent to child link between two visited nodes.
type PedigreeEdge struct {
	ParentID string
	ChildID  string
}

// DecodePedigree parses a pedigree document.
func DecodePedigree(data []byte) (PedigreeDoc, error) {
	var doc PedigreeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return PedigreeDoc{}, fmt.Errorf("decode pedigree: %w", err)
	}
	if doc.RootID == "" && len(doc.Persons) > 0 {
		doc.RootID = doc.Persons[0].ID
	}
	return doc, nil
}

// Walk climbs parent links breadth first from the root. It stops at
// maxGenerations and does not climb past people born before cutoffYear.
func Walk(doc PedigreeDoc, maxGenerations, cutoffYear int) ([]PedigreeRecord, []PedigreeEdge) {
	byID := make(map[string]PedigreePerson, len(doc.Persons))
	for _, p := range doc.Persons {
		byID[p.ID] = p
	}
	root, ok := byID[doc.RootID]
	if !ok {
		return nil, nil
	}

	type item struct {
		person PedigreePerson
		gen    int
	}
	visited := map[string]bool{root.ID: true}
	queue := []item{{person: root}}
	var (
		records []PedigreeRecord
		edges   []PedigreeEdge
	)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		records = append(records, PedigreeRecord{
			PedigreePerson: cur.person,
			Generation:     cur.gen,
			Locations:      placesOf(cur.person),
		})
		if cur.gen >= maxGenerations {
			continue
		}
		if cur.person.BirthYear != nil && *cur.person.BirthYear < cutoffYear {
			continue
		}
		for _, parentID := range []string{cur.person.FatherID, cur.person.MotherID} {
			parent, ok := byID[parentID]
			if parentID == "" || !ok {
				continue
			}
			edges = append(edges, PedigreeEdge{ParentID: parentID, ChildID: cur.person.ID})
			if visited[parentID] {
				continue
			}
			visited[parentID] = true
			queue = append(queue, item{person: parent, gen: cur.gen + 1})
		}
	}
	return records, edges
}

// Places returns the distinct birth and death places of p.
func (p PedigreePerson) Places() []string {
	return placesOf(p)
}

func placesOf(p PedigreePerson) []string {
	var out []string
	for _, place := range []string{p.BirthPlace, p.DeathPlace} {
		if place != "" && !containsFold(out, place) {
			out = append(out, place)
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Pedigree turns a family tree document into one mention per visited person,
// with a parent_of hint on each parent.
type Pedigree struct {
	MaxGenerations int
	CutoffYear     int
}

// Name implements Parser.
func (Pedigree) Name() string { return "pedigree" }

// Parse implements Parser.
func (p Pedigree) Parse(_ context.Context, page scraper.Page) ([]scraper.ExtractedMention, error) {
	data := page.Body
	if !strings.Contains(strings.ToLower(page.ContentType), "json") {
		data = []byte(page.OCR.Text)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotApplicable
	}
	doc, err := DecodePedigree(data)
	if err != nil {
		return nil, err
	}
	if len(doc.Persons) == 0 {
		return nil, ErrNotApplicable
	}

	maxGen, cutoff := p.MaxGenerations, p.CutoffYear
	if maxGen <= 0 {
		maxGen = DefaultMaxGenerations
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoffYear
	}
	records, edges := Walk(doc, maxGen, cutoff)

	names := make(map[string]string, len(records))
	for _, r := range records {
		names[r.ID] = collapse(r.Name)
	}
	hints := make(map[string][]scraper.RelationshipHint)
	for _, e := range edges {
		if child := names[e.ChildID]; child != "" {
			hints[e.ParentID] = append(hints[e.ParentID],
				scraper.RelationshipHint{Type: scraper.RelParentOf, RelatedTo: child})
		}
	}

	out := make([]scraper.ExtractedMention, 0, len(records))
	for _, r := range records {
		name := names[r.ID]
		if name == "" {
			continue
		}
		m := scraper.ExtractedMention{
			RawName:           name,
			Role:              scraper.RoleUnknown,
			BirthYearEstimate: r.BirthYear,
			Locations:         r.Locations,
			ContextText:       describe(r, names),
			RelationshipHints: hints[r.ID],
			Confidence:        PedigreeConfidence,
			Shape: scraper.PedigreeNode{
				FSID:       r.ID,
				FatherID:   r.FatherID,
				MotherID:   r.MotherID,
				Generation: r.Generation,
				DeathYear:  r.DeathYear,
			},
		}
		if sex, ok := scraper.ParseSex(r.Gender); ok {
			m.Sex = &sex
		}
		out = append(out, m)
	}
	return out, nil
}

func describe(r PedigreeRecord, names map[string]string) string {
	var b strings.Builder
	b.WriteString(collapse(r.Name))
	switch {
	case r.BirthYear != nil && r.DeathYear != nil:
		fmt.Fprintf(&b, " (%d-%d)", *r.BirthYear, *r.DeathYear)
	case r.BirthYear != nil:
		fmt.Fprintf(&b, " (b. %d)", *r.BirthYear)
	case r.DeathYear != nil:
		fmt.Fprintf(&b, " (d. %d)", *r.DeathYear)
	}
	if len(r.Locations) > 0 {
		b.WriteString(", " + strings.Join(r.Locations, "; "))
	}
	if f := names[r.FatherID]; f != "" {
		b.WriteString(", father " + f)
	}
	if m := names[r.MotherID]; m != "" {
		b.WriteString(", mother " + m)
	}
	fmt.Fprintf(&b, ", generation %d, FamilySearch ID %s", r.Generation, r.ID)
	return b.String()
}
