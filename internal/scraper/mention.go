package scraper

// Role is a person's part in a document.
type Role string

// Roles assigned by parsers and the classifier.
const (
	RoleOwner     Role = "owner"
	RoleEnslaved  Role = "enslaved"
	RoleOfficial  Role = "official"
	RoleUnknown   Role = "unknown"
	RoleAmbiguous Role = "ambiguous"
)

// Persistable reports whether a person with this role is stored.
func (r Role) Persistable() bool {
	return r == RoleOwner || r == RoleEnslaved || r == RoleAmbiguous
}

// Sex is a recorded sex marker.
type Sex string

// Sex values found in records.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex maps a column value to a Sex. ok is false for blanks and unknown markers.
func ParseSex(v string) (Sex, bool) {
	switch v {
	case "M", "m", "Male", "male", "MALE":
		return SexMale, true
	case "F", "f", "Female", "female", "FEMALE":
		return SexFemale, true
	default:
		return "", false
	}
}

// RelationshipType is a directed edge kind between two persons.
type RelationshipType string

// Supported relationships.
const (
	RelParentOf   RelationshipType = "parent_of"
	RelSpouseOf   RelationshipType = "spouse_of"
	RelEnslavedBy RelationshipType = "enslaved_by"
	RelSiblingOf  RelationshipType = "sibling_of"
)

// AllowsSelf reports whether an edge of this type may connect a person to itself.
func (t RelationshipType) AllowsSelf() bool {
	return t != RelParentOf && t != RelSpouseOf
}

// RelationshipHint links a mention to another name on the same page.
type RelationshipHint struct {
	Type      RelationshipType `json:"type"`
	RelatedTo string           `json:"relatedTo"`
}

// Shape is the source layout a mention was read from.
type Shape interface {
	ShapeName() string
}

// TabularRow is a row of a schedule or an index panel.
type TabularRow struct {
	Page    int
	Row     int
	Colour  string
	Columns []string
}

// ShapeName implements Shape.
func (TabularRow) ShapeName() string { return "tabular_row" }

// ProseMention is a name found in running text.
type ProseMention struct {
	Offset int
	Anchor string
}

// ShapeName implements Shape.
func (ProseMention) ShapeName() string { return "prose" }

// PedigreeNode is one person in a family tree.
type PedigreeNode struct {
	FSID       string
	FatherID   string
	MotherID   string
	Generation int
	DeathYear  *int
}

// ShapeName implements Shape.
func (PedigreeNode) ShapeName() string { return "pedigree_node" }

// ExtractedMention is a candidate person produced by a parser. It is never
// stored as is.
type ExtractedMention struct {
	SourceURL         string
	PageTitle         string
	RawName           string
	Role              Role
	Age               *int
	Sex               *Sex
	BirthYearEstimate *int
	Locations         []string
	ContextText       string
	RelationshipHints []RelationshipHint
	Confidence        float64
	ExtractionMethod  string
	Shape             Shape
}

// ClassifiedMention carries the classifier's verdict for a mention.
type ClassifiedMention struct {
	ExtractedMention
	// Rule names the classifier rule that decided the role.
	Rule     string
	Rejected bool
	Reason   string
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
