package scraper

import "time"

// PersonType classifies a stored person.
type PersonType string

// Stored person types.
const (
	PersonOwner     PersonType = "owner"
	PersonEnslaved  PersonType = "enslaved"
	PersonAmbiguous PersonType = "ambiguous"
)

// PersonTypeFor maps a classifier role to the stored person type.
func PersonTypeFor(r Role) PersonType {
	switch r {
	case RoleOwner:
		return PersonOwner
	case RoleEnslaved:
		return PersonEnslaved
	default:
		return PersonAmbiguous
	}
}

// CanonicalPerson is the identity root every name variant points at.
type CanonicalPerson struct {
	ID                 int64
	CanonicalName      string
	FirstName          string
	MiddleName         string
	LastName           string
	Suffix             string
	FirstSoundex       string
	LastSoundex        string
	FirstMetaphone     string
	LastMetaphone      string
	Sex                *Sex
	BirthYearEstimate  *int
	DeathYearEstimate  *int
	PrimaryState       string
	PrimaryCounty      string
	PersonType         PersonType
	VerificationStatus string
	Confidence         float64
}

// NameVariant records one surface form linked to a canonical person.
type NameVariant struct {
	ID                  int64
	CanonicalPersonID   int64
	VariantName         string
	SourceURL           string
	SourceType          string
	MatchMethod         string
	MatchConfidence     float64
	LevenshteinDistance *int
}

// UnconfirmedStatus is the review state of an unconfirmed person.
type UnconfirmedStatus string

// Unconfirmed person states.
const (
	UnconfirmedNeedsReview UnconfirmedStatus = "needs_review"
	UnconfirmedPending     UnconfirmedStatus = "pending"
	UnconfirmedRejected    UnconfirmedStatus = "rejected"
	UnconfirmedLinked      UnconfirmedStatus = "linked"
)

// UnconfirmedPerson is a mention that survived classification without a canonical link.
type UnconfirmedPerson struct {
	LeadID            string
	FullName          string
	PersonType        PersonType
	SourceURL         string
	SourcePageTitle   string
	ContextText       string
	Locations         []string
	Relationships     []RelationshipHint
	Sex               *Sex
	BirthYear         *int
	Confidence        float64
	Status            UnconfirmedStatus
	CanonicalPersonID *int64
	RejectionReason   string
	ExtractionMethod  string
}

// Relationship is a directed edge between canonical persons.
type Relationship struct {
	ID         int64
	SubjectID  int64
	ObjectID   int64
	Type       RelationshipType
	SourceURL  string
	Confidence float64
}

// MatchStatus is the state of a review queue item.
type MatchStatus string

// Review item states.
const (
	MatchPending   MatchStatus = "pending"
	MatchResolved  MatchStatus = "resolved"
	MatchAbandoned MatchStatus = "abandoned"
)

// Resolution is an operator's verdict on a review item.
type Resolution string

// Review resolutions.
const (
	ResolutionLinkedExisting  Resolution = "linked_existing"
	ResolutionCreatedNew      Resolution = "created_new"
	ResolutionMarkedDuplicate Resolution = "marked_duplicate"
	ResolutionNotAPerson      Resolution = "not_a_person"
)

// ParseResolution validates an operator supplied resolution.
func ParseResolution(v string) (Resolution, bool) {
	switch r := Resolution(v); r {
	case ResolutionLinkedExisting, ResolutionCreatedNew, ResolutionMarkedDuplicate, ResolutionNotAPerson:
		return r, true
	default:
		return "", false
	}
}

// MatchQueueItem is an ambiguous identity decision awaiting a human.
type MatchQueueItem struct {
	ID                    int64
	UnconfirmedName       string
	UnconfirmedPersonID   string
	CandidateCanonicalIDs []int64
	CandidateScores       []float64
	LocationContext       string
	Priority              int
	Status                MatchStatus
	Resolution            Resolution
	ResolvedBy            string
	ResolvedAt            *time.Time
	CreatedAt             time.Time
}

// ReviewDetail is a review item with its unconfirmed person and candidates.
type ReviewDetail struct {
	Item        MatchQueueItem
	Unconfirmed *UnconfirmedPerson
	Candidates  []CanonicalPerson
}

// ReviewDecision is the write an operator's resolution turns into.
type ReviewDecision struct {
	ItemID      int64
	Resolution  Resolution
	CanonicalID int64
	// NewCanonical is set for created_new.
	NewCanonical *CanonicalPerson
	// Variant is set when the unconfirmed name is linked to a canonical.
	Variant    *NameVariant
	ResolvedBy string
	ResolvedAt time.Time
}

// AlertType classifies a watchdog finding.
type AlertType string

// Watchdog alert types.
const (
	AlertContentChanged AlertType = "content_changed"
	AlertUnavailable    AlertType = "unavailable"
	AlertTimeout        AlertType = "timeout"
	AlertBlocked        AlertType = "blocked"
	AlertSSLError       AlertType = "ssl_error"
)

// WatchdogAlert is stored whenever a verification finds something other than ok.
type WatchdogAlert struct {
	ID            int64
	ArchivedURLID int64
	URL           string
	Type          AlertType
	PreviousHash  string
	CurrentHash   string
	Detail        string
	CreatedAt     time.Time
}
