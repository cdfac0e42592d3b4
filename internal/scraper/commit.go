package scraper

import (
	"fmt"
	"time"
)

// Action is what the identity resolver decided for a mention.
type Action string

// Resolver actions.
const (
	ActionLink        Action = "link"
	ActionReview      Action = "review"
	ActionCreate      Action = "create"
	ActionUnconfirmed Action = "unconfirmed"
	ActionFailed      Action = "failed"
)

// Outcome is the resolved write plan for one accepted mention.
type Outcome struct {
	Mention    ClassifiedMention
	Action     Action
	Confidence float64
	// CanonicalID is the linked canonical for ActionLink.
	CanonicalID int64
	// SameAs points at an earlier outcome of the same commit whose new canonical this one links to.
	SameAs *int
	// Enrichment carries fields to fill on the linked canonical when they are missing.
	Enrichment   *CanonicalPerson
	NewCanonical *CanonicalPerson
	Variant      *NameVariant
	Unconfirmed  *UnconfirmedPerson
	Review       *MatchQueueItem
	// ReviewSameAs maps a review candidate slot to an earlier outcome of the
	// same commit whose new canonical fills that slot.
	ReviewSameAs map[int]int
	Err          error
}

// ResolvedReview returns a copy of the review item with same-commit candidate
// slots filled from canonicalIDs, the IDs assigned to earlier outcomes.
func (o Outcome) ResolvedReview(i int, canonicalIDs []int64) (MatchQueueItem, error) {
	item := *o.Review
	if len(o.ReviewSameAs) == 0 {
		return item, nil
	}
	item.CandidateCanonicalIDs = append([]int64(nil), item.CandidateCanonicalIDs...)
	for slot, idx := range o.ReviewSameAs {
		if slot < 0 || slot >= len(item.CandidateCanonicalIDs) || idx < 0 || idx >= i || canonicalIDs[idx] == 0 {
			return MatchQueueItem{}, DBFatal("commit", fmt.Errorf("outcome %d reviews invalid candidate %d -> %d", i, slot, idx))
		}
		item.CandidateCanonicalIDs[slot] = canonicalIDs[idx]
	}
	return item, nil
}

// PendingRelationship links two outcomes of the same commit by index.
type PendingRelationship struct {
	Subject    int
	Object     int
	Type       RelationshipType
	Confidence float64
}

// CommitRequest is everything one URL pass writes in a single transaction.
type CommitRequest struct {
	// Entry is nil when the write does not come from the queue (batch API).
	Entry         *QueueEntry
	SourceURL     string
	Snapshot      *ArchivedURL
	Outcomes      []Outcome
	Relationships []PendingRelationship
	Summary       ResultSummary
	CompletedAt   time.Time
}

// CommitResult reports what the transaction produced.
type CommitResult struct {
	// CanonicalIDs holds the canonical each outcome resolved to, 0 when none.
	CanonicalIDs     []int64
	SnapshotInserted bool
	VariantsInserted int
	CanonicalCreated int
	Relationships    int
}

// CandidateQuery narrows canonical candidates before scoring.
type CandidateQuery struct {
	FullName       string
	FirstSoundex   string
	LastSoundex    string
	FirstMetaphone string
	LastMetaphone  string
	PersonType     PersonType
	Limit          int
}
