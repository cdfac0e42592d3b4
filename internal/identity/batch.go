package identity

import (
	"context"
	"fmt"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// MaxBatch is the largest number of mentions ResolveBatch accepts.
const MaxBatch = 100

// Committer writes a planned batch atomically.
type Committer interface {
	Commit(ctx context.Context, req scraper.CommitRequest) (scraper.CommitResult, error)
}

// BatchItem is the per-mention result of ResolveBatch.
type BatchItem struct {
	Name        string         `json:"name"`
	Action      scraper.Action `json:"action"`
	Confidence  float64        `json:"confidence"`
	CanonicalID *int64         `json:"canonicalId,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// BatchCounts aggregates a batch.
type BatchCounts struct {
	Matched int `json:"matched"`
	Created int `json:"created"`
	Queued  int `json:"queued"`
	Failed  int `json:"failed"`
}

// BatchResult is returned by ResolveBatch.
type BatchResult struct {
	Items  []BatchItem `json:"items"`
	Counts BatchCounts `json:"counts"`
}

// ResolveBatch resolves up to MaxBatch mentions from one source and commits
// the result in a single transaction.
func (r *Resolver) ResolveBatch(
	ctx context.Context,
	committer Committer,
	sourceURL string,
	mentions []scraper.ClassifiedMention,
) (BatchResult, error) {
	if len(mentions) > MaxBatch {
		return BatchResult{}, fmt.Errorf("batch of %d mentions exceeds limit %d", len(mentions), MaxBatch)
	}
	outcomes, rels := r.Plan(ctx, sourceURL, mentions)
	committed, err := committer.Commit(ctx, scraper.CommitRequest{
		SourceURL:     sourceURL,
		Outcomes:      outcomes,
		Relationships: rels,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("commit batch: %w", err)
	}

	var res BatchResult
	for i, o := range outcomes {
		item := BatchItem{Name: o.Mention.RawName, Action: o.Action, Confidence: o.Confidence}
		if i < len(committed.CanonicalIDs) && committed.CanonicalIDs[i] > 0 {
			id := committed.CanonicalIDs[i]
			item.CanonicalID = &id
		}
		switch o.Action {
		case scraper.ActionLink:
			res.Counts.Matched++
		case scraper.ActionCreate:
			res.Counts.Created++
		case scraper.ActionReview, scraper.ActionUnconfirmed:
			res.Counts.Queued++
		case scraper.ActionFailed:
			res.Counts.Failed++
			if o.Err != nil {
				item.Error = o.Err.Error()
			}
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}
