package scraper

import (
	"context"
	"io"
	"time"
)

// Queue is the durable work queue of URLs.
type Queue interface {
	Enqueue(ctx context.Context, entries []NewEntry) ([]int64, error)
	// Claim moves the best pending entry to processing. It returns ErrQueueEmpty when nothing is ready.
	Claim(ctx context.Context, now time.Time) (QueueEntry, error)
	// Fail records a failed attempt and returns the status the entry moved to.
	Fail(ctx context.Context, entry QueueEntry, cause error, summary ResultSummary, now time.Time) (QueueStatus, error)
	ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error)
	Requeue(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (QueueEntry, error)
	Stats(ctx context.Context) (QueueStats, error)
}

// Store commits resolved mentions and answers candidate lookups.
type Store interface {
	FindCandidates(ctx context.Context, q CandidateQuery) ([]CanonicalPerson, error)
	// Commit writes a URL pass atomically and, when an entry is set, completes it.
	Commit(ctx context.Context, req CommitRequest) (CommitResult, error)
	LatestSnapshot(ctx context.Context, url string) (ArchivedURL, error)
}

// ReviewStore serves the human review queue.
type ReviewStore interface {
	ListReviews(ctx context.Context, status MatchStatus, limit int) ([]MatchQueueItem, error)
	GetReview(ctx context.Context, id int64) (ReviewDetail, error)
	// ApplyReview locks the item, verifies it is pending and performs the decision.
	ApplyReview(ctx context.Context, decision ReviewDecision) error
}

// ArchiveRepository is the watchdog's view of archived snapshots.
type ArchiveRepository interface {
	DueForVerification(ctx context.Context, verifiedBefore time.Time, limit int) ([]ArchivedURL, error)
	MarkVerified(ctx context.Context, id int64, at time.Time) error
	// RecordChange stores a new snapshot and its content_changed alert together.
	RecordChange(ctx context.Context, snapshot ArchivedURL, alert WatchdogAlert) error
	RecordAlert(ctx context.Context, alert WatchdogAlert) error
}

// Fetcher retrieves a URL.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// BlobStore keeps archived bytes by key.
type BlobStore interface {
	// PutObject stores the bytes under key and returns their URI.
	PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor turns document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, body []byte, contentType string) (OCRResult, error)
}

// Publisher pushes status events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
