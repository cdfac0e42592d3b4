package scraper

import (
	"time"
)

// QueueStatus is the lifecycle state of a QueueEntry.
type QueueStatus string

// Supported queue states.
const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// Terminal reports whether no worker will pick the entry up again without operator action.
func (s QueueStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FetchMode selects how the fetcher retrieves a URL.
type FetchMode string

// Supported fetch modes.
const (
	FetchModePlain    FetchMode = "plain"
	FetchModeHeadless FetchMode = "headless"
	// FetchModeAuto fetches plainly first and promotes to headless for SPA shells.
	FetchModeAuto FetchMode = "auto"
)

// Normalize maps unknown or empty modes to headless.
func (m FetchMode) Normalize() FetchMode {
	switch m {
	case FetchModePlain, FetchModeAuto:
		return m
	default:
		return FetchModeHeadless
	}
}

// Default queue values.
const (
	DefaultMaxRetries = 3
	DefaultCategory   = "generic"
)

// QueueEntry is one URL awaiting extraction.
type QueueEntry struct {
	ID            int64
	URL           string
	Category      string
	Priority      int
	Status        QueueStatus
	FetchMode     FetchMode
	SubmittedAt   time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	NextAttemptAt *time.Time
	RetryCount    int
	MaxRetries    int
	ErrorMessage  string
	ResultSummary *ResultSummary
}

// NewEntry describes a URL submitted to the queue.
type NewEntry struct {
	URL        string
	Category   string
	Priority   int
	FetchMode  FetchMode
	MaxRetries int
}

// ResultSummary is written to an entry on every terminal transition.
type ResultSummary struct {
	PersonsFound    int     `json:"personsFound"`
	DocumentsFound  int     `json:"documentsFound"`
	DurationSeconds float64 `json:"durationSeconds"`
	Linked          int     `json:"linked,omitempty"`
	Created         int     `json:"created,omitempty"`
	Queued          int     `json:"queued,omitempty"`
	Unconfirmed     int     `json:"unconfirmed,omitempty"`
	Rejected        int     `json:"rejected,omitempty"`
	DocumentType    string  `json:"documentType,omitempty"`
}

// QueueStats counts entries per status.
type QueueStats map[QueueStatus]int64

// FetchRequest asks the fetcher for one URL.
type FetchRequest struct {
	URL       string
	Category  string
	Mode      FetchMode
	// NoArchive skips the archive side effect (watchdog checks).
	NoArchive bool
}

// FetchResponse is what the fetcher returns for a successful retrieval.
type FetchResponse struct {
	URL          string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Headers      map[string][]string
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	// Snapshot is set when the bytes were archived; it is nil for watchdog checks.
	Snapshot *ArchivedURL
}

// ArchivedURL is an immutable snapshot of the bytes a URL returned.
type ArchivedURL struct {
	ID              int64
	URL             string
	Category        string
	ContentHash     string
	ContentType     string
	StorageKey      string
	FirstArchivedAt time.Time
	LastVerifiedAt  *time.Time
	Metadata        map[string]string
}

// DocumentType is the OCR router's guess at the layout of a document.
type DocumentType string

// Document types recognised by the structure heuristic.
const (
	DocSlaveSchedule      DocumentType = "slave_schedule"
	DocPopulationSchedule DocumentType = "population_schedule"
	DocPetition           DocumentType = "petition"
	DocProbate            DocumentType = "probate"
	DocUncertain          DocumentType = "uncertain"
	DocMachineReadable    DocumentType = "machine_readable"
)

// Tabular reports whether parsers should treat the text as rows.
func (d DocumentType) Tabular() bool {
	return d == DocSlaveSchedule || d == DocPopulationSchedule
}

// OCRResult is the text extracted from a document.
type OCRResult struct {
	// Title is the HTML <title> when the document had one.
	Title        string
	Text         string
	Confidence   float64
	PageCount    int
	Service      string
	PerPageText  []string
	DocumentType DocumentType
	// Alternates holds every engine output that was considered.
	Alternates []OCRAttempt
}

// OCRAttempt records one engine's output during routing.
type OCRAttempt struct {
	Service    string
	Confidence float64
	Err        string
}

// Page is the parser input: fetched bytes plus their text rendering.
type Page struct {
	URL         string
	Category    string
	Title       string
	ContentType string
	Body        []byte
	OCR         OCRResult
}
