package progress

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event reports.
type Stage string

// Entry lifecycle stages.
const (
	StageEntryStart  Stage = "ENTRY_START"
	StageEntryDone   Stage = "ENTRY_DONE"
	StageEntryRetry  Stage = "ENTRY_RETRY"
	StageEntryFailed Stage = "ENTRY_FAILED"
)

// Pipeline stages, one event each when the stage finishes.
const (
	StageFetch    Stage = "FETCH"
	StageOCR      Stage = "OCR"
	StageParse    Stage = "PARSE"
	StageClassify Stage = "CLASSIFY"
	StageResolve  Stage = "RESOLVE"
	StageCommit   Stage = "COMMIT"
)

// Terminal reports whether the stage closes an entry attempt.
func (s Stage) Terminal() bool {
	return s == StageEntryDone || s == StageEntryRetry || s == StageEntryFailed
}

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures one step of an entry's progress.
type Event struct {
	// ID is a time-ordered UUID assigned by the emitter.
	ID uuid.UUID `json:"id"`
	// EntryID is the queue entry the event belongs to.
	EntryID int64 `json:"entryId"`
	// Attempt is the entry's retry count when the attempt started.
	Attempt int       `json:"attempt"`
	TS      time.Time `json:"ts"`
	Stage   Stage     `json:"stage"`
	// Site is the lowercase host of URL.
	Site     string `json:"site,omitempty"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
	// Bytes is the fetched body size for FETCH events.
	Bytes       int64         `json:"bytes,omitempty"`
	StatusClass StatusClass   `json:"statusClass,omitempty"`
	Dur         time.Duration `json:"durationNs,omitempty"`
	// Count is stage specific: mentions parsed, accepted, resolved or persons found.
	Count int `json:"count,omitempty"`
	// Note carries low-volume context such as error text or the OCR service.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.EntryID <= 0 {
		return errors.New("entry id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageEntryStart, StageEntryDone, StageEntryRetry, StageParse, StageClassify, StageResolve, StageCommit, StageOCR:
	case StageEntryFailed:
		if e.Note == "" {
			return errors.New("entry failure requires a note")
		}
	case StageFetch:
		if e.Site == "" {
			return errors.New("fetch requires site")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Attributes are the routing attributes attached to a published event.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"entry_id": strconv.FormatInt(e.EntryID, 10),
		"stage":    string(e.Stage),
		"category": e.Category,
	}
}

// NewID returns a time-ordered event ID, falling back to a random one.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
