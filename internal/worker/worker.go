// Package worker implements the per-entry extraction pipeline: fetch, OCR,
// parse, classify, resolve and commit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/telemetry"
)

// DefaultSoftCap is how long an entry may run before it is reported as slow.
const DefaultSoftCap = 10 * time.Minute

// Parser turns a page into extracted mentions.
type Parser interface {
	Parse(ctx context.Context, page scraper.Page) ([]scraper.ExtractedMention, string, error)
}

// Classifier assigns final roles to a page's mentions.
type Classifier interface {
	Classify(pageText string, mentions []scraper.ExtractedMention) []scraper.ClassifiedMention
}

// Resolver plans the identity writes for classified mentions.
type Resolver interface {
	Plan(ctx context.Context, sourceURL string, mentions []scraper.ClassifiedMention) ([]scraper.Outcome, []scraper.PendingRelationship)
}

// Deps are the collaborators a Worker drives.
type Deps struct {
	Queue      scraper.Queue
	Fetcher    scraper.Fetcher
	OCR        scraper.TextExtractor
	Parser     Parser
	Classifier Classifier
	Resolver   Resolver
	Store      scraper.Store
	Clock      scraper.Clock
	Events     progress.Emitter
}

// Config controls Worker behavior.
type Config struct {
	PollInterval time.Duration
	// SoftCap is logged when exceeded; the entry keeps running.
	SoftCap time.Duration
}

// Worker claims queue entries and runs them through the pipeline.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = progress.NopEmitter{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = DefaultSoftCap
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks, claiming entries until the context finishes. The entry in
// flight when ctx is canceled runs to completion.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, _, err := w.ProcessNext(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, scraper.ErrQueueEmpty):
		case ctx.Err() != nil:
			return
		default:
			w.logger.Error("claim failed", zap.Error(err))
		}

		timer := time.NewTimer(w.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// ProcessNext claims one entry and processes it. It returns
// scraper.ErrQueueEmpty when nothing is ready.
func (w *Worker) ProcessNext(ctx context.Context) (scraper.QueueEntry, scraper.QueueStatus, error) {
	entry, err := w.deps.Queue.Claim(ctx, w.deps.Clock.Now())
	if err != nil {
		if errors.Is(err, scraper.ErrQueueEmpty) {
			return scraper.QueueEntry{}, "", err
		}
		return scraper.QueueEntry{}, "", fmt.Errorf("claim entry: %w", err)
	}
	status := w.Process(context.WithoutCancel(ctx), entry)
	return entry, status, nil
}

// Process runs one claimed entry through the pipeline and records its
// transition. It returns the status the entry ended in, or processing when
// the transition could not be written.
func (w *Worker) Process(ctx context.Context, entry scraper.QueueEntry) scraper.QueueStatus {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(
		zap.Int64("entry_id", entry.ID),
		zap.String("url", entry.URL),
		zap.String("category", entry.Category),
		zap.Int("attempt", entry.RetryCount),
	)
	ctx, span := telemetry.StartStage(ctx, "entry",
		telemetry.AttrEntryID.Int64(entry.ID),
		telemetry.AttrURL.String(entry.URL),
		telemetry.AttrCategory.String(entry.Category),
	)
	defer span.End()

	start := time.Now()
	softCap := time.AfterFunc(w.cfg.SoftCap, func() {
		metrics.ObserveSoftCapExceeded()
		logger.Warn("entry exceeded soft cap", zap.Duration("soft_cap", w.cfg.SoftCap))
	})
	defer softCap.Stop()

	w.emit(entry, progress.StageEntryStart, nil)
	logger.Info("entry started")

	summary, err := w.pipeline(ctx, entry, start)
	summary.DurationSeconds = time.Since(start).Seconds()
	if err == nil {
		metrics.ObserveEntry("completed")
		w.emit(entry, progress.StageEntryDone, func(e *progress.Event) {
			e.Dur = time.Since(start)
			e.Count = summary.PersonsFound
		})
		logger.Info("entry completed",
			zap.Int("persons", summary.PersonsFound),
			zap.Int("linked", summary.Linked),
			zap.Int("created", summary.Created),
			zap.Int("queued", summary.Queued),
			zap.Duration("duration", time.Since(start)))
		return scraper.StatusCompleted
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	status, ferr := w.deps.Queue.Fail(ctx, entry, err, summary, w.deps.Clock.Now())
	if ferr != nil {
		logger.Error("record failure failed", zap.NamedError("cause", err), zap.Error(ferr))
		return scraper.StatusProcessing
	}

	stage, outcome := progress.StageEntryFailed, "failed"
	if status == scraper.StatusPending {
		stage, outcome = progress.StageEntryRetry, "retried"
	}
	metrics.ObserveEntry(outcome)
	w.emit(entry, stage, func(e *progress.Event) {
		e.Dur = time.Since(start)
		e.Note = err.Error()
	})
	logger.Warn("entry attempt failed",
		zap.String("kind", string(scraper.KindOf(err))),
		zap.Bool("retryable", scraper.IsRetryable(err)),
		zap.String("status", string(status)),
		zap.Error(err))
	return status
}

func (w *Worker) pipeline(ctx context.Context, entry scraper.QueueEntry, start time.Time) (scraper.ResultSummary, error) {
	var summary scraper.ResultSummary

	var resp scraper.FetchResponse
	err := w.stage(ctx, entry, progress.StageFetch, func(ctx context.Context, evt *progress.Event) error {
		var err error
		resp, err = w.deps.Fetcher.Fetch(ctx, scraper.FetchRequest{
			URL:      entry.URL,
			Category: entry.Category,
			Mode:     entry.FetchMode,
		})
		evt.Bytes = int64(len(resp.Body))
		evt.StatusClass = progress.ClassifyStatus(resp.StatusCode)
		return err
	})
	if err != nil {
		return summary, err
	}

	var text scraper.OCRResult
	err = w.stage(ctx, entry, progress.StageOCR, func(ctx context.Context, evt *progress.Event) error {
		var err error
		text, err = w.deps.OCR.Extract(ctx, resp.Body, resp.ContentType)
		if err != nil {
			return err
		}
		metrics.ObserveOCR(text.Service, string(text.DocumentType))
		evt.Count = text.PageCount
		evt.Note = text.Service
		return nil
	})
	if err != nil {
		return summary, err
	}
	summary.DocumentsFound = 1
	summary.DocumentType = string(text.DocumentType)

	var mentions []scraper.ExtractedMention
	err = w.stage(ctx, entry, progress.StageParse, func(ctx context.Context, evt *progress.Event) error {
		page := scraper.Page{
			URL:         entry.URL,
			Category:    entry.Category,
			Title:       text.Title,
			ContentType: resp.ContentType,
			Body:        resp.Body,
			OCR:         text,
		}
		var (
			parserName string
			err        error
		)
		mentions, parserName, err = w.deps.Parser.Parse(ctx, page)
		evt.Count = len(mentions)
		evt.Note = parserName
		return err
	})
	if err != nil {
		return summary, err
	}

	var classified []scraper.ClassifiedMention
	_ = w.stage(ctx, entry, progress.StageClassify, func(_ context.Context, evt *progress.Event) error {
		classified = w.deps.Classifier.Classify(text.Text, mentions)
		for _, m := range classified {
			metrics.ObserveMention(string(m.Role), m.Rejected)
			if m.Rejected {
				summary.Rejected++
				w.logger.Debug("mention rejected",
					zap.Int64("entry_id", entry.ID),
					zap.String("name", m.RawName),
					zap.String("rule", m.Rule),
					zap.String("reason", m.Reason))
			}
		}
		evt.Count = len(classified) - summary.Rejected
		return nil
	})

	var (
		outcomes []scraper.Outcome
		rels     []scraper.PendingRelationship
	)
	_ = w.stage(ctx, entry, progress.StageResolve, func(ctx context.Context, evt *progress.Event) error {
		outcomes, rels = w.deps.Resolver.Plan(ctx, entry.URL, classified)
		tally(&summary, outcomes)
		evt.Count = len(outcomes)
		return nil
	})

	err = w.stage(ctx, entry, progress.StageCommit, func(ctx context.Context, evt *progress.Event) error {
		summary.DurationSeconds = time.Since(start).Seconds()
		e := entry
		res, err := w.deps.Store.Commit(ctx, scraper.CommitRequest{
			Entry:         &e,
			SourceURL:     entry.URL,
			Snapshot:      resp.Snapshot,
			Outcomes:      outcomes,
			Relationships: rels,
			Summary:       summary,
			CompletedAt:   w.deps.Clock.Now(),
		})
		if err != nil {
			return err
		}
		evt.Count = res.VariantsInserted + res.CanonicalCreated
		if res.SnapshotInserted {
			evt.Note = "snapshot archived"
		}
		return nil
	})
	return summary, err
}

// tally folds resolver outcomes into the result summary.
func tally(summary *scraper.ResultSummary, outcomes []scraper.Outcome) {
	for _, o := range outcomes {
		metrics.ObserveResolution(string(o.Action))
		switch o.Action {
		case scraper.ActionLink:
			summary.Linked++
		case scraper.ActionCreate:
			summary.Created++
		case scraper.ActionReview:
			summary.Queued++
		case scraper.ActionUnconfirmed:
			summary.Unconfirmed++
		case scraper.ActionFailed:
			continue
		}
		summary.PersonsFound++
	}
}

func (w *Worker) stage(
	ctx context.Context,
	entry scraper.QueueEntry,
	stage progress.Stage,
	fn func(context.Context, *progress.Event) error,
) error {
	name := strings.ToLower(string(stage))
	ctx, span := telemetry.StartStage(ctx, name, telemetry.AttrEntryID.Int64(entry.ID))
	defer span.End()

	start := time.Now()
	evt := w.event(entry, stage)
	err := fn(ctx, &evt)
	evt.Dur = time.Since(start)
	metrics.ObserveStage(name, evt.Dur)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	if evt.Count > 0 {
		span.SetAttributes(telemetry.AttrMentions.Int(evt.Count))
	}
	w.deps.Events.Emit(evt)
	return nil
}

func (w *Worker) event(entry scraper.QueueEntry, stage progress.Stage) progress.Event {
	return progress.Event{
		ID:       progress.NewID(),
		EntryID:  entry.ID,
		Attempt:  entry.RetryCount,
		TS:       w.deps.Clock.Now(),
		Stage:    stage,
		Site:     metrics.SanitizeSite(entry.URL),
		URL:      entry.URL,
		Category: entry.Category,
	}
}

func (w *Worker) emit(entry scraper.QueueEntry, stage progress.Stage, fill func(*progress.Event)) {
	evt := w.event(entry, stage)
	if fill != nil {
		fill(&evt)
	}
	w.deps.Events.Emit(evt)
}
