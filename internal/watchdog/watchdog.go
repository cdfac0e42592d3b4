// Package watchdog re-fetches archived URLs on a schedule and records an alert
// whenever the bytes changed or the source stopped answering. It also sweeps
// stale queue claims back to pending.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Defaults for a verification run.
const (
	DefaultSchedule   = "@hourly"
	DefaultStaleAfter = 24 * time.Hour
	DefaultLimit      = 100
)

// farFuture bounds a check-all run so every snapshot counts as due.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Outcome is the result of verifying one snapshot.
type Outcome string

// Verification outcomes.
const (
	OutcomeOK          Outcome = "ok"
	OutcomeChanged     Outcome = Outcome(scraper.AlertContentChanged)
	OutcomeUnavailable Outcome = Outcome(scraper.AlertUnavailable)
	OutcomeTimeout     Outcome = Outcome(scraper.AlertTimeout)
	OutcomeBlocked     Outcome = Outcome(scraper.AlertBlocked)
	OutcomeSSLError    Outcome = Outcome(scraper.AlertSSLError)
)

// Archiver hashes fetched bytes and stores a changed snapshot.
type Archiver interface {
	Hash(body []byte) string
	Store(ctx context.Context, category string, resp scraper.FetchResponse, hash string) (scraper.ArchivedURL, error)
}

// Reclaimer returns stale processing entries to pending.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config controls scheduling and batch size.
type Config struct {
	// Schedule is a cron expression or descriptor such as @hourly.
	Schedule   string
	StaleAfter time.Duration
	Limit      int
	// ClaimTimeout is how long an entry may stay processing before the sweep reclaims it.
	ClaimTimeout time.Duration
}

// Options narrow a single run.
type Options struct {
	// CheckAll verifies every URL regardless of when it was last verified.
	CheckAll bool
	Limit    int
}

// Report summarises a run.
type Report struct {
	Checked  int
	Outcomes map[Outcome]int
}

// Watchdog verifies archived snapshots.
type Watchdog struct {
	repo      scraper.ArchiveRepository
	fetcher   scraper.Fetcher
	archiver  Archiver
	reclaimer Reclaimer
	clock     scraper.Clock
	cfg       Config
	logger    *zap.Logger
}

// New builds a Watchdog. reclaimer may be nil when no queue is attached.
func New(
	repo scraper.ArchiveRepository,
	fetcher scraper.Fetcher,
	archiver Archiver,
	reclaimer Reclaimer,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Watchdog {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		repo:      repo,
		fetcher:   fetcher,
		archiver:  archiver,
		reclaimer: reclaimer,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start runs the sweep and a verification pass on the configured schedule
// until ctx is canceled. A tick that is still running skips the next one.
func (w *Watchdog) Start(ctx context.Context) error {
	logger := cronLogger{w.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("watchdog schedule %q: %w", w.cfg.Schedule, err)
	}
	c.Start()
	w.logger.Info("watchdog scheduled", zap.String("schedule", w.cfg.Schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("watchdog stopped")
	return nil
}

func (w *Watchdog) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error("stale claim sweep failed", zap.Error(err))
	}
	if _, err := w.RunOnce(ctx, Options{}); err != nil && ctx.Err() == nil {
		w.logger.Error("watchdog run failed", zap.Error(err))
	}
}

// Sweep returns entries that have been processing longer than the claim
// timeout to pending.
func (w *Watchdog) Sweep(ctx context.Context) (int64, error) {
	if w.reclaimer == nil || w.cfg.ClaimTimeout <= 0 {
		return 0, nil
	}
	n, err := w.reclaimer.ReclaimStale(ctx, w.clock.Now().Add(-w.cfg.ClaimTimeout))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	if n > 0 {
		w.logger.Warn("reclaimed stale claims", zap.Int64("count", n))
	}
	return n, nil
}

// RunOnce verifies the snapshots that are due.
func (w *Watchdog) RunOnce(ctx context.Context, opts Options) (Report, error) {
	now := w.clock.Now()
	before := now.Add(-w.cfg.StaleAfter)
	limit := w.cfg.Limit
	if opts.CheckAll {
		before, limit = farFuture, 0
	}
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	due, err := w.repo.DueForVerification(ctx, before, limit)
	if err != nil {
		return Report{}, fmt.Errorf("load due snapshots: %w", err)
	}
	report := Report{Outcomes: make(map[Outcome]int)}
	for _, snap := range due {
		outcome, err := w.Check(ctx, snap)
		if err != nil {
			if scraper.KindOf(err) == scraper.KindShutdown || ctx.Err() != nil {
				return report, err
			}
			w.logger.Error("verification failed", zap.String("url", snap.URL), zap.Error(err))
			continue
		}
		report.Checked++
		report.Outcomes[outcome]++
	}
	w.logger.Info("watchdog run finished",
		zap.Int("due", len(due)),
		zap.Int("checked", report.Checked),
		zap.Int("changed", report.Outcomes[OutcomeChanged]))
	return report, nil
}

// Check re-fetches one snapshot's URL and records what it found.
func (w *Watchdog) Check(ctx context.Context, snap scraper.ArchivedURL) (Outcome, error) {
	logger := w.logger.With(zap.String("url", snap.URL), zap.Int64("archived_url_id", snap.ID))
	mode := scraper.FetchModePlain
	if snap.Metadata["used_headless"] == "true" {
		mode = scraper.FetchModeHeadless
	}

	resp, err := w.fetcher.Fetch(ctx, scraper.FetchRequest{
		URL:       snap.URL,
		Category:  snap.Category,
		Mode:      mode,
		NoArchive: true,
	})
	if err != nil {
		if scraper.KindOf(err) == scraper.KindShutdown || errors.Is(err, context.Canceled) {
			return "", err
		}
		outcome := outcomeFor(err)
		alert := scraper.WatchdogAlert{
			ArchivedURLID: snap.ID,
			URL:           snap.URL,
			Type:          scraper.AlertType(outcome),
			PreviousHash:  snap.ContentHash,
			Detail:        err.Error(),
			CreatedAt:     w.clock.Now(),
		}
		if err := w.repo.RecordAlert(ctx, alert); err != nil {
			return "", fmt.Errorf("record %s alert: %w", outcome, err)
		}
		metrics.ObserveWatchdogCheck(string(outcome))
		logger.Warn("archived url unreachable", zap.String("outcome", string(outcome)), zap.Error(err))
		return outcome, nil
	}

	hash := w.archiver.Hash(resp.Body)
	if hash == snap.ContentHash {
		if err := w.repo.MarkVerified(ctx, snap.ID, w.clock.Now()); err != nil {
			return "", fmt.Errorf("mark verified: %w", err)
		}
		metrics.ObserveWatchdogCheck(string(OutcomeOK))
		logger.Debug("archived url unchanged")
		return OutcomeOK, nil
	}

	fresh, err := w.archiver.Store(ctx, snap.Category, resp, hash)
	if err != nil {
		return "", fmt.Errorf("archive changed bytes: %w", err)
	}
	alert := scraper.WatchdogAlert{
		ArchivedURLID: snap.ID,
		URL:           snap.URL,
		Type:          scraper.AlertContentChanged,
		PreviousHash:  snap.ContentHash,
		CurrentHash:   hash,
		CreatedAt:     w.clock.Now(),
	}
	if err := w.repo.RecordChange(ctx, fresh, alert); err != nil {
		return "", fmt.Errorf("record change: %w", err)
	}
	metrics.ObserveWatchdogCheck(string(OutcomeChanged))
	logger.Warn("archived url content changed",
		zap.String("previous_hash", snap.ContentHash),
		zap.String("current_hash", hash))
	return OutcomeChanged, nil
}

func outcomeFor(err error) Outcome {
	switch scraper.KindOf(err) {
	case scraper.KindTimeout:
		return OutcomeTimeout
	case scraper.KindBlocked:
		return OutcomeBlocked
	case scraper.KindSSL:
		return OutcomeSSLError
	default:
		return OutcomeUnavailable
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
