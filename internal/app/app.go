// Package app builds the long-lived services the scraper commands share and
// owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/ancestry"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/api"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/classifier"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/clock/system"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/config"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/cookies"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/dispatcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	collyfetcher "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher/colly"
	headlessfetcher "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher/headless"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher/login"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/hash/sha256"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/headless/detector"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/id/uuid"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/identity"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/ocr"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/policy/ratelimit"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
	progresssinks "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress/sinks"
	memorypublisher "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/publisher/memory"
	gcppublisher "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/publisher/pubsub"
	pgqueue "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/queue/postgres"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
	gcsstorage "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/gcs"
	localstorage "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/local"
	pgstore "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/postgres"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/telemetry"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/watchdog"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/worker"
)

// Store is everything the commands need from the relational store.
type Store interface {
	scraper.Store
	scraper.ReviewStore
	scraper.ArchiveRepository
}

// Backends are the stateful dependencies. Build connects the real ones;
// Assemble accepts any set, which is how tests run without a database.
type Backends struct {
	Queue     scraper.Queue
	Store     Store
	Blobs     scraper.BlobStore
	Publisher scraper.Publisher
	// DB is pinged by /readyz; nil reports ready.
	DB api.Pinger
	// Fetcher and OCR replace the browser and OCR engines when set.
	Fetcher scraper.Fetcher
	OCR     scraper.TextExtractor
	// Checkpoints replaces the sqlite ancestry checkpoint file when set.
	Checkpoints ancestry.Checkpoints
	// Registerer receives the status sink collectors; nil uses the default registry.
	Registerer prometheus.Registerer
	Clock      scraper.Clock
}

const memoryPublishLimit = 1000

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the shared services of one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string

	backends   Backends
	fetcher    scraper.Fetcher
	archiver   *fetcher.Archiver
	ocr        scraper.TextExtractor
	parser     *parser.Registry
	classifier *classifier.Classifier
	resolver   *identity.Resolver
	hub        *progress.Hub

	closers []closer
}

// Build connects to Postgres, the archive store and the status topic, then
// assembles the pipeline. Connection failures wrap pgstore.ErrUnreachable.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []closer
	fail := func(err error) (*App, error) {
		runClosers(context.WithoutCancel(ctx), logger, closers)
		return nil, err
	}

	tp, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	closers = append(closers, closer{"tracer", tp.Shutdown})

	b, more, err := setupDatabase(ctx, cfg, logger)
	closers = append(closers, more...)
	if err != nil {
		return fail(err)
	}

	b.Blobs, more, err = setupStorage(ctx, cfg, logger)
	closers = append(closers, more...)
	if err != nil {
		return fail(err)
	}

	b.Publisher, more, err = setupPublisher(ctx, cfg, logger)
	closers = append(closers, more...)
	if err != nil {
		return fail(err)
	}

	a, err := Assemble(ctx, cfg, logger, b)
	if err != nil {
		return fail(err)
	}
	a.closers = append(closers, a.closers...)
	return a, nil
}

// Assemble wires the pipeline over b. Missing fetcher and OCR engines are
// built from cfg.
func Assemble(ctx context.Context, cfg config.Config, logger *zap.Logger, b Backends) (*App, error) {
	if b.Queue == nil || b.Store == nil || b.Blobs == nil {
		return nil, errors.New("queue, store and blob store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if b.Clock == nil {
		b.Clock = system.New()
	}
	if b.Publisher == nil {
		b.Publisher = memorypublisher.New(memoryPublishLimit)
	}
	metrics.Init()

	runID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		backends: b,
	}
	a.archiver = fetcher.NewArchiver(b.Blobs, b.Store, sha256.New(), b.Clock.Now, logger.Named("archive"))

	a.fetcher = b.Fetcher
	if a.fetcher == nil {
		if a.fetcher, err = a.setupFetcher(); err != nil {
			a.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}
	a.ocr = b.OCR
	if a.ocr == nil {
		if a.ocr, err = a.setupOCR(ctx); err != nil {
			a.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}

	a.parser = parser.NewRegistry(logger.Named("parser"), parser.Options{
		MaxGenerations: cfg.Ancestry.MaxGenerations,
		CutoffYear:     cfg.Ancestry.CutoffYear,
	})
	a.classifier = classifier.New(classifier.DefaultRules(), classifier.DefaultAdoptThreshold, logger.Named("classifier"))
	a.resolver = identity.New(b.Store, identity.WithLogger(logger.Named("identity")))

	if err := a.setupProgress(ctx); err != nil {
		a.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info("application assembled",
		zap.String("run_id", runID),
		zap.Int("workers", cfg.Worker.MaxConcurrent),
		zap.Duration("poll_interval", cfg.PollInterval()),
		zap.Duration("host_delay", cfg.HostDelay()),
	)
	return a, nil
}

func setupDatabase(ctx context.Context, cfg config.Config, logger *zap.Logger) (Backends, []closer, error) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DB.ConnectTimeoutSeconds)*time.Second)
	defer cancel()
	pool, err := pgstore.Connect(connectCtx, pgstore.Config{
		DSN:      cfg.DB.URL,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return Backends{}, nil, err
	}
	closers := []closer{{"postgres pool", func(context.Context) error { pool.Close(); return nil }}}

	store, err := pgstore.NewStore(pool)
	if err != nil {
		return Backends{}, closers, fmt.Errorf("store init failed: %w", err)
	}
	q, err := pgqueue.New(pool)
	if err != nil {
		return Backends{}, closers, fmt.Errorf("queue init failed: %w", err)
	}
	logger.Info("connected to postgres", zap.Int32("max_conns", cfg.DB.MaxConns))
	return Backends{Queue: q, Store: store, DB: store}, closers, nil
}

func setupStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (scraper.BlobStore, []closer, error) {
	if cfg.Storage.Bucket == "" {
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		logger.Info("using local archive store", zap.String("path", cfg.Storage.LocalDir))
		return blobs, nil, nil
	}

	var opts []option.ClientOption
	switch {
	case cfg.Storage.Secret != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Storage.Secret)))
	case cfg.Storage.Key != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Storage.Key))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	closers := []closer{{"gcs client", func(context.Context) error { return client.Close() }}}
	blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.Bucket})
	if err != nil {
		return nil, closers, fmt.Errorf("gcs blob store init failed: %w", err)
	}
	if err := blobs.Check(ctx); err != nil {
		logger.Warn("archive bucket check failed", zap.Error(err))
	}
	logger.Info("using GCS archive store",
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("region", cfg.Storage.Region),
	)
	return blobs, closers, nil
}

func setupPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (scraper.Publisher, []closer, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		logger.Info("no Pub/Sub topic configured, status events stay in memory")
		return memorypublisher.New(memoryPublishLimit), nil, nil
	}
	pub, err := gcppublisher.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger.Named("pubsub"))
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub init failed: %w", err)
	}
	logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pub, []closer{{"pubsub", func(context.Context) error { return pub.Close() }}}, nil
}

func (a *App) setupFetcher() (scraper.Fetcher, error) {
	cfg := a.cfg
	limiter := ratelimit.New(cfg.HostDelay())
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBytes:     cfg.Fetch.MaxBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		Limiter:      limiter,
	})
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Fetch.HeadlessMaxParallel,
		UserAgent:         cfg.Fetch.UserAgent,
		NavigationTimeout: cfg.FetchTimeout(),
		MaxBytes:          cfg.Fetch.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.addCloser("headless browser", func(context.Context) error { headless.Close(); return nil })

	jar, err := a.setupCookies()
	if err != nil {
		return nil, err
	}

	logins := make(map[string]fetcher.LoginPage, len(cfg.Fetch.Logins))
	for category, l := range cfg.Fetch.Logins {
		logins[category] = fetcher.LoginPage{URL: l.URL, Patterns: l.Patterns}
	}
	var flow fetcher.LoginFlow
	if cfg.Fetch.InteractiveLogin {
		flow = login.New(login.Config{Timeout: cfg.LoginTimeout()}, a.logger.Named("login"))
	}

	router, err := fetcher.New(fetcher.Config{
		Plain:            plain,
		Headless:         headless,
		Detector:         detector.NewHeuristic(0),
		Login:            flow,
		Limiter:          limiter,
		Cookies:          jar,
		Locker:           cookies.NewLocker(),
		Archiver:         a.archiver,
		Logins:           logins,
		InteractiveLogin: cfg.Fetch.InteractiveLogin,
		Logger:           a.logger.Named("fetcher"),
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	a.logger.Info("fetcher initialized",
		zap.String("cookie_backend", cfg.Cookies.Backend),
		zap.Bool("interactive_login", cfg.Fetch.InteractiveLogin),
		zap.Int("headless_max_parallel", cfg.Fetch.HeadlessMaxParallel),
	)
	return router, nil
}

func (a *App) setupCookies() (cookies.Store, error) {
	if a.cfg.Cookies.Backend != "sqlite" {
		return cookies.NewFileStore(a.cfg.Cookies.Dir), nil
	}
	jar, err := cookies.OpenSQLite(a.cfg.Cookies.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("cookie store init failed: %w", err)
	}
	a.addCloser("cookie store", func(context.Context) error { return jar.Close() })
	return jar, nil
}

func (a *App) setupOCR(ctx context.Context) (scraper.TextExtractor, error) {
	cfg := a.cfg.OCR
	opts := []ocr.Option{
		ocr.WithFallback(ocr.NewTesseract(cfg.TesseractPath, cfg.PdftoppmPath, cfg.Language)),
		ocr.WithPrimaryTimeout(time.Duration(cfg.PrimaryTimeoutSeconds) * time.Second),
		ocr.WithConfidenceMin(cfg.PrimaryConfidenceMin),
		ocr.WithLogger(a.logger.Named("ocr")),
	}
	if cfg.PrimaryKey != "" {
		vision, err := ocr.NewVision(ctx, cfg.PrimaryKey, cfg.PrimaryEndpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("primary ocr init failed: %w", err)
		}
		opts = append(opts, ocr.WithPrimary(vision))
	}
	a.logger.Info("ocr router initialized", zap.Bool("primary", cfg.PrimaryKey != ""))
	return ocr.NewRouter(opts...), nil
}

func (a *App) setupProgress(ctx context.Context) error {
	prom, err := progresssinks.NewPrometheusSink(a.backends.Registerer)
	if err != nil {
		return fmt.Errorf("status sink init failed: %w", err)
	}
	sinks := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("status")),
		prom,
		progresssinks.NewPublisherSink(a.backends.Publisher, a.cfg.Worker.StatusTopic, false, a.logger.Named("status_publisher")),
	}
	a.hub = progress.NewHub(progress.Config{
		BaseContext: context.WithoutCancel(ctx),
		Logger:      a.logger.Named("status_hub"),
	}, sinks...)
	return nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Queue returns the work queue.
func (a *App) Queue() scraper.Queue { return a.backends.Queue }

// Reviews returns the review queue store.
func (a *App) Reviews() scraper.ReviewStore { return a.backends.Store }

// Resolver returns the identity resolver.
func (a *App) Resolver() *identity.Resolver { return a.resolver }

// Clock returns the process clock.
func (a *App) Clock() scraper.Clock { return a.backends.Clock }

// Workers builds worker.max_concurrent workers sharing the pipeline.
func (a *App) Workers() []dispatcher.Runner {
	n := a.cfg.Worker.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	deps := worker.Deps{
		Queue:      a.backends.Queue,
		Fetcher:    a.fetcher,
		OCR:        a.ocr,
		Parser:     a.parser,
		Classifier: a.classifier,
		Resolver:   a.resolver,
		Store:      a.backends.Store,
		Clock:      a.backends.Clock,
		Events:     a.hub,
	}
	wcfg := worker.Config{
		PollInterval: a.cfg.PollInterval(),
		SoftCap:      time.Duration(a.cfg.Worker.SoftCapMinutes) * time.Minute,
	}
	workers := make([]dispatcher.Runner, 0, n)
	for i := range n {
		workers = append(workers, worker.New(deps, wcfg,
			a.logger.Named("worker").With(zap.Int("index", i), zap.String("run_id", a.runID))))
	}
	return workers
}

// Dispatcher returns a dispatcher over a fresh worker pool.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return dispatcher.New(a.backends.Queue, a.Workers(), a.logger.Named("dispatcher"))
}

// Watchdog returns the archive verifier, which also sweeps stale claims.
func (a *App) Watchdog() *watchdog.Watchdog {
	return watchdog.New(
		a.backends.Store,
		a.fetcher,
		a.archiver,
		a.backends.Queue,
		a.backends.Clock,
		watchdog.Config{
			Schedule:     a.cfg.Watchdog.Schedule,
			StaleAfter:   a.cfg.StaleAfter(),
			Limit:        a.cfg.Watchdog.Limit,
			ClaimTimeout: a.cfg.ClaimTimeout(),
		},
		a.logger.Named("watchdog"),
	)
}

// OpsServer returns the health, readiness and metrics listener.
func (a *App) OpsServer() *api.Server {
	return api.NewServer(a.backends.DB, a.backends.Queue, a.logger.Named("api"))
}

// Climber returns the ancestor climber, opening the checkpoint file on first use.
func (a *App) Climber() (*ancestry.Climber, error) {
	cps := a.backends.Checkpoints
	if cps == nil {
		sqlite, err := ancestry.OpenCheckpoints(a.cfg.Ancestry.CheckpointPath)
		if err != nil {
			return nil, fmt.Errorf("open ancestry checkpoints: %w", err)
		}
		a.addCloser("ancestry checkpoints", func(context.Context) error { return sqlite.Close() })
		a.backends.Checkpoints = sqlite
		cps = sqlite
	}
	source := ancestry.NewFetchSource(a.fetcher, a.cfg.Ancestry.PersonURLTemplate)
	return ancestry.New(source, a.backends.Store, cps, ancestry.Config{
		MaxGenerations:  a.cfg.Ancestry.MaxGenerations,
		CutoffYear:      a.cfg.Ancestry.CutoffYear,
		CheckpointEvery: a.cfg.Ancestry.CheckpointEvery,
	}, a.logger.Named("ancestry")), nil
}

// Close flushes status events and releases everything Build opened, newest first.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("status hub close failed", zap.Error(err))
		}
	}
	runClosers(ctx, a.logger, a.closers)
	a.closers = nil
	_ = a.logger.Sync()
}

func runClosers(ctx context.Context, logger *zap.Logger, closers []closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(ctx); err != nil {
			logger.Warn("close failed", zap.String("component", closers[i].name), zap.Error(err))
		}
	}
}
