// Package fetcher retrieves documents for the pipeline. A Router picks the
// plain or headless backend for each request, keeps one cookie jar per source
// category, paces requests per host and archives the bytes it returns.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/cookies"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Request is what a backend needs for one retrieval.
type Request struct {
	URL     string
	Cookies []*http.Cookie
}

// Result is a backend response plus the cookies the session ended with.
type Result struct {
	Response scraper.FetchResponse
	Cookies  []*http.Cookie
}

// Backend performs one retrieval. Non-2xx statuses are returned as
// classified errors together with the partial result.
type Backend interface {
	Fetch(ctx context.Context, req Request) (Result, error)
}

// Promoter decides whether a plain response is an empty SPA shell.
type Promoter interface {
	ShouldPromote(resp scraper.FetchResponse) bool
}

// LoginFlow surfaces a browser for a human login and returns the session cookies.
type LoginFlow interface {
	Login(ctx context.Context, page LoginPage) ([]*http.Cookie, error)
}

// Waiter blocks until the host of rawURL may be contacted again.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// LoginPage describes where a category's login lives and how to recognise it.
type LoginPage struct {
	URL string
	// Patterns are URL substrings that identify login pages.
	Patterns []string
}

// IsLoginURL reports whether rawURL looks like one of the login pages.
func (p LoginPage) IsLoginURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, pattern := range p.Patterns {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// Config wires the Router's collaborators.
type Config struct {
	Plain    Backend
	Headless Backend
	Detector Promoter
	Login    LoginFlow
	Limiter  Waiter
	Cookies  cookies.Store
	Locker   *cookies.Locker
	Archiver *Archiver
	// Logins maps a category to its login page.
	Logins map[string]LoginPage
	// InteractiveLogin allows surfacing a browser when a category has no cookies.
	InteractiveLogin bool
	Logger           *zap.Logger
}

// Router implements scraper.Fetcher.
type Router struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and returns a Router.
func New(cfg Config) (*Router, error) {
	if cfg.Plain == nil && cfg.Headless == nil {
		return nil, errors.New("fetcher requires a plain or headless backend")
	}
	if cfg.Locker == nil {
		cfg.Locker = cookies.NewLocker()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger}, nil
}

// Fetch retrieves req.URL. Fetches of one category are serialised so the
// category's cookie jar is never read and written concurrently.
func (r *Router) Fetch(ctx context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	category := req.Category
	if category == "" {
		category = scraper.DefaultCategory
	}
	unlock := r.cfg.Locker.Lock(category)
	defer unlock()

	logger := r.logger.With(zap.String("url", req.URL), zap.String("category", category))
	jar, err := r.loadJar(ctx, category, logger)
	if err != nil {
		return scraper.FetchResponse{}, err
	}

	result, mode, err := r.fetchByMode(ctx, req.URL, req.Mode.Normalize(), jar, logger)
	metrics.ObserveFetch(req.URL, string(mode), fetchStatus(result.Response.StatusCode, err), len(result.Response.Body))
	if err != nil {
		return scraper.FetchResponse{}, err
	}
	resp := result.Response

	if page, ok := r.cfg.Logins[category]; ok && page.IsLoginURL(resp.FinalURL) {
		if clearErr := r.clearJar(ctx, category); clearErr != nil {
			logger.Warn("clear cookie jar failed", zap.Error(clearErr))
		}
		return scraper.FetchResponse{}, scraper.Blocked("fetch", fmt.Errorf("redirected to login page %s", resp.FinalURL))
	}
	if len(result.Cookies) > 0 && r.cfg.Cookies != nil {
		if err := r.cfg.Cookies.Save(ctx, category, cookies.Merge(jar, result.Cookies)); err != nil {
			logger.Warn("save cookie jar failed", zap.Error(err))
		}
	}

	if !req.NoArchive && r.cfg.Archiver != nil {
		snapshot, err := r.cfg.Archiver.Archive(ctx, category, resp)
		if err != nil {
			return scraper.FetchResponse{}, err
		}
		resp.Snapshot = snapshot
	}
	logger.Debug("fetched",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Bool("headless", resp.UsedHeadless),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

func (r *Router) loadJar(ctx context.Context, category string, logger *zap.Logger) ([]*http.Cookie, error) {
	var jar []*http.Cookie
	if r.cfg.Cookies != nil {
		loaded, err := r.cfg.Cookies.Load(ctx, category)
		if err != nil {
			logger.Warn("load cookie jar failed", zap.Error(err))
		}
		jar = loaded
	}
	page, ok := r.cfg.Logins[category]
	if len(jar) > 0 || !ok || page.URL == "" || !r.cfg.InteractiveLogin || r.cfg.Login == nil {
		return jar, nil
	}

	logger.Info("no stored session, waiting for interactive login", zap.String("login_url", page.URL))
	fresh, err := r.cfg.Login.Login(ctx, page)
	if err != nil {
		return nil, err
	}
	if r.cfg.Cookies != nil {
		if err := r.cfg.Cookies.Save(ctx, category, fresh); err != nil {
			logger.Warn("save login cookies failed", zap.Error(err))
		}
	}
	logger.Info("interactive login captured", zap.Int("cookies", len(fresh)))
	return fresh, nil
}

func (r *Router) clearJar(ctx context.Context, category string) error {
	if r.cfg.Cookies == nil {
		return nil
	}
	if err := r.cfg.Cookies.Clear(ctx, category); err != nil {
		return fmt.Errorf("clear %s jar: %w", category, err)
	}
	return nil
}

func (r *Router) fetchByMode(
	ctx context.Context,
	rawURL string,
	mode scraper.FetchMode,
	jar []*http.Cookie,
	logger *zap.Logger,
) (Result, scraper.FetchMode, error) {
	req := Request{URL: rawURL, Cookies: jar}
	switch {
	case mode == scraper.FetchModeHeadless && r.cfg.Headless == nil:
		logger.Debug("headless backend unavailable, fetching plain")
		mode = scraper.FetchModePlain
	case mode != scraper.FetchModeHeadless && r.cfg.Plain == nil:
		mode = scraper.FetchModeHeadless
	}

	if mode == scraper.FetchModeHeadless {
		res, err := r.fetchWith(ctx, r.cfg.Headless, req)
		if err != nil || IsHTML(res.Response.ContentType) || len(res.Response.Body) > 0 || r.cfg.Plain == nil {
			return res, mode, err
		}
		logger.Debug("headless returned no document bytes, fetching plain",
			zap.String("content_type", res.Response.ContentType))
		req.Cookies = cookies.Merge(jar, res.Cookies)
		raw, err := r.fetchWith(ctx, r.cfg.Plain, req)
		if err != nil {
			return raw, scraper.FetchModePlain, err
		}
		raw.Cookies = cookies.Merge(res.Cookies, raw.Cookies)
		return raw, scraper.FetchModePlain, nil
	}
	res, err := r.fetchWith(ctx, r.cfg.Plain, req)
	if err != nil || mode != scraper.FetchModeAuto {
		return res, scraper.FetchModePlain, err
	}
	if r.cfg.Headless == nil || r.cfg.Detector == nil || !r.cfg.Detector.ShouldPromote(res.Response) {
		return res, scraper.FetchModePlain, nil
	}

	logger.Debug("promoting to headless")
	req.Cookies = cookies.Merge(jar, res.Cookies)
	promoted, err := r.fetchWith(ctx, r.cfg.Headless, req)
	if err != nil {
		return promoted, scraper.FetchModeHeadless, err
	}
	promoted.Cookies = cookies.Merge(res.Cookies, promoted.Cookies)
	return promoted, scraper.FetchModeHeadless, nil
}

func (r *Router) fetchWith(ctx context.Context, backend Backend, req Request) (Result, error) {
	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Wait(ctx, req.URL); err != nil {
			return Result{}, Classify("rate limit", err)
		}
	}
	start := time.Now()
	res, err := backend.Fetch(ctx, req)
	if err != nil {
		return res, Classify("fetch", err)
	}
	if res.Response.URL == "" {
		res.Response.URL = req.URL
	}
	if res.Response.FinalURL == "" {
		res.Response.FinalURL = res.Response.URL
	}
	if res.Response.Duration == 0 {
		res.Response.Duration = time.Since(start)
	}
	return res, nil
}

// IsHTML reports whether a Content-Type names an HTML document. An empty
// type counts as HTML.
func IsHTML(contentType string) bool {
	return mediaType(contentType) == "" || isHTML(contentType)
}

func fetchStatus(code int, err error) string {
	if code > 0 {
		return strconv.Itoa(code)
	}
	if kind := scraper.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
