// Package collyfetcher implements the plain HTTP backend using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	// Limiter paces every redirect hop by its own host. The router paces the first request.
	Limiter fetcher.Waiter
}

// Fetcher implements fetcher.Backend with one fresh collector per request so
// cookie jars never leak between categories.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher sharing one pooled transport.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	return &Fetcher{cfg: cfg, transport: newHTTPTransport()}
}

// visit collects what the hooks observed during one Visit.
type visit struct {
	mu       sync.Mutex
	start    time.Time
	finalURL string
	result   fetcher.Result
	err      error
	tooLarge bool
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (fetcher.Result, error) {
	v := &visit{start: time.Now(), finalURL: req.URL}
	collector, err := f.buildCollector(ctx, req, v)
	if err != nil {
		return fetcher.Result{}, err
	}
	if err := f.runCollector(ctx, collector, req.URL); err != nil && !v.tooLarge {
		return fetcher.Result{}, fetcher.Classify("fetch", err)
	}
	return v.finish(f.cfg.MaxBytes)
}

func (f *Fetcher) buildCollector(ctx context.Context, req fetcher.Request, v *visit) (*colly.Collector, error) {
	collector := colly.NewCollector(colly.Async(false))
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.MaxBytes > 0 {
		collector.MaxBodySize = int(f.cfg.MaxBytes) + 1
	}
	collector.WithTransport(&contextTransport{ctx: ctx, base: f.transport})
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.SetRedirectHandler(func(r *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
		}
		if f.cfg.Limiter != nil {
			if err := f.cfg.Limiter.Wait(ctx, r.URL.String()); err != nil {
				return fmt.Errorf("redirect to %s: %w", r.URL.Redacted(), err)
			}
		}
		v.mu.Lock()
		v.finalURL = r.URL.String()
		v.mu.Unlock()
		return nil
	})
	if len(req.Cookies) > 0 {
		if err := collector.SetCookies(req.URL, req.Cookies); err != nil {
			return nil, fmt.Errorf("seed cookies: %w", err)
		}
	}
	f.configureCollectorHooks(collector, v)
	return collector, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, v *visit) {
	hooks.OnResponseHeaders(func(r *colly.Response) {
		if f.cfg.MaxBytes <= 0 || r.Headers == nil {
			return
		}
		if n, err := strconv.ParseInt(r.Headers.Get("Content-Length"), 10, 64); err == nil && n > f.cfg.MaxBytes {
			v.mu.Lock()
			v.tooLarge = true
			v.mu.Unlock()
			r.Request.Abort()
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		v.result = fetcher.Result{
			Response: scraper.FetchResponse{
				StatusCode:  r.StatusCode,
				ContentType: headers.Get("Content-Type"),
				Headers:     headers,
				Body:        append([]byte(nil), r.Body...),
				Duration:    time.Since(v.start),
			},
			Cookies: (&http.Response{Header: headers}).Cookies(),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()
	})
}

func (v *visit) finish(maxBytes int64) (fetcher.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tooLarge || (maxBytes > 0 && int64(len(v.result.Response.Body)) > maxBytes) {
		return fetcher.Result{}, scraper.TooLarge("fetch", maxBytes)
	}
	if v.err != nil {
		return fetcher.Result{}, fetcher.Classify("fetch", v.err)
	}
	res := v.result
	res.Response.FinalURL = v.finalURL
	for _, c := range res.Cookies {
		if c.Domain == "" {
			c.Domain = hostOf(v.finalURL)
		}
	}
	if res.Response.StatusCode >= http.StatusBadRequest {
		return res, scraper.HTTPStatus("fetch", res.Response.StatusCode)
	}
	return res, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// contextTransport binds every request of one visit to the caller's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, fmt.Errorf("roundtrip %s: %w", req.URL.Redacted(), err)
	}
	return resp, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
