// Package headless renders pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	MaxBytes          int64
	// SettleDelay is how long scripts may run after the body is ready.
	SettleDelay time.Duration
}

// Fetcher implements fetcher.Backend using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with the request's cookies installed and returns the
// rendered DOM together with the browser's cookies afterwards.
func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (fetcher.Result, error) {
	if err := f.acquire(ctx); err != nil {
		return fetcher.Result{}, fetcher.Classify("headless", err)
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	page, err := f.runHeadless(taskCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return fetcher.Result{}, fetcher.Classify("headless", ctx.Err())
		}
		return fetcher.Result{}, fetcher.Classify("headless", err)
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(req.URL, page.finalURL)
	if headers == nil {
		headers = http.Header{}
	}
	finalURL := page.finalURL
	if finalURL == "" {
		finalURL = responseURL
	}

	// Chrome wraps PDFs and images in a viewer page. Return the document's own
	// bytes and type; an empty body tells the router to refetch plain.
	contentType := headers.Get("Content-Type")
	body := []byte(page.html)
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	} else if !fetcher.IsHTML(contentType) {
		body, err = responseBody(taskCtx, meta.requestID())
		if err != nil {
			body = nil
		}
	}
	if f.cfg.MaxBytes > 0 && int64(len(body)) > f.cfg.MaxBytes {
		return fetcher.Result{}, scraper.TooLarge("headless", f.cfg.MaxBytes)
	}

	res := fetcher.Result{
		Response: scraper.FetchResponse{
			URL:          req.URL,
			FinalURL:     finalURL,
			StatusCode:   status,
			ContentType:  contentType,
			Headers:      headers,
			Body:         body,
			Duration:     time.Since(start),
			UsedHeadless: true,
		},
		Cookies: fromNetworkCookies(page.cookies),
	}
	if status >= http.StatusBadRequest {
		return res, scraper.HTTPStatus("headless", status)
	}
	return res, nil
}

type renderedPage struct {
	html     string
	finalURL string
	cookies  []*network.Cookie
}

func (f *Fetcher) runHeadless(ctx context.Context, req fetcher.Request) (renderedPage, error) {
	var page renderedPage
	actions := []chromedp.Action{
		f.networkSetupAction(req),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(&page.finalURL),
		chromedp.OuterHTML("html", &page.html, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return fmt.Errorf("read cookies: %w", err)
			}
			page.cookies = cookies
			return nil
		}),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return renderedPage{}, fmt.Errorf("chromedp run: %w", err)
	}
	return page, nil
}

func responseBody(ctx context.Context, id network.RequestID) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("no document response captured")
	}
	var body []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (f *Fetcher) networkSetupAction(req fetcher.Request) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(req.Cookies) > 0 {
			if err := network.SetCookies(toCookieParams(req.URL, req.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

type responseMeta struct {
	mu         sync.RWMutex
	status     int
	headers    http.Header
	url        string
	docRequest network.RequestID
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.docRequest = event.RequestID
	m.mu.Unlock()
}

func (m *responseMeta) requestID() network.RequestID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docRequest
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return 45 * time.Second
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toCookieParams(rawURL string, cookies []*http.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.Domain == "" {
			param.URL = rawURL
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}

func fromNetworkCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			sec := int64(c.Expires)
			hc.Expires = time.Unix(sec, int64((c.Expires-float64(sec))*1e9)).UTC()
		}
		out = append(out, hc)
	}
	return out
}
