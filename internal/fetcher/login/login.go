// Package login surfaces a visible browser so an operator can sign in to a
// source, then captures the session cookies once the browser leaves the
// login pages.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/fetcher"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Config controls the login browser.
type Config struct {
	// Bin is an optional Chrome binary; empty lets rod find or download one.
	Bin     string
	Timeout time.Duration
	Poll    time.Duration
}

// Browser implements fetcher.LoginFlow with go-rod in headful mode.
type Browser struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a Browser with defaults applied.
func New(cfg Config, logger *zap.Logger) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{cfg: cfg, logger: logger}
}

// Login opens page.URL in a visible browser and waits for the operator.
func (b *Browser) Login(ctx context.Context, page fetcher.LoginPage) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Headless(false).
		Set("disable-blink-features", "AutomationControlled")
	if b.cfg.Bin != "" {
		l = l.Bin(b.cfg.Bin)
	}
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch login browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect login browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			b.logger.Debug("close login browser", zap.Error(err))
		}
	}()

	tab, err := browser.Page(proto.TargetCreateTarget{URL: page.URL})
	if err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}
	b.logger.Info("waiting for operator login", zap.String("login_url", page.URL), zap.Duration("timeout", b.cfg.Timeout))

	current := func() (string, error) {
		info, err := tab.Info()
		if err != nil {
			return "", fmt.Errorf("page info: %w", err)
		}
		return info.URL, nil
	}
	if _, err := WaitForExit(ctx, page, current, b.cfg.Poll); err != nil {
		return nil, err
	}

	cookies, err := tab.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("read session cookies: %w", err)
	}
	return FromRod(cookies), nil
}

// WaitForExit polls current until it reports a URL outside the login pages.
// It returns a blocked error when ctx expires first.
func WaitForExit(ctx context.Context, page fetcher.LoginPage, current func() (string, error), poll time.Duration) (string, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		u, err := current()
		if err == nil && u != "" && u != "about:blank" && !page.IsLoginURL(u) {
			return u, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return "", scraper.Shutdown("login")
			}
			return "", scraper.Blocked("login", fmt.Errorf("login at %s not completed: %w", page.URL, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// FromRod converts browser cookies to net/http cookies.
func FromRod(cookies []*proto.NetworkCookie) []*http.Cookie {
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
			hc.Expires = c.Expires.Time().UTC()
		}
		out = append(out, hc)
	}
	return out
}
