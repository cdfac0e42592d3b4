// Package simple holds the admission checks a URL passes before it is queued.
package simple

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Policy admits absolute http(s) URLs with a known fetch mode whose host is
// not blocked.
type Policy struct {
	exact    map[string]struct{}
	suffixes []string
}

// New creates a Policy. Blocked patterns are exact hosts or suffix wildcards
// written as "*.example.org" or ".example.org".
func New(blocked ...string) *Policy {
	p := &Policy{exact: make(map[string]struct{})}
	for _, raw := range blocked {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			p.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			p.addSuffix(strings.TrimPrefix(value, "."))
		default:
			p.exact[value] = struct{}{}
		}
	}
	return p
}

func (p *Policy) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range p.suffixes {
		if existing == suffix {
			return
		}
	}
	p.suffixes = append(p.suffixes, suffix)
}

// IsBlocked reports whether host matches a blocked pattern.
func (p *Policy) IsBlocked(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, ok := p.exact[host]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// AllowURL returns the normalized URL, or a validation error when it cannot
// be queued. Normalization lowercases the scheme and host, drops default
// ports and strips the fragment so the same document is not queued twice.
func (p *Policy) AllowURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", scraper.Validation("admit", fmt.Errorf("parse %q: %w", rawURL, err))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", scraper.Validation("admit", fmt.Errorf("%q: scheme must be http or https", rawURL))
	}
	if u.Host == "" {
		return "", scraper.Validation("admit", fmt.Errorf("%q: host is required", rawURL))
	}
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.RawFragment = ""
	if p.IsBlocked(u.Hostname()) {
		return "", scraper.Validation("admit", fmt.Errorf("%q: host %s is blocked", rawURL, u.Hostname()))
	}
	return u.String(), nil
}

// AllowFetchMode parses a fetch mode flag. Empty means the queue default.
func (*Policy) AllowFetchMode(mode string) (scraper.FetchMode, error) {
	switch m := scraper.FetchMode(strings.ToLower(strings.TrimSpace(mode))); m {
	case "", scraper.FetchModePlain, scraper.FetchModeHeadless, scraper.FetchModeAuto:
		return m, nil
	default:
		return "", scraper.Validation("admit", fmt.Errorf("unknown fetch mode %q", mode))
	}
}
