// Package cookies persists per-category session cookies for the fetcher.
package cookies

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store loads and saves the cookie jar of one source category.
type Store interface {
	Load(ctx context.Context, category string) ([]*http.Cookie, error)
	Save(ctx context.Context, category string, cookies []*http.Cookie) error
	Clear(ctx context.Context, category string) error
}

// record is the stored form of a cookie.
type record struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
}

func toRecords(cookies []*http.Cookie) []record {
	out := make([]record, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, record{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires.UTC(),
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// fromRecords drops cookies that expired before now.
func fromRecords(records []record, now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(records))
	for _, r := range records {
		if !r.Expires.IsZero() && r.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Expires:  r.Expires,
			Secure:   r.Secure,
			HttpOnly: r.HTTPOnly,
		})
	}
	return out
}

// Merge overlays fresh cookies on stored ones, keyed by domain, path and name.
func Merge(stored, fresh []*http.Cookie) []*http.Cookie {
	key := func(c *http.Cookie) string {
		return strings.ToLower(strings.TrimPrefix(c.Domain, ".")) + "|" + c.Path + "|" + c.Name
	}
	idx := make(map[string]int, len(stored)+len(fresh))
	out := make([]*http.Cookie, 0, len(stored)+len(fresh))
	for _, list := range [][]*http.Cookie{stored, fresh} {
		for _, c := range list {
			if c == nil {
				continue
			}
			if i, ok := idx[key(c)]; ok {
				out[i] = c
				continue
			}
			idx[key(c)] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// Locker hands out one mutex per category so fetches of a category never
// interleave their jar reads and writes.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until category is free and returns its unlock function.
func (l *Locker) Lock(category string) func() {
	l.mu.Lock()
	m, ok := l.locks[category]
	if !ok {
		m = &sync.Mutex{}
		l.locks[category] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
