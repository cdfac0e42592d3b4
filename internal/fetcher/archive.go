package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/htmltext"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Hasher computes the content address of a body.
type Hasher interface {
	Hash(data []byte) string
}

// SnapshotSource reports the latest archived snapshot for a URL.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, url string) (scraper.ArchivedURL, error)
}

// Archiver writes fetched bytes to the blob store under
// archives/<category>/<sha256>.<ext>, next to a metadata sidecar.
type Archiver struct {
	blobs     scraper.BlobStore
	snapshots SnapshotSource
	hasher    Hasher
	now       func() time.Time
	logger    *zap.Logger
}

// NewArchiver builds an Archiver. now may be nil.
func NewArchiver(blobs scraper.BlobStore, snapshots SnapshotSource, hasher Hasher, now func() time.Time, logger *zap.Logger) *Archiver {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{blobs: blobs, snapshots: snapshots, hasher: hasher, now: now, logger: logger}
}

// Hash returns the content hash of body.
func (a *Archiver) Hash(body []byte) string {
	return a.hasher.Hash(body)
}

// Archive stores resp when its hash differs from the URL's latest snapshot.
// It returns nil when the bytes are unchanged.
func (a *Archiver) Archive(ctx context.Context, category string, resp scraper.FetchResponse) (*scraper.ArchivedURL, error) {
	hash := a.hasher.Hash(resp.Body)
	latest, err := a.snapshots.LatestSnapshot(ctx, resp.URL)
	switch {
	case err == nil && latest.ContentHash == hash:
		return nil, nil
	case err != nil && !errors.Is(err, scraper.ErrNotFound):
		return nil, fmt.Errorf("latest snapshot for %s: %w", resp.URL, err)
	}
	snapshot, err := a.Store(ctx, category, resp, hash)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Store writes the bytes and sidecars unconditionally and returns the
// snapshot record to persist.
func (a *Archiver) Store(ctx context.Context, category string, resp scraper.FetchResponse, hash string) (scraper.ArchivedURL, error) {
	if category == "" {
		category = scraper.DefaultCategory
	}
	now := a.now().UTC()
	prefix := fmt.Sprintf("archives/%s/%s", category, hash)
	key := prefix + "." + extensionFor(resp.ContentType)

	uri, err := a.blobs.PutObject(ctx, key, contentTypeOr(resp.ContentType), bytes.NewReader(resp.Body))
	if err != nil {
		return scraper.ArchivedURL{}, scraper.Transport("archive", fmt.Errorf("put %s: %w", key, err))
	}

	meta := map[string]string{
		"final_url":     resp.FinalURL,
		"status_code":   strconv.Itoa(resp.StatusCode),
		"used_headless": strconv.FormatBool(resp.UsedHeadless),
		"bytes":         strconv.Itoa(len(resp.Body)),
		"uri":           uri,
	}
	if isHTML(resp.ContentType) {
		if md, err := htmltext.Markdown(resp.Body, resp.URL); err != nil {
			a.logger.Debug("markdown rendering failed", zap.String("url", resp.URL), zap.Error(err))
		} else if _, err := a.blobs.PutObject(ctx, prefix+".md", "text/markdown", strings.NewReader(md)); err != nil {
			a.logger.Warn("write markdown sidecar failed", zap.String("url", resp.URL), zap.Error(err))
		} else {
			meta["markdown_key"] = prefix + ".md"
		}
	}

	snapshot := scraper.ArchivedURL{
		URL:             resp.URL,
		Category:        category,
		ContentHash:     hash,
		ContentType:     resp.ContentType,
		StorageKey:      key,
		FirstArchivedAt: now,
		Metadata:        meta,
	}
	sidecar, err := json.MarshalIndent(sidecarDoc{
		URL:         snapshot.URL,
		Category:    category,
		ContentHash: hash,
		ContentType: resp.ContentType,
		ArchivedAt:  now,
		Headers:     resp.Headers,
		Metadata:    meta,
	}, "", "  ")
	if err != nil {
		return scraper.ArchivedURL{}, fmt.Errorf("marshal sidecar: %w", err)
	}
	if _, err := a.blobs.PutObject(ctx, prefix+".meta.json", "application/json", bytes.NewReader(sidecar)); err != nil {
		return scraper.ArchivedURL{}, scraper.Transport("archive", fmt.Errorf("put sidecar: %w", err))
	}
	metrics.ObserveSnapshot(category)
	return snapshot, nil
}

type sidecarDoc struct {
	URL         string              `json:"url"`
	Category    string              `json:"category"`
	ContentHash string              `json:"contentHash"`
	ContentType string              `json:"contentType"`
	ArchivedAt  time.Time           `json:"archivedAt"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Metadata    map[string]string   `json:"metadata"`
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func contentTypeOr(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

func extensionFor(contentType string) string {
	switch mt := mediaType(contentType); {
	case mt == "text/html" || mt == "application/xhtml+xml":
		return "html"
	case mt == "application/pdf":
		return "pdf"
	case mt == "image/jpeg":
		return "jpg"
	case mt == "image/png":
		return "png"
	case mt == "image/tiff":
		return "tif"
	case mt == "image/gif":
		return "gif"
	case mt == "image/webp":
		return "webp"
	case strings.HasSuffix(mt, "json"):
		return "json"
	case mt == "text/plain":
		return "txt"
	case strings.HasSuffix(mt, "xml"):
		return "xml"
	default:
		return "bin"
	}
}
