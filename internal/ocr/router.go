// Package ocr turns fetched documents into text. HTML, JSON and plain text
// bypass recognition; PDFs with a usable text layer are read directly; images
// and scanned PDFs go through a primary engine with a local fallback.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/htmltext"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Engine recognises text in an image or a scanned PDF.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, body []byte, contentType string, pageCount int) (scraper.OCRResult, error)
}

// Defaults for the primary engine.
const (
	DefaultPrimaryTimeout = 60 * time.Second
	DefaultConfidenceMin  = 0.80
)

// Router implements scraper.TextExtractor.
type Router struct {
	primary        Engine
	fallback       Engine
	primaryTimeout time.Duration
	confidenceMin  float64
	logger         *zap.Logger
}

// Option customises a Router.
type Option func(*Router)

// WithPrimary sets the engine tried first.
func WithPrimary(e Engine) Option {
	return func(r *Router) { r.primary = e }
}

// WithFallback sets the engine used when the primary fails or is unsure.
func WithFallback(e Engine) Option {
	return func(r *Router) { r.fallback = e }
}

// WithPrimaryTimeout bounds a single primary call.
func WithPrimaryTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.primaryTimeout = d
		}
	}
}

// WithConfidenceMin sets the confidence at which primary output is accepted
// without consulting the fallback.
func WithConfidenceMin(v float64) Option {
	return func(r *Router) {
		if v > 0 {
			r.confidenceMin = v
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter builds a router. Engines are optional; a router without any can
// still serve text formats and PDFs with a text layer.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		primaryTimeout: DefaultPrimaryTimeout,
		confidenceMin:  DefaultConfidenceMin,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract implements scraper.TextExtractor.
func (r *Router) Extract(ctx context.Context, body []byte, contentType string) (scraper.OCRResult, error) {
	media := mediaType(body, contentType)
	switch {
	case media == "text/html" || media == "application/xhtml+xml":
		doc, err := htmltext.Extract(body)
		if err != nil {
			return scraper.OCRResult{}, scraper.ParseFailed("html text", err)
		}
		return bypass(doc.Text, "html", doc.Title), nil
	case media == "application/json" || strings.HasSuffix(media, "+json"):
		res := bypass(string(body), "json", "")
		res.DocumentType = scraper.DocMachineReadable
		return res, nil
	case strings.HasPrefix(media, "text/"):
		return bypass(string(body), "text", ""), nil
	case media == "application/pdf":
		return r.pdf(ctx, body)
	case strings.HasPrefix(media, "image/"):
		return r.recognize(ctx, body, media, 1)
	default:
		return scraper.OCRResult{}, scraper.ParseFailed("ocr", fmt.Errorf("unsupported content type %q", media))
	}
}

func bypass(text, service, title string) scraper.OCRResult {
	return scraper.OCRResult{
		Title:        title,
		Text:         text,
		Confidence:   1,
		PageCount:    1,
		Service:      service,
		PerPageText:  []string{text},
		DocumentType: ClassifyText(text).Type,
	}
}

func (r *Router) pdf(ctx context.Context, body []byte) (scraper.OCRResult, error) {
	layer, pages, err := readPDFText(body)
	if err != nil {
		r.logger.Debug("pdf text layer unreadable", zap.Error(err))
	}
	if err == nil && layer.Usable() {
		text := strings.Join(layer.Pages, "\n\n")
		return scraper.OCRResult{
			Text:         text,
			Confidence:   textLayerConfident,
			PageCount:    pages,
			Service:      textLayerService,
			PerPageText:  layer.Pages,
			DocumentType: ClassifyText(text).Type,
		}, nil
	}
	return r.recognize(ctx, body, "application/pdf", pages)
}

// recognize runs the primary engine and, when it fails or is unsure, the
// fallback. The most confident successful output wins.
func (r *Router) recognize(ctx context.Context, body []byte, media string, pages int) (scraper.OCRResult, error) {
	if r.primary == nil && r.fallback == nil {
		return scraper.OCRResult{}, scraper.OCRFailed("ocr", errors.New("no engine configured"))
	}

	var (
		attempts []scraper.OCRAttempt
		best     *scraper.OCRResult
		errs     []error
	)
	try := func(e Engine, timeout time.Duration) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := e.Recognize(callCtx, body, media, pages)
		if err == nil && strings.TrimSpace(res.Text) == "" {
			err = errors.New("empty text")
		}
		if err != nil {
			r.logger.Warn("ocr engine failed", zap.String("engine", e.Name()), zap.Error(err))
			attempts = append(attempts, scraper.OCRAttempt{Service: e.Name(), Err: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			return
		}
		r.logger.Debug("ocr engine finished",
			zap.String("engine", e.Name()),
			zap.Float64("confidence", res.Confidence),
			zap.Duration("took", time.Since(start)))
		attempts = append(attempts, scraper.OCRAttempt{Service: e.Name(), Confidence: res.Confidence})
		if res.Service == "" {
			res.Service = e.Name()
		}
		if best == nil || res.Confidence > best.Confidence {
			best = &res
		}
	}

	if r.primary != nil {
		try(r.primary, r.primaryTimeout)
	}
	if best == nil || best.Confidence < r.confidenceMin {
		if r.fallback != nil && ctx.Err() == nil {
			try(r.fallback, 0)
		}
	}
	if best == nil {
		if ctx.Err() != nil {
			return scraper.OCRResult{}, scraper.Shutdown("ocr")
		}
		return scraper.OCRResult{Alternates: attempts}, scraper.OCRFailed("ocr", errors.Join(errs...))
	}

	out := *best
	out.Alternates = attempts
	if out.PageCount == 0 {
		out.PageCount = max(pages, len(out.PerPageText), 1)
	}
	if len(out.PerPageText) == 0 {
		out.PerPageText = []string{out.Text}
	}
	out.DocumentType = ClassifyText(out.Text).Type
	return out, nil
}

func mediaType(body []byte, contentType string) string {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	if media == "application/octet-stream" || media == "binary/octet-stream" {
		if sniffed, _, err := mime.ParseMediaType(http.DetectContentType(body)); err == nil {
			return sniffed
		}
	}
	return media
}
