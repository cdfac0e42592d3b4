package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const (
	visionFeature = "DOCUMENT_TEXT_DETECTION"
	// visionFilePages is the most pages files:annotate accepts per request.
	visionFilePages = 5
)

// Vision is the cloud document-text engine.
type Vision struct {
	svc       *vision.Service
	languages []string
}

// NewVision connects to the Vision API. endpoint may be empty for the
// default; key is an API key and may be empty when ambient credentials apply.
func NewVision(ctx context.Context, key, endpoint string, languages []string, extra ...option.ClientOption) (*Vision, error) {
	opts := make([]option.ClientOption, 0, len(extra)+2)
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	opts = append(opts, extra...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Vision{svc: svc, languages: languages}, nil
}

// Name implements Engine.
func (v *Vision) Name() string { return "vision" }

// Recognize implements Engine.
func (v *Vision) Recognize(ctx context.Context, body []byte, contentType string, pageCount int) (scraper.OCRResult, error) {
	if contentType == "application/pdf" {
		return v.file(ctx, body, pageCount)
	}
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(body)},
			Features:     []*vision.Feature{{Type: visionFeature}},
			ImageContext: v.imageContext(),
		}},
	}
	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return scraper.OCRResult{}, classifyVisionError(err)
	}
	if len(resp.Responses) == 0 {
		return scraper.OCRResult{}, errors.New("vision: empty response")
	}
	text, conf, err := pageResult(resp.Responses[0])
	if err != nil {
		return scraper.OCRResult{}, err
	}
	return scraper.OCRResult{
		Text:        text,
		Confidence:  conf,
		PageCount:   1,
		Service:     v.Name(),
		PerPageText: []string{text},
	}, nil
}

// file annotates a PDF in page batches.
func (v *Vision) file(ctx context.Context, body []byte, pageCount int) (scraper.OCRResult, error) {
	content := base64.StdEncoding.EncodeToString(body)
	total := pageCount
	if total <= 0 {
		total = visionFilePages
	}

	var (
		pages   []string
		confSum float64
	)
	for first := 1; first <= total; first += visionFilePages {
		batch := make([]int64, 0, visionFilePages)
		for p := first; p < first+visionFilePages && p <= total; p++ {
			batch = append(batch, int64(p))
		}
		req := &vision.BatchAnnotateFilesRequest{
			Requests: []*vision.AnnotateFileRequest{{
				InputConfig:  &vision.InputConfig{Content: content, MimeType: "application/pdf"},
				Features:     []*vision.Feature{{Type: visionFeature}},
				ImageContext: v.imageContext(),
				Pages:        batch,
			}},
		}
		resp, err := v.svc.Files.Annotate(req).Context(ctx).Do()
		if err != nil {
			return scraper.OCRResult{}, classifyVisionError(err)
		}
		if len(resp.Responses) == 0 {
			return scraper.OCRResult{}, errors.New("vision: empty file response")
		}
		fr := resp.Responses[0]
		if fr.Error != nil && fr.Error.Code != 0 {
			return scraper.OCRResult{}, fmt.Errorf("vision: %s", fr.Error.Message)
		}
		if pageCount <= 0 && fr.TotalPages > 0 {
			total = int(fr.TotalPages)
		}
		for _, ir := range fr.Responses {
			text, conf, err := pageResult(ir)
			if err != nil {
				return scraper.OCRResult{}, err
			}
			pages = append(pages, text)
			confSum += conf
		}
	}
	if len(pages) == 0 {
		return scraper.OCRResult{}, errors.New("vision: no pages recognised")
	}
	return scraper.OCRResult{
		Text:        strings.Join(pages, "\n\n"),
		Confidence:  confSum / float64(len(pages)),
		PageCount:   len(pages),
		Service:     v.Name(),
		PerPageText: pages,
	}, nil
}

func (v *Vision) imageContext() *vision.ImageContext {
	if len(v.languages) == 0 {
		return nil
	}
	return &vision.ImageContext{LanguageHints: v.languages}
}

// pageResult returns the text of one annotated page and the mean confidence
// of its recognised pages.
func pageResult(r *vision.AnnotateImageResponse) (string, float64, error) {
	if r == nil {
		return "", 0, errors.New("vision: missing page response")
	}
	if r.Error != nil && r.Error.Code != 0 {
		return "", 0, fmt.Errorf("vision: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", 0, nil
	}
	var sum float64
	for _, p := range r.FullTextAnnotation.Pages {
		sum += p.Confidence
	}
	conf := 0.0
	if n := len(r.FullTextAnnotation.Pages); n > 0 {
		conf = sum / float64(n)
	}
	return r.FullTextAnnotation.Text, conf, nil
}

func classifyVisionError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError {
			return scraper.HTTPStatus("vision", gerr.Code)
		}
		return fmt.Errorf("vision: %w", err)
	}
	return scraper.Transport("vision", err)
}
