package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Tesseract is the local fallback engine. PDFs are rasterised with pdftoppm
// first.
type Tesseract struct {
	Binary   string
	Pdftoppm string
	Language string
	// DPI used when rasterising PDF pages.
	DPI int
	Run Runner
}

// NewTesseract returns an engine using the given binaries.
func NewTesseract(binary, pdftoppm, language string) *Tesseract {
	return &Tesseract{Binary: binary, Pdftoppm: pdftoppm, Language: language, DPI: 300, Run: execRunner}
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, body []byte, contentType string, _ int) (scraper.OCRResult, error) {
	dir, err := os.MkdirTemp("", "tesseract-*")
	if err != nil {
		return scraper.OCRResult{}, err
	}
	defer os.RemoveAll(dir)

	images, err := t.images(ctx, dir, body, contentType)
	if err != nil {
		return scraper.OCRResult{}, err
	}

	var (
		pages   []string
		confSum float64
	)
	for _, img := range images {
		out, err := t.run(ctx, t.Binary, img, "stdout", "-l", t.language(), "tsv")
		if err != nil {
			return scraper.OCRResult{}, err
		}
		text, conf := parseTSV(out)
		pages = append(pages, text)
		confSum += conf
	}
	if len(pages) == 0 {
		return scraper.OCRResult{}, fmt.Errorf("tesseract: no pages")
	}
	return scraper.OCRResult{
		Text:        strings.Join(pages, "\n\n"),
		Confidence:  confSum / float64(len(pages)),
		PageCount:   len(pages),
		Service:     t.Name(),
		PerPageText: pages,
	}, nil
}

func (t *Tesseract) images(ctx context.Context, dir string, body []byte, contentType string) ([]string, error) {
	if contentType != "application/pdf" {
		path := filepath.Join(dir, "page")
		if err := os.WriteFile(path, body, 0o600); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	pdf := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdf, body, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(dir, "page")
	if _, err := t.run(ctx, t.Pdftoppm, "-r", strconv.Itoa(t.dpi()), "-png", pdf, prefix); err != nil {
		return nil, err
	}
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(images)
	return images, nil
}

func (t *Tesseract) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if t.Run == nil {
		return execRunner(ctx, name, args...)
	}
	return t.Run(ctx, name, args...)
}

func (t *Tesseract) language() string {
	if t.Language == "" {
		return "eng"
	}
	return t.Language
}

func (t *Tesseract) dpi() int {
	if t.DPI <= 0 {
		return 300
	}
	return t.DPI
}

// parseTSV rebuilds lines from tesseract's word-level TSV output and returns
// them with the mean word confidence scaled to [0,1].
func parseTSV(out []byte) (string, float64) {
	type lineKey struct{ block, par, line int }
	var (
		order []lineKey
		words = make(map[lineKey][]string)
		sum   float64
		n     int
	)
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		word := strings.TrimSpace(cols[11])
		if err != nil || conf < 0 || word == "" {
			continue
		}
		key := lineKey{atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		if _, seen := words[key]; !seen {
			order = append(order, key)
		}
		words[key] = append(words[key], word)
		sum += conf
		n++
	}
	lines := make([]string, 0, len(order))
	for _, k := range order {
		lines = append(lines, strings.Join(words[k], " "))
	}
	if n == 0 {
		return "", 0
	}
	return strings.Join(lines, "\n"), sum / float64(n) / 100
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
