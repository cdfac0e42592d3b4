package ocr

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// A PDF text layer is trusted when each page carries at least this many
// printable characters and most of them are letters or spaces.
const (
	minCharsPerPage    = 200
	minPrintableRatio  = 0.85
	textLayerService   = "pdf-text"
	textLayerConfident = 0.98
)

// pdfText is the text layer of a PDF, one entry per page.
type pdfText struct {
	Pages []string
}

// Usable reports whether the layer is dense and clean enough to skip OCR.
func (p pdfText) Usable() bool {
	if len(p.Pages) == 0 {
		return false
	}
	joined := strings.Join(p.Pages, "\n")
	if len([]rune(joined))/len(p.Pages) < minCharsPerPage {
		return false
	}
	return printableRatio(joined) >= minPrintableRatio
}

// readPDFText pulls the embedded text of every page with pdfcpu. It returns
// the page count even when no text is found so OCR engines can be sized.
func readPDFText(body []byte) (_ pdfText, _ int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(body), model.NewDefaultConfiguration())
	if err != nil {
		return pdfText{}, 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	out := pdfText{Pages: make([]string, 0, ctx.PageCount)}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		out.Pages = append(out.Pages, pageText(ctx, pageNr))
	}
	return out, ctx.PageCount, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return streamText(data)
}

var (
	pdfLiteral = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
	pdfEscapes = strings.NewReplacer(`\n`, "\n", `\r`, "", `\t`, " ", `\(`, "(", `\)`, ")", `\\`, `\`)
)

// streamText reads text-showing operators out of a content stream.
func streamText(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(pdfEscapes.Replace(string(m[1])))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			sb.WriteByte('\n')
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(pdfEscapes.Replace(string(m[1])))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

func printableRatio(s string) float64 {
	total, good := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
