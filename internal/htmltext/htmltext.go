// Package htmltext renders fetched HTML as sanitized plain text for the
// parsers and as Markdown for archived readable copies.
package htmltext

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the text rendering of one HTML page.
type Document struct {
	Title string
	Text  string
}

var (
	policy = newPolicy()
	md     = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	blankRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns = regexp.MustCompile(`[ \t\p{Zs}]+`)
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.SkipElementsContent("title", "noscript")
	return p
}

// Extract returns the page title and its visible text. Block elements and
// table rows end a line; cells are separated by a tab.
func Extract(body []byte) (Document, error) {
	raw, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Document{}, err
	}
	title := findTitle(raw)

	clean, err := html.Parse(bytes.NewReader(policy.SanitizeBytes(body)))
	if err != nil {
		return Document{}, err
	}
	var sb strings.Builder
	walk(clean, &sb)
	return Document{Title: title, Text: tidy(sb.String())}, nil
}

// Markdown converts sanitized HTML to Markdown with links resolved against
// sourceURL.
func Markdown(body []byte, sourceURL string) (string, error) {
	out, err := md.ConvertString(policy.Sanitize(string(body)), converter.WithDomain(sourceURL))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.Join(strings.Fields(sb.String()), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func walk(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Title:
			return
		case atom.Br:
			sb.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb)
	}
	if n.Type != html.ElementNode {
		return
	}
	switch n.DataAtom {
	case atom.Td, atom.Th:
		sb.WriteByte('\t')
	case atom.P, atom.Div, atom.Tr, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Table, atom.Section, atom.Article, atom.Blockquote, atom.Pre, atom.Dt, atom.Dd:
		sb.WriteByte('\n')
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		cells := strings.Split(line, "\t")
		kept := cells[:0]
		for _, c := range cells {
			c = strings.TrimSpace(spaceRuns.ReplaceAllString(c, " "))
			if c != "" {
				kept = append(kept, c)
			}
		}
		lines[i] = strings.Join(kept, "\t")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
