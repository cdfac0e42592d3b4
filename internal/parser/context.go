package parser

import (
	"strings"
	"unicode/utf8"
)

// ContextRadius is how many bytes of text are kept on each side of a mention.
const ContextRadius = 80

// MinContext is the shortest context a mention may carry when the source has more text.
const MinContext = 60

// Window returns the whitespace-collapsed text around text[start:end].
func Window(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	lo := start - ContextRadius
	hi := end + ContextRadius
	// Short mentions near an edge borrow width from the other side.
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > len(text) {
		lo -= hi - len(text)
		hi = len(text)
		if lo < 0 {
			lo = 0
		}
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

// collapse normalises whitespace for display.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
