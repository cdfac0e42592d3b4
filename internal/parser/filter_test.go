package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"John Smith", ""},
		{"Peter", ""},
		{"LYNN", ""},
		{"NAMES", "denylisted token"},
		{"Age", "denylisted token"},
		{"aforesaid", "denylisted token"},
		{"Your Petitioner", "denylisted token"},
		{"the said aforesaid Smith", "denylisted token"},
		{"J", "too short"},
		{" ", "too short"},
		{"1850", "numeric"},
		{"12 / 3", "numeric"},
		{"John\nSmith", "contains newline"},
		{"XKCD", "upper case without vowels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RejectReason(tt.name))
		})
	}
}

func TestWindowKeepsMinimumContext(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a ", 100) + "Peter" + strings.Repeat(" b", 100)
	start := strings.Index(text, "Peter")
	got := Window(text, start, start+len("Peter"))
	assert.Contains(t, got, "Peter")
	assert.GreaterOrEqual(t, len(got), MinContext)

	// Near the start the window borrows from the right.
	edge := Window(text, 0, 1)
	assert.GreaterOrEqual(t, len(edge), MinContext)
}
