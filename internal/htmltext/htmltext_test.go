package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>  Petition of
John Smith </title><script>var x = "Not A Name";</script></head>
<body>
<h1>Emancipation petitions</h1>
<p>Petition of John Smith, for the negro man Peter.</p>
<table>
<tr><th>Name</th><th>Role</th></tr>
<tr><td>Peter</td><td>Enslaved</td></tr>
</table>
<a href="/doc/2" onclick="steal()">next</a>
</body></html>`

func TestExtract(t *testing.T) {
	t.Parallel()

	doc, err := Extract([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Petition of John Smith", doc.Title)
	assert.Contains(t, doc.Text, "Petition of John Smith, for the negro man Peter.")
	assert.Contains(t, doc.Text, "Peter\tEnslaved")
	assert.NotContains(t, doc.Text, "Petition of\nJohn")
	assert.NotContains(t, doc.Text, "Not A Name")
	assert.NotContains(t, doc.Text, "steal")
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	out, err := Markdown([]byte(page), "https://example.org/doc/1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Emancipation petitions")
	assert.Contains(t, out, "/doc/2")
	assert.NotContains(t, out, "onclick")
}
