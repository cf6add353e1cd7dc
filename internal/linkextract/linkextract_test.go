package linkextract_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/internal/linkextract"
)

func parseFragment(t *testing.T, htmlStr string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlStr))
	require.NoError(t, err)
	return doc
}

func mustPageURL(t *testing.T) url.URL {
	t.Helper()
	u, err := url.Parse("https://example.com/docs/intro")
	require.NoError(t, err)
	return *u
}

func TestExtractLinks_ResolvesRelativeAndClassifies(t *testing.T) {
	node := parseFragment(t, `<html><body>
		<a href="../guide">Guide</a>
		<a href="https://other.com/page">External</a>
		<a href="#section">Jump</a>
		<img src="/logo.png">
	</body></html>`)

	links := linkextract.ExtractLinks(node, mustPageURL(t))

	require.Len(t, links, 4)
	var kinds []linkextract.LinkKind
	for _, l := range links {
		kinds = append(kinds, l.Kind)
	}
	assert.Contains(t, kinds, linkextract.KindNavigation)
	assert.Contains(t, kinds, linkextract.KindAnchor)
	assert.Contains(t, kinds, linkextract.KindImage)
}

func TestExtractLinks_DropsUnfetchableSchemes(t *testing.T) {
	node := parseFragment(t, `<html><body>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:a@b.com">Mail</a>
		<a href="tel:+123">Tel</a>
		<a href="data:text/plain,hi">Data</a>
		<a href="">Empty</a>
		<a href="undefined">Undefined</a>
		<a href="/real-page">Real</a>
	</body></html>`)

	links := linkextract.ExtractLinks(node, mustPageURL(t))

	require.Len(t, links, 1)
	assert.Equal(t, "/real-page", links[0].URL.Path)
}

func TestExtractLinks_DropsHiddenElements(t *testing.T) {
	node := parseFragment(t, `<html><body>
		<a href="/visible">Visible</a>
		<div style="display:none"><a href="/hidden">Hidden</a></div>
		<script><a href="/scripted">Scripted</a></script>
	</body></html>`)

	links := linkextract.ExtractLinks(node, mustPageURL(t))

	require.Len(t, links, 1)
	assert.Equal(t, "/visible", links[0].URL.Path)
}

func TestExtractLinks_DeduplicatesWithinPage(t *testing.T) {
	node := parseFragment(t, `<html><body>
		<a href="/same">One</a>
		<a href="/same">Two</a>
		<a href="/same#fragment">Three</a>
	</body></html>`)

	links := linkextract.ExtractLinks(node, mustPageURL(t))

	require.Len(t, links, 1)
}
