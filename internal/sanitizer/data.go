package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// NewSanitizedHTMLDocForTest builds a SanitizedHTMLDoc directly, bypassing
// Sanitize. Exported for other packages' tests (e.g. scheduler) that need to
// stand up a Sanitizer mock's return value.
func NewSanitizedHTMLDocForTest(contentNode *html.Node, discoveredUrls []url.URL) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{contentNode: contentNode, discoveredUrls: discoveredUrls}
}
