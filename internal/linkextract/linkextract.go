package linkextract

/*
Responsibilities
- Walk a sanitized page's DOM and collect every outbound reference
- Classify each reference (navigation anchor, image, in-page anchor)
- Drop references that can never be fetched: javascript:, mailto:, tel:,
  data: URIs, empty/undefined hrefs, and anything inside <script> or a
  display:none subtree
- Resolve relative references to absolute URLs against the page they were
  found on, stripping fragments, and deduplicate within the page

This runs after sanitization and independently of Markdown conversion: the
scheduler uses its output to decide what to submit to the frontier, while
mdconvert's own link refs remain purely informational (preserved as-authored
inline links in the rendered Markdown body).
*/

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

var excludedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ExtractLinks walks contentNode and returns the deduplicated, absolute
// outbound links found on the page at pageURL.
func ExtractLinks(contentNode *html.Node, pageURL url.URL) []DiscoveredLink {
	if contentNode == nil {
		return nil
	}

	doc := goquery.NewDocumentFromNode(contentNode)
	seen := make(map[string]bool)
	var links []DiscoveredLink

	doc.Find("a[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		if isHidden(s) {
			return
		}

		tagName := goquery.NodeName(s)
		var raw string
		var kind LinkKind

		switch tagName {
		case "a":
			href, exists := s.Attr("href")
			if !exists {
				return
			}
			raw = href
			if strings.HasPrefix(raw, "#") {
				kind = KindAnchor
			} else {
				kind = KindNavigation
			}
		case "img":
			src, exists := s.Attr("src")
			if !exists {
				return
			}
			raw = src
			kind = KindImage
		default:
			return
		}

		if !isFetchable(raw) {
			return
		}

		ref, err := url.Parse(raw)
		if err != nil {
			return
		}

		resolved := urlutil.Resolve(*ref, pageURL)
		resolved.Fragment = ""
		resolved.RawFragment = ""

		key := resolved.String()
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		links = append(links, NewDiscoveredLink(resolved, kind))
	})

	return links
}

// isFetchable rejects raw references that are structurally never fetchable:
// empty, the literal "undefined" some frameworks emit, or an excluded
// scheme. In-page anchors (#section) are fetchable in the sense that they
// resolve to the current page and are kept, classified as KindAnchor.
func isFetchable(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "undefined" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, scheme := range excludedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

// isHidden reports whether s or any ancestor is a <script>/<style> element
// or carries an inline display:none style.
func isHidden(s *goquery.Selection) bool {
	hidden := false
	s.ParentsFiltered("script, style").Each(func(_ int, _ *goquery.Selection) {
		hidden = true
	})
	if hidden {
		return true
	}

	style, exists := s.Attr("style")
	if exists && strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
		return true
	}

	hasHiddenAncestor := false
	s.Parents().Each(func(_ int, p *goquery.Selection) {
		if pStyle, ok := p.Attr("style"); ok {
			if strings.Contains(strings.ReplaceAll(strings.ToLower(pStyle), " ", ""), "display:none") {
				hasHiddenAncestor = true
			}
		}
	})
	return hasHiddenAncestor
}
