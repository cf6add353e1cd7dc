package extractor

import (
	"strings"

	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"golang.org/x/net/html"
)

/*
Block extraction

Runs after sanitization, ahead of chunking. It walks the sanitized content
node in document order, tracking the nearest preceding heading, and emits one
ContentBlock per leaf content element (paragraph, code block, list, table,
blockquote). div/section/article/main wrappers are transparent: the walker
recurses through them without emitting a block of their own, so a heading
found anywhere above a leaf element still anchors it.
*/

// transparentContainers are recursed into without themselves becoming a block.
var transparentContainers = map[string]bool{
	"div": true, "section": true, "article": true, "main": true,
	"body": true, "html": true,
}

// leafBlockElements become one ContentBlock each and are not decomposed further.
var leafBlockElements = map[string]bool{
	"p": true, "pre": true, "blockquote": true,
	"table": true, "ul": true, "ol": true,
}

var headingElements = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ExtractContentBlocks walks sanitized's content node and returns the
// document's content as an ordered list of heading-anchored blocks.
func ExtractContentBlocks(sanitized sanitizer.SanitizedHTMLDoc) []ContentBlock {
	root := sanitized.GetContentNode()
	if root == nil {
		return nil
	}

	var blocks []ContentBlock
	var currentHeading string
	walkForBlocks(root, &currentHeading, &blocks)
	return blocks
}

func walkForBlocks(n *html.Node, currentHeading *string, blocks *[]ContentBlock) {
	if n == nil {
		return
	}

	if n.Type == html.ElementNode {
		switch {
		case headingElements[n.Data]:
			if text := strings.TrimSpace(textContent(n)); text != "" {
				*currentHeading = text
			}
			return

		case leafBlockElements[n.Data]:
			if strings.TrimSpace(textContent(n)) == "" {
				return
			}
			text := renderBlock(n)
			if strings.TrimSpace(text) != "" {
				*blocks = append(*blocks, NewContentBlock(*currentHeading, text))
			}
			return

		case !transparentContainers[n.Data]:
			// Unknown/non-block elements (e.g. span, em) never form a block on
			// their own; fall through and let their children be visited so any
			// leaf block nested inside still gets collected.
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkForBlocks(c, currentHeading, blocks)
	}
}

// renderBlock converts a single leaf node to Markdown, falling back to its
// plain text content if Markdown conversion fails.
func renderBlock(n *html.Node) string {
	if md, err := mdconvert.RenderNodeToMarkdown(n); err == nil {
		if rendered := strings.TrimSpace(string(md)); rendered != "" {
			return rendered
		}
	}
	return strings.TrimSpace(textContent(n))
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
