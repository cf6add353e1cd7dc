package extractor

import (
	"net/url"

	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// Extractor isolates a page's meaningful content container from the rest
// of its parsed DOM (navigation, chrome, boilerplate). SetExtractParam is
// called once per crawl, after config is loaded, the same way Robot.Init
// binds a crawl's user agent.
type Extractor interface {
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
	SetExtractParam(params ExtractParam)
}

// ContentScoreMultiplier holds per-signal weights for Layer 3's heuristic
// content-density scoring. DomExtractor does not read these fields:
// calculateContentScore uses fixed weights (1 per 50 non-whitespace
// characters, 5 per paragraph, 10 per h1-h3, 15 per code block, 2 per list item).
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold holds bounds for what counts as a real content
// container. DomExtractor does not read these fields: isMeaningful uses
// fixed bounds (at least 50 non-whitespace characters, link density at most
// 0.8, and a paragraph, code block, or heading) for every layer.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam tunes the Layer 3 heuristic fallback; Layers 1-2 (semantic
// container, known selectors) are parameter-free. Only BodySpecificityBias
// and LinkDensityThreshold are read by DomExtractor.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ContentBlock is a heading-anchored unit of rendered Markdown content: the
// nearest preceding heading text (possibly empty, for content appearing
// before any heading) paired with the Markdown rendering of one leaf content
// element (paragraph, code block, list, table, or blockquote).
type ContentBlock struct {
	Heading string
	Text    string
}

func NewContentBlock(heading, text string) ContentBlock {
	return ContentBlock{Heading: heading, Text: text}
}
