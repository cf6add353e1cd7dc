package indexer

// PageMetadata carries the page-level fields copied onto every chunk
// upserted from that page.
type PageMetadata struct {
	SourceURL   string
	Title       string
	Description string
	CrawledAt   int64
}

func NewPageMetadata(sourceURL, title, description string, crawledAt int64) PageMetadata {
	return PageMetadata{
		SourceURL:   sourceURL,
		Title:       title,
		Description: description,
		CrawledAt:   crawledAt,
	}
}

// IndexResult tallies what Upsert did for one page's worth of chunks.
type IndexResult struct {
	Created int
	Updated int
	Failed  int
}
