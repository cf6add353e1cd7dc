package browser

import (
	"net/url"
	"time"
)

type FetchParam struct {
	fetchUrl        url.URL
	waitForSelector string
	waitTimeout     time.Duration
}

func NewFetchParam(fetchUrl url.URL, waitForSelector string, waitTimeout time.Duration) FetchParam {
	return FetchParam{
		fetchUrl:        fetchUrl,
		waitForSelector: waitForSelector,
		waitTimeout:     waitTimeout,
	}
}

type FetchResult struct {
	url       url.URL
	html      string
	fetchedAt time.Time
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) HTML() string {
	return f.html
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

// NewFetchResultForTest builds a FetchResult for tests in other packages
// that need to stand up a Fetcher mock's return value.
func NewFetchResultForTest(url url.URL, htmlContent string) FetchResult {
	return FetchResult{url: url, html: htmlContent}
}
