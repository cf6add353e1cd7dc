package browser

/*
Responsibilities
- Maintain one lazily-initialized headless-browser allocator for the whole
  process (spec: "One headless-browser pool process-wide, lazily
  initialized; pages within it MAY be sequentialized")
- Navigate to a URL, optionally wait for a caller-supplied CSS selector,
  and dump the fully hydrated document.documentElement.outerHTML
- Decide, from a static fetch's body, whether it looks like an
  unhydrated SPA shell worth re-fetching through the browser

Grounded in theaidguild-kirk-ai/tools/crawler/chromedp_crawler.go for the
chromedp.NewContext/Navigate/OuterHTML shape, and in
original_source/spider/src/crawl_loop.rs for the SPA-shell marker
heuristic this package exposes as ShouldUseBrowser.
*/

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// minHTMLSize is the byte threshold below which a static fetch's body is
// treated as suspiciously small, independent of marker matching.
const minHTMLSize = 512

// spaMarkers are substrings (already lowercased) that crawl_loop.rs treats
// as telltales of a client-rendered shell still waiting to hydrate.
var spaMarkers = []string{
	"<noscript",
	`id="app"`,
	`id="root"`,
	"data-reactroot",
	"__next_data__",
	"window.__initial_state__",
}

// ShouldUseBrowser reports whether html (as returned by a static fetch)
// looks like an unhydrated SPA shell that a headless-browser fetch should
// re-render. An empty body always triggers a browser fetch.
func ShouldUseBrowser(html string) bool {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" {
		return true
	}
	if len(trimmed) < minHTMLSize {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type Fetcher interface {
	Fetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError)
}

var _ Fetcher = (*ChromedpFetcher)(nil)

// ChromedpFetcher wraps a single process-wide chromedp allocator context.
// Every Fetch call spawns its own browser tab (chromedp.NewContext) off
// that shared allocator, bounding pages to one OS-level Chrome process
// without serializing navigation through a single tab.
type ChromedpFetcher struct {
	metadataSink metadata.MetadataSink

	initOnce    sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromedpFetcher(metadataSink metadata.MetadataSink) *ChromedpFetcher {
	return &ChromedpFetcher{metadataSink: metadataSink}
}

// ensureAllocator lazily creates the shared allocator context on first use.
func (c *ChromedpFetcher) ensureAllocator() {
	c.initOnce.Do(func() {
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	})
}

// Close releases the process-wide allocator. Safe to call even if Fetch
// was never invoked.
func (c *ChromedpFetcher) Close() {
	if c.allocCancel != nil {
		c.allocCancel()
	}
}

func (c *ChromedpFetcher) Fetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	c.ensureAllocator()

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx)
	defer tabCancel()

	timeout := fetchParam.waitTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(tabCtx, timeout)
	defer navCancel()

	actions := []chromedp.Action{
		chromedp.Navigate(fetchParam.fetchUrl.String()),
	}
	if fetchParam.waitForSelector != "" {
		actions = append(actions, chromedp.WaitVisible(fetchParam.waitForSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	startTime := time.Now()
	err := chromedp.Run(navCtx, actions...)
	if err != nil {
		fetchErr := &FetchError{
			Message:   fmt.Sprintf("navigate %s: %v", fetchParam.fetchUrl.String(), err),
			Retryable: true,
			Cause:     ErrCauseNavigationFailed,
		}
		c.recordError(fetchParam.fetchUrl.String(), fetchErr)
		return FetchResult{}, fetchErr
	}

	if strings.TrimSpace(html) == "" {
		fetchErr := &FetchError{
			Message:   fmt.Sprintf("browser returned empty content for %s", fetchParam.fetchUrl.String()),
			Retryable: false,
			Cause:     ErrCauseEmptyContent,
		}
		c.recordError(fetchParam.fetchUrl.String(), fetchErr)
		return FetchResult{}, fetchErr
	}

	return FetchResult{
		url:       fetchParam.fetchUrl,
		html:      html,
		fetchedAt: startTime,
	}, nil
}

func (c *ChromedpFetcher) recordError(fetchURL string, err *FetchError) {
	c.metadataSink.RecordError(
		time.Now(),
		"browser",
		"ChromedpFetcher.Fetch",
		mapFetchErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchURL),
		},
	)
}
