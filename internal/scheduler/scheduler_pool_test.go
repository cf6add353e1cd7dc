package scheduler_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/indexer"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
)

// TestExecuteCrawling_MultiplePages_AllProcessedByRunnerPool admits three
// pages directly and runs four goroutines that, like the Runner pool,
// dequeue from the shared frontier and process each token, confirming the
// whole frontier is drained regardless of how many goroutines race on it.
func TestExecuteCrawling_MultiplePages_AllProcessedByRunnerPool(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	robot := newRobotsMockForTest(t)
	allowAnyURL(robot)

	seed, err := url.Parse("https://example.com/docs/index")
	require.NoError(t, err)
	childA, err := url.Parse("https://example.com/docs/a")
	require.NoError(t, err)
	childB, err := url.Parse("https://example.com/docs/b")
	require.NoError(t, err)

	pageURLs := []url.URL{*seed, *childA, *childB}
	texts := []string{
		"Index page body content here.",
		"Page A body content here, distinct from the others.",
		"Page B body content here, also distinct from the others.",
	}

	htmlFetcher := newFetcherMockForTest(t)
	htmlFetcher.Mock.ExpectedCalls = nil
	for _, u := range pageURLs {
		result := fetcher.NewFetchResultForTest(
			u,
			[]byte(strings.Repeat("x", 600)),
			200,
			"text/html",
			map[string]string{"Content-Type": "text/html"},
			time.Unix(0, 0),
		)
		htmlFetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(result, nil).Once()
	}

	ext := newExtractorMockForTest(t)
	ext.Mock.ExpectedCalls = nil
	ext.On("SetExtractParam", mock.Anything).Return()
	san := newSanitizerMockForTest(t)
	san.Mock.ExpectedCalls = nil
	for _, text := range texts {
		root := parseFragment(t, `<html><body><h1>Heading</h1><p>`+text+`</p></body></html>`)
		content := root.FirstChild.LastChild
		ext.On("Extract", mock.Anything, mock.Anything).Return(extractor.ExtractionResult{
			DocumentRoot: root,
			ContentNode:  content,
		}, nil).Once()
		san.On("Sanitize", mock.Anything).Return(sanitizer.NewSanitizedHTMLDocForTest(content, nil), nil).Once()
	}

	idx := newIndexerMockForTest(t)
	idx.Mock.ExpectedCalls = nil
	idx.On("SetTarget", mock.Anything, mock.Anything).Return()

	var upsertMu sync.Mutex
	upsertedURLs := make(map[string]int)
	idx.On("Upsert", mock.Anything, mock.Anything, mock.AnythingOfType("indexer.PageMetadata")).
		Return(indexer.IndexResult{Created: 1}, nil).
		Run(func(args mock.Arguments) {
			page := args.Get(2).(indexer.PageMetadata)
			upsertMu.Lock()
			upsertedURLs[page.SourceURL]++
			upsertMu.Unlock()
		})

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot, ext, san, newBrowserMockForTest(t), idx)

	for _, u := range pageURLs {
		require.Nil(t, s.SubmitUrlForAdmission(u, "Seed", 0))
	}
	s.SetCurrentHost("example.com")

	cfg := config.WithDefault([]url.URL{*seed}).WithConcurrency(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				token, ok := s.DequeueFromFrontier()
				if !ok {
					return
				}
				s.ProcessTokenForTest(*cfg, token)
			}
		}()
	}
	wg.Wait()

	upsertMu.Lock()
	defer upsertMu.Unlock()
	assert.Len(t, upsertedURLs, 3)
	for _, count := range upsertedURLs {
		assert.Equal(t, 1, count)
	}
}
