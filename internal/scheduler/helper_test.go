package scheduler_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/internal/browser"
	"github.com/rohmanhakim/docs-crawler/internal/chunker"
	"github.com/rohmanhakim/docs-crawler/internal/dedup"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/indexer"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
)

// createSchedulerForTest wires a Scheduler out of the fakes below, mirroring
// NewScheduler's shape but with every collaborator swappable.
func createSchedulerForTest(
	t *testing.T,
	ctx context.Context,
	finalizer *mockFinalizer,
	metadataSink metadata.MetadataSink,
	rateLimiter *rateLimiterMock,
	htmlFetcher *fetcherMock,
	robot *robotsMock,
	extractorImpl *extractorMock,
	sanitizerImpl *sanitizerMock,
	browserImpl *browserMock,
	indexerImpl *indexerMock,
) scheduler.Scheduler {
	t.Helper()
	return scheduler.NewSchedulerWithDeps(
		ctx,
		finalizer,
		metadataSink,
		rateLimiter,
		htmlFetcher,
		robot,
		extractorImpl,
		sanitizerImpl,
		browserImpl,
		dedup.NewContentDedup(),
		chunker.NewTokenChunker(),
		indexerImpl,
		&noopSleeper{},
	)
}

// noopSleeper never actually sleeps, so tests don't pay real wall-clock
// rate-limit delays.
type noopSleeper struct{}

func (*noopSleeper) Sleep(time.Duration) {}

// mockFinalizer captures the final crawl statistics it was handed.
type mockFinalizer struct {
	recordedStats *capturedStats
}

type capturedStats struct {
	totalPages  int
	totalErrors int
	totalChunks int
	duration    time.Duration
}

func newMockFinalizer(t *testing.T) *mockFinalizer {
	t.Helper()
	return &mockFinalizer{}
}

func (m *mockFinalizer) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	m.recordedStats = &capturedStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalChunks: totalAssets,
		duration:    duration,
	}
}

// errorRecordingSink counts RecordError calls and otherwise discards events,
// for tests that need the error count as well as a sink.
type errorRecordingSink struct {
	errorCount int
}

func (e *errorRecordingSink) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
	e.errorCount++
}
func (e *errorRecordingSink) RecordFetch(string, int, time.Duration, string, int, int) {}
func (e *errorRecordingSink) RecordAssetFetch(string, int, time.Duration, int)         {}
func (e *errorRecordingSink) RecordArtifact(metadata.ArtifactType, string, []metadata.Attribute) {
}

// rateLimiterMock is a testify mock of limiter.RateLimiter.
type rateLimiterMock struct {
	mock.Mock
}

func newRateLimiterMockForTest(t *testing.T) *rateLimiterMock {
	t.Helper()
	m := new(rateLimiterMock)
	m.On("SetBaseDelay", mock.Anything).Return()
	m.On("SetJitter", mock.Anything).Return()
	m.On("SetRandomSeed", mock.Anything).Return()
	m.On("SetCrawlDelay", mock.Anything, mock.Anything).Return()
	m.On("Backoff", mock.Anything).Return()
	m.On("ResetBackoff", mock.Anything).Return()
	m.On("ResolveDelay", mock.Anything).Return(time.Duration(0))
	return m
}

func (m *rateLimiterMock) SetBaseDelay(baseDelay time.Duration)           { m.Called(baseDelay) }
func (m *rateLimiterMock) SetJitter(jitter time.Duration)                 { m.Called(jitter) }
func (m *rateLimiterMock) SetRandomSeed(randomSeed int64)                 { m.Called(randomSeed) }
func (m *rateLimiterMock) SetCrawlDelay(host string, delay time.Duration) { m.Called(host, delay) }
func (m *rateLimiterMock) Backoff(host string)                           { m.Called(host) }
func (m *rateLimiterMock) ResetBackoff(host string)                      { m.Called(host) }
func (m *rateLimiterMock) Wait(ctx context.Context, host string) error {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil
	}
	return args.Error(0)
}
func (m *rateLimiterMock) ResolveDelay(host string) time.Duration {
	args := m.Called(host)
	return args.Get(0).(time.Duration)
}

// fetcherMock is a testify mock of fetcher.Fetcher.
type fetcherMock struct {
	mock.Mock
}

func (f *fetcherMock) Init(httpClient *http.Client) { f.Called(httpClient) }

func (f *fetcherMock) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam fetcher.FetchParam,
	retryParam retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	args := f.Called(ctx, crawlDepth, fetchParam, retryParam)
	result := args.Get(0).(fetcher.FetchResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func newFetcherMockForTest(t *testing.T) *fetcherMock {
	t.Helper()
	m := new(fetcherMock)
	m.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fetcher.FetchResult{}, nil)
	return m
}

func setupFetcherMockWithSuccess(t *testing.T, m *fetcherMock, urlStr string, body []byte) {
	t.Helper()
	testURL, err := url.Parse(urlStr)
	if err != nil {
		t.Fatalf("parse %q: %v", urlStr, err)
	}
	result := fetcher.NewFetchResultForTest(
		*testURL,
		body,
		200,
		"text/html",
		map[string]string{"Content-Type": "text/html"},
		time.Unix(0, 0),
	)
	m.Mock.ExpectedCalls = nil
	m.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(result, nil)
}

func setupFetcherMockWithError(m *fetcherMock, err failure.ClassifiedError) {
	m.Mock.ExpectedCalls = nil
	m.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(fetcher.FetchResult{}, err)
}

// mockClassifiedError is a minimal failure.ClassifiedError for test fixtures.
type mockClassifiedError struct {
	msg      string
	severity failure.Severity
}

func (e *mockClassifiedError) Error() string              { return e.msg }
func (e *mockClassifiedError) Severity() failure.Severity { return e.severity }

// robotsMock is a testify mock of robots.Robot.
type robotsMock struct {
	mock.Mock
}

func (r *robotsMock) Init(userAgent string) { r.Called(userAgent) }

func (r *robotsMock) Decide(target url.URL) (robots.Decision, *robots.RobotsError) {
	args := r.Called(target)
	decision := args.Get(0).(robots.Decision)
	var robotsErr *robots.RobotsError
	if args.Get(1) != nil {
		robotsErr = args.Get(1).(*robots.RobotsError)
	}
	return decision, robotsErr
}

func newRobotsMockForTest(t *testing.T) *robotsMock {
	t.Helper()
	m := new(robotsMock)
	m.On("Init", mock.Anything).Return()
	return m
}

// allowAnyURL makes m.Decide allow every target passed to it.
func allowAnyURL(m *robotsMock) {
	m.On("Decide", mock.AnythingOfType("url.URL")).Return(robots.Decision{Allowed: true}, nil)
}

// extractorMock is a testify mock of extractor.Extractor.
type extractorMock struct {
	mock.Mock
}

func (e *extractorMock) Extract(sourceUrl url.URL, htmlByte []byte) (extractor.ExtractionResult, failure.ClassifiedError) {
	args := e.Called(sourceUrl, htmlByte)
	result := args.Get(0).(extractor.ExtractionResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func (e *extractorMock) SetExtractParam(params extractor.ExtractParam) {
	e.Called(params)
}

func newExtractorMockForTest(t *testing.T) *extractorMock {
	t.Helper()
	m := new(extractorMock)
	m.On("SetExtractParam", mock.Anything).Return()
	m.On("Extract", mock.Anything, mock.Anything).Return(extractor.ExtractionResult{}, nil)
	return m
}

func setupExtractorMockWithContent(m *extractorMock, root, contentNode *html.Node) {
	m.Mock.ExpectedCalls = nil
	m.On("SetExtractParam", mock.Anything).Return()
	m.On("Extract", mock.Anything, mock.Anything).Return(extractor.ExtractionResult{
		DocumentRoot: root,
		ContentNode:  contentNode,
	}, nil)
}

// sanitizerMock is a testify mock of sanitizer.Sanitizer.
type sanitizerMock struct {
	mock.Mock
}

func (s *sanitizerMock) Sanitize(inputContentNode *html.Node) (sanitizer.SanitizedHTMLDoc, failure.ClassifiedError) {
	args := s.Called(inputContentNode)
	result := args.Get(0).(sanitizer.SanitizedHTMLDoc)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func newSanitizerMockForTest(t *testing.T) *sanitizerMock {
	t.Helper()
	m := new(sanitizerMock)
	m.On("Sanitize", mock.Anything).Return(sanitizer.NewSanitizedHTMLDocForTest(nil, nil), nil)
	return m
}

func setupSanitizerMockWithContentNode(m *sanitizerMock, contentNode *html.Node) {
	m.Mock.ExpectedCalls = nil
	m.On("Sanitize", mock.Anything).Return(sanitizer.NewSanitizedHTMLDocForTest(contentNode, nil), nil)
}

// browserMock is a testify mock of browser.Fetcher.
type browserMock struct {
	mock.Mock
}

func (b *browserMock) Fetch(ctx context.Context, fetchParam browser.FetchParam) (browser.FetchResult, failure.ClassifiedError) {
	args := b.Called(ctx, fetchParam)
	result := args.Get(0).(browser.FetchResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func newBrowserMockForTest(t *testing.T) *browserMock {
	t.Helper()
	m := new(browserMock)
	m.On("Fetch", mock.Anything, mock.Anything).Return(
		browser.FetchResult{},
		&browser.FetchError{Message: "not configured", Retryable: true, Cause: browser.ErrCauseNavigationFailed},
	)
	return m
}

// indexerMock is a testify mock of indexer.Indexer (+ the optional
// SetTarget method that makes it satisfy the scheduler's targetable).
type indexerMock struct {
	mock.Mock
}

func (i *indexerMock) Upsert(ctx context.Context, chunks []chunker.Chunk, page indexer.PageMetadata) (indexer.IndexResult, failure.ClassifiedError) {
	args := i.Called(ctx, chunks, page)
	result := args.Get(0).(indexer.IndexResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

func (i *indexerMock) SetTarget(baseURL, className string) {
	i.Called(baseURL, className)
}

func newIndexerMockForTest(t *testing.T) *indexerMock {
	t.Helper()
	m := new(indexerMock)
	m.On("SetTarget", mock.Anything, mock.Anything).Return()
	m.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(indexer.IndexResult{}, nil)
	return m
}

func parseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *u
}
