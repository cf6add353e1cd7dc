package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/internal/browser"
	"github.com/rohmanhakim/docs-crawler/internal/chunker"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/dedup"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/indexer"
	"github.com/rohmanhakim/docs-crawler/internal/linkextract"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - Scheduler is the ONLY component allowed to decide whether a URL
   may enter the crawl frontier.
 - All semantic admission checks (robots.txt, scope, depth, limits)
   MUST be completed before submitting a URL to the frontier.
 - No other component may enqueue, reject, or reorder URLs.
 - The frontier should only accept already-admitted URLs.
 - Pipeline stages may detect and classify failure, but must never decide retry, continuation, or abortion.

 The scheduler coordinates pipeline execution but does not delegate
 control-flow decisions to downstream stages.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.

 Scheduler Responsibilities:
 - Coordinate crawl lifecycle across a pool of concurrent Runners
 - Enforce global limits (pages, depth)
 - Manage graceful shutdown
 - Aggregate crawl statistics
 - Decide whether a robots outcome proceeds to the frontier.
 - The sole authority on:
	- retry
	- continue
	- abort

 Runners (one goroutine per Config.Concurrency() slot) share one frontier,
 one rate limiter, one robots cache, one content-dedup set and one indexer;
 each URL is only ever owned by the Runner that dequeued it.
*/

type Scheduler struct {
	ctx            context.Context
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	robot          robots.Robot
	frontier       *frontier.Frontier
	htmlFetcher    fetcher.Fetcher
	domExtractor   extractor.Extractor
	htmlSanitizer  sanitizer.Sanitizer
	browserFetcher browser.Fetcher
	contentDedup   *dedup.ContentDedup
	chunker        chunker.Chunker
	indexer        indexer.Indexer
	currentHost    string
	rateLimiter    limiter.RateLimiter
	sleeper        timeutil.Sleeper
	recoveryStore  storage.RecoveryStore

	totalErrors  atomic.Int64
	totalChunks  atomic.Int64
	activeRunner atomic.Int32
}

func NewScheduler() Scheduler {
	recorder := metadata.NewRecorder(os.Stdout)
	cachedRobot := robots.NewCachedRobot(recorder)
	crawlFrontier := frontier.NewCrawlFrontier()
	htmlFetcher := fetcher.NewHtmlFetcher(recorder)
	ext := extractor.NewDomExtractor(recorder, extractor.ExtractParam{})
	htmlSanitizer := sanitizer.NewHTMLSanitizer(recorder)
	browserFetcher := browser.NewChromedpFetcher(recorder)
	rateLimiter := limiter.NewConcurrentRateLimiter()
	sleeper := timeutil.NewRealSleeper()
	return Scheduler{
		metadataSink:   recorder,
		crawlFinalizer: recorder,
		robot:          &cachedRobot,
		frontier:       crawlFrontier,
		htmlFetcher:    &htmlFetcher,
		domExtractor:   &ext,
		htmlSanitizer:  &htmlSanitizer,
		browserFetcher: browserFetcher,
		contentDedup:   dedup.NewContentDedup(),
		chunker:        chunker.NewTokenChunker(),
		indexer:        indexer.NewHTTPIndexer(recorder, "", ""),
		rateLimiter:    rateLimiter,
		sleeper:        &sleeper,
	}
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies for testing.
// This constructor allows tests to provide mock implementations of every
// collaborator the crawl pipeline shares across Runners.
func NewSchedulerWithDeps(
	ctx context.Context,
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	rateLimiter limiter.RateLimiter,
	htmlFetcher fetcher.Fetcher,
	robot robots.Robot,
	domExtractor extractor.Extractor,
	htmlSanitizer sanitizer.Sanitizer,
	browserFetcher browser.Fetcher,
	contentDedup *dedup.ContentDedup,
	chunkerImpl chunker.Chunker,
	indexerImpl indexer.Indexer,
	sleeper timeutil.Sleeper,
) Scheduler {
	crawlFrontier := frontier.NewCrawlFrontier()
	return Scheduler{
		ctx:            ctx,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		robot:          robot,
		frontier:       crawlFrontier,
		htmlFetcher:    htmlFetcher,
		domExtractor:   domExtractor,
		htmlSanitizer:  htmlSanitizer,
		browserFetcher: browserFetcher,
		contentDedup:   contentDedup,
		chunker:        chunkerImpl,
		indexer:        indexerImpl,
		rateLimiter:    rateLimiter,
		sleeper:        sleeper,
	}
}

// targetable is satisfied by an Indexer that can be pointed at a vector
// store after construction, mirroring how Robot.Init and
// Extractor.SetExtractParam take their real settings post-construction.
type targetable interface {
	SetTarget(baseURL, className string)
}

// SubmitUrlForAdmission performs all semantic checks required for a URL
// to enter the crawl frontier.
//
// This function is the single admission choke point for the system.
// If this function returns nil, the URL is guaranteed to be admissible
// and safe to submit to the frontier.
//
// No other code path may call Frontier.Submit.
// - Only the scheduler imports frontier
// - Only the scheduler constructs CrawlAdmissionCandidate
// - Pipeline stages never see frontier types
//
// Safe to call concurrently from multiple Runners: robot, rateLimiter and
// frontier are all shared, lock-protected collaborators.
func (s *Scheduler) SubmitUrlForAdmission(
	url url.URL,
	sourceContext frontier.SourceContext,
	depth int,
) failure.ClassifiedError {
	// Fetch robots.txt
	robotsDecision, robotsError := s.robot.Decide(url)
	// Robots infrastructure failure → scheduler-level error
	if robotsError != nil {
		return robotsError
	}

	// Reset backoff after successful robots request
	if s.rateLimiter != nil {
		s.rateLimiter.ResetBackoff(url.Host)
	}

	if robotsDecision.CrawlDelay > 0 && s.rateLimiter != nil {
		s.rateLimiter.SetCrawlDelay(s.currentHost, robotsDecision.CrawlDelay)
	}

	// Robots explicitly disallowed → normal, terminal outcome
	if !robotsDecision.Allowed {
		// Important:
		// - metadata already emitted by robots
		// - NO retry
		// - NO abort
		// - NO frontier submission
		return nil
	}

	// Only submit to frontier if robots allowed
	candidate := frontier.NewCrawlAdmissionCandidate(
		url,
		sourceContext,
		frontier.NewDiscoveryMetadata(depth, nil),
	)

	// Submit Allowed URL for Admission by Frontier
	s.frontier.Submit(candidate)
	if s.recoveryStore != nil {
		s.recoveryStore.AddPending(url.String())
	}
	return nil
}

// Current implementation runs cfg.Concurrency() Runner goroutines against
// one shared frontier. This does not imply a global ordering guarantee
// across Runners, only within the depth-bucketed FIFO each of them dequeues
// from.
func (s *Scheduler) ExecuteCrawling(configPath string) (CrawlingExecution, error) {
	crawlStartTime := time.Now()

	// Ensure final stats are recorded even if errors occur
	defer func() {
		crawlDuration := time.Since(crawlStartTime)
		totalPages := s.frontier.VisitedCount()
		s.crawlFinalizer.RecordFinalCrawlStats(
			totalPages,
			int(s.totalErrors.Load()),
			int(s.totalChunks.Load()),
			crawlDuration,
		)
	}()

	// 1. Prepare config File
	cfg, err := config.WithConfigFile(configPath)
	if err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"config",
			"config.WithConfigFile",
			metadata.CauseContentInvalid,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrField, fmt.Sprintf("field: %v", "theFieldError")),
			},
		)
		return CrawlingExecution{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if s.ctx == nil {
		s.ctx = ctx
	}

	// Validate that at least one seed URL exists
	if len(cfg.SeedURLs()) == 0 {
		err := fmt.Errorf("no seed URLs configured")
		s.metadataSink.RecordError(
			time.Now(),
			"config",
			"config validation",
			metadata.CauseContentInvalid,
			err.Error(),
			[]metadata.Attribute{},
		)
		return CrawlingExecution{}, err
	}

	// 1.1 Initialize rate limiter
	s.rateLimiter.SetBaseDelay(cfg.BaseDelay())
	s.rateLimiter.SetJitter(cfg.Jitter())
	s.rateLimiter.SetRandomSeed(cfg.RandomSeed())

	// 1.2 Initialize Robots and Frontier
	s.robot.Init(cfg.UserAgent())
	s.frontier.Init(cfg)

	// 1.3 Configure DOM Extractor with extraction parameters from config
	extractParam := extractor.ExtractParam{
		BodySpecificityBias:  cfg.BodySpecificityBias(),
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		ScoreMultiplier: extractor.ContentScoreMultiplier{
			NonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
			Paragraphs:           cfg.ScoreMultiplierParagraphs(),
			Headings:             cfg.ScoreMultiplierHeadings(),
			CodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
			ListItems:            cfg.ScoreMultiplierListItems(),
		},
		Threshold: extractor.MeaningfulThreshold{
			MinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
			MinHeadings:         cfg.ThresholdMinHeadings(),
			MinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
			MaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
		},
	}
	s.domExtractor.SetExtractParam(extractParam)

	// 1.4 Point the indexer at this crawl's vector-store target, same
	// post-construction-configuration pattern as Robot.Init above.
	if t, ok := s.indexer.(targetable); ok {
		t.SetTarget(cfg.VectorStoreURL(), cfg.VectorStoreClass())
	}

	// 2. Fetch robots.txt & decide the crawling policy for this hostname,
	// then submit every seed URL. All seeds are expected to share the
	// crawl's one admitted host (AllowedHosts / currentHost scope).
	s.currentHost = cfg.SeedURLs()[0].Host

	// 2.1 Wire the crash-recovery store to this crawl's origin and resume
	// whatever a prior, interrupted run against the same seed left pending.
	if s.recoveryStore == nil && cfg.OutputDir() != "" {
		s.recoveryStore = storage.NewLocalRecoveryStore(cfg.OutputDir(), s.currentHost, hashutil.HashAlgoBLAKE3, s.metadataSink)
	}
	if s.recoveryStore != nil {
		if recovered, recoverErr := s.recoveryStore.LoadPending(); recoverErr == nil {
			for _, raw := range recovered {
				if recoveredURL, parseErr := url.Parse(raw); parseErr == nil {
					_ = s.SubmitUrlForAdmission(*recoveredURL, frontier.SourceRecovered, 0)
				}
			}
		}
	}

	for _, seed := range cfg.SeedURLs() {
		if err := s.SubmitUrlForAdmission(seed, frontier.SourceSeed, 0); err != nil {
			if robotsErr, ok := err.(*robots.RobotsError); ok {
				s.recordRobotsErrorAndBackoff(robotsErr, seed)
			}
			return CrawlingExecution{}, err
		}
	}

	// 3. Run cfg.Concurrency() Runners against the shared frontier until it
	// is drained and no Runner is still in flight.
	s.runRunnerPool(cfg)

	return CrawlingExecution{
		TotalChunksIndexed: int(s.totalChunks.Load()),
		TotalErrors:        int(s.totalErrors.Load()),
	}, nil
}

// runRunnerPool spawns cfg.Concurrency() Runner goroutines that share the
// frontier, draining it until it is empty and no Runner is mid-flight.
// A Runner always submits the links it discovers to the frontier before
// returning from processToken, so the race between "frontier looks empty"
// and "a sibling Runner is about to refill it" is closed: whichever Runner
// is last to drop activeRunner to zero has already made its own discoveries
// visible to the frontier first.
func (s *Scheduler) runRunnerPool(cfg config.Config) {
	workerCount := cfg.Concurrency()
	if workerCount < 1 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runRunner(cfg)
		}()
	}
	wg.Wait()
}

// runRunner is one Runner's lifetime: dequeue, process, repeat, until the
// frontier is drained and every other Runner has also gone idle.
func (s *Scheduler) runRunner(cfg config.Config) {
	const idlePoll = 20 * time.Millisecond
	for {
		token, ok := s.frontier.Dequeue()
		if !ok {
			if s.activeRunner.Load() == 0 {
				return
			}
			s.sleeper.Sleep(idlePoll)
			continue
		}

		s.activeRunner.Add(1)
		s.processToken(cfg, token)
		s.activeRunner.Add(-1)
	}
}

// processToken runs the full per-URL pipeline: fetch (with browser
// fallback), dedup check, content-block extraction, chunking, link
// extraction + frontier resubmission, and indexer upsert.
func (s *Scheduler) processToken(cfg config.Config, nextCrawlToken frontier.CrawlToken) {
	// Mark the token's URL visited once attempted, regardless of outcome,
	// so a resumed crawl never retries a page that was already fetched.
	if s.recoveryStore != nil {
		defer s.recoveryStore.MarkVisited(nextCrawlToken.URL().String())
	}

	// 3. Fetch Page URL
	fetchParam := fetcher.NewFetchParam(
		nextCrawlToken.URL(),
		cfg.UserAgent(),
	)
	fetchResult, err := s.htmlFetcher.Fetch(s.ctx, nextCrawlToken.Depth(), fetchParam, RetryParam(cfg))
	if err != nil {
		s.totalErrors.Add(1)
		return
	}

	body := fetchResult.Body()

	// 3.1 Browser-fallback escalation: a static fetch that looks like an
	// unhydrated SPA shell is re-fetched through the headless browser.
	if cfg.BrowserFetchEnabled() && browser.ShouldUseBrowser(string(body)) {
		browserResult, browserErr := s.browserFetcher.Fetch(
			s.ctx,
			browser.NewFetchParam(nextCrawlToken.URL(), "", cfg.BrowserFetchTimeout()),
		)
		if browserErr == nil {
			body = []byte(browserResult.HTML())
		}
		// A failed browser fallback is not fatal to the page: fall through
		// and let the static-fetch body go through extraction as-is.
	}

	// 4. Extract HTML DOM
	extractionResult, err := s.domExtractor.Extract(fetchResult.URL(), body)
	if err != nil {
		s.totalErrors.Add(1)
		return
	}

	// 5. Sanitize extracted HTML
	sanitizedHtml, err := s.htmlSanitizer.Sanitize(extractionResult.ContentNode)
	if err != nil {
		s.totalErrors.Add(1)
		return
	}

	// 6. Extract outbound links and resubmit in-scope ones to the frontier
	// at depth+1, before this Runner is counted idle again.
	s.discoverAndSubmitLinks(sanitizedHtml, fetchResult.URL(), nextCrawlToken.Depth())

	// 7. Pack the sanitized content into heading-anchored blocks.
	blocks := extractor.ExtractContentBlocks(sanitizedHtml)

	// 8. Skip already-seen content: dedup runs on the extracted text, after
	// sanitization, before chunking (see internal/dedup package doc).
	dedupContent := joinBlockText(blocks)
	isDuplicate, dedupErr := s.contentDedup.CheckAndAdd(dedupContent)
	if dedupErr != nil {
		s.recordPipelineError("dedup", "ContentDedup.CheckAndAdd", metadata.CauseUnknown, dedupErr.Error(), fetchResult.URL())
		s.totalErrors.Add(1)
		return
	}
	if isDuplicate {
		s.applyRateLimitDelay()
		return
	}

	// 9. Chunk the page content.
	chunks := s.chunker.Chunk(
		fetchResult.URL(),
		blocks,
		chunker.NewChunkParam(cfg.ChunkMinTokens(), cfg.ChunkMaxTokens()),
	)

	// 10. Upsert the page's chunks into the vector store.
	pageMetadata := extractPageMetadata(extractionResult.DocumentRoot, fetchResult.URL(), time.Now())
	indexResult, indexErr := s.indexer.Upsert(s.ctx, chunks, pageMetadata)
	if indexErr != nil {
		s.totalErrors.Add(1)
	} else {
		s.totalChunks.Add(int64(indexResult.Created + indexResult.Updated))
		s.totalErrors.Add(int64(indexResult.Failed))
	}

	s.applyRateLimitDelay()
}

// discoverAndSubmitLinks classifies every outbound link on the page and
// resubmits in-scope navigation links to the frontier for admission. Image
// and in-page anchor links are informational only and are never crawled.
func (s *Scheduler) discoverAndSubmitLinks(sanitizedHtml sanitizer.SanitizedHTMLDoc, pageURL url.URL, depth int) {
	discovered := linkextract.ExtractLinks(sanitizedHtml.GetContentNode(), pageURL)

	var candidates []url.URL
	for _, link := range discovered {
		if link.Kind != linkextract.KindNavigation {
			continue
		}
		candidates = append(candidates, link.URL)
	}

	for _, discoveredURL := range urlutil.FilterByHost(s.currentHost, candidates) {
		submissionErr := s.SubmitUrlForAdmission(discoveredURL, frontier.SourceCrawl, depth+1)
		if submissionErr != nil {
			if robotsErr, ok := submissionErr.(*robots.RobotsError); ok {
				s.recordRobotsErrorAndBackoff(robotsErr, discoveredURL)
			}
			s.totalErrors.Add(1)
		}
	}
}

// applyRateLimitDelay blocks this Runner for whatever delay the rate
// limiter currently resolves for s.currentHost.
func (s *Scheduler) applyRateLimitDelay() {
	delay := s.rateLimiter.ResolveDelay(s.currentHost)
	s.sleeper.Sleep(delay)
}

func (s *Scheduler) recordPipelineError(packageName, action string, cause metadata.ErrorCause, details string, targetURL url.URL) {
	s.metadataSink.RecordError(
		time.Now(),
		packageName,
		action,
		cause,
		details,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, targetURL.String()),
		},
	)
}

// joinBlockText concatenates every block's text in document order, giving
// the dedup check a single string representative of the page's rendered
// content, independent of its heading structure.
func joinBlockText(blocks []extractor.ContentBlock) string {
	var sb strings.Builder
	for _, block := range blocks {
		sb.WriteString(block.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// extractPageMetadata pulls the page title and meta description (if any)
// from the original, unextracted document so indexed chunks carry
// human-readable page context alongside their content.
func extractPageMetadata(documentRoot *html.Node, pageURL url.URL, crawledAt time.Time) indexer.PageMetadata {
	if documentRoot == nil {
		return indexer.NewPageMetadata(pageURL.String(), "", "", crawledAt.Unix())
	}

	doc := goquery.NewDocumentFromNode(documentRoot)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")

	return indexer.NewPageMetadata(pageURL.String(), title, strings.TrimSpace(description), crawledAt.Unix())
}

func RetryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
}

// recordRobotsErrorAndBackoff records a robots error using metadataSink and
// triggers exponential backoff on the rate limiter if the error cause warrants it.
// This method handles ErrCauseHttpTooManyRequests (429) and ErrCauseHttpServerError (5xx)
// by recording the error and applying backoff to the current host.
func (s *Scheduler) recordRobotsErrorAndBackoff(robotsErr *robots.RobotsError, targetURL url.URL) {
	// Only record and backoff for specific HTTP error causes
	if robotsErr.Cause == robots.ErrCauseHttpTooManyRequests ||
		robotsErr.Cause == robots.ErrCauseHttpServerError {
		s.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"SubmitUrlForAdmission",
			metadata.CauseNetworkFailure,
			robotsErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, targetURL.String()),
				metadata.NewAttr(metadata.AttrHost, targetURL.Host),
				metadata.NewAttr(metadata.AttrPath, targetURL.Path),
			},
		)
		if s.rateLimiter != nil {
			s.rateLimiter.Backoff(targetURL.Host)
		}
	}
}

// ---------------------------------------------------------------------------
// Test Helper Methods
// These methods are exported to enable testing of SubmitUrlForAdmission()
// and other scheduler internals. They are not part of the public API.
// ---------------------------------------------------------------------------

// InitWith initializes the dependencies with the given data.
// This is a test helper method.
func (s *Scheduler) InitWith(userAgent string, baseDelay time.Duration, jitter time.Duration, randomSeed int64) {
	s.robot.Init(userAgent)
	s.rateLimiter.SetBaseDelay(baseDelay)
	s.rateLimiter.SetJitter(jitter)
	s.rateLimiter.SetRandomSeed(randomSeed)
}

// SetCurrentHost sets the current host.
// This is a test helper method to simulate the host context.
func (s *Scheduler) SetCurrentHost(host string) {
	s.currentHost = host
}

// FrontierVisitedCount returns the number of URLs in the frontier's visited set.
// This is a test helper method to verify frontier state.
func (s *Scheduler) FrontierVisitedCount() int {
	if s.frontier == nil {
		return 0
	}
	return s.frontier.VisitedCount()
}

// DequeueFromFrontier dequeues a token from the frontier.
// This is a test helper method to verify frontier contents.
func (s *Scheduler) DequeueFromFrontier() (frontier.CrawlToken, bool) {
	if s.frontier == nil {
		return frontier.CrawlToken{}, false
	}
	return s.frontier.Dequeue()
}

// ProcessTokenForTest exposes the per-URL pipeline for direct invocation
// from tests, bypassing the Runner pool's goroutines.
func (s *Scheduler) ProcessTokenForTest(cfg config.Config, token frontier.CrawlToken) {
	s.processToken(cfg, token)
}

// TotalErrorsForTest reports the running error count.
func (s *Scheduler) TotalErrorsForTest() int {
	return int(s.totalErrors.Load())
}

// TotalChunksIndexedForTest reports the running indexed-chunk count.
func (s *Scheduler) TotalChunksIndexedForTest() int {
	return int(s.totalChunks.Load())
}
