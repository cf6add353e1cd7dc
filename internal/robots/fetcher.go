package robots

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
RobotsFetcher

Responsibilities:
- Fetch robots.txt per host using net/http
- Parse the response body with temoto/robotstxt
- Handle HTTP errors and status codes according to spec
- Cache fetched results using the provided Cache implementation

The fetcher never makes allow/disallow decisions itself; CachedRobot
consults the returned *robotstxt.RobotsData for that.
*/

// RobotsFetcher fetches and parses robots.txt files from hosts.
type RobotsFetcher struct {
	httpClient   *http.Client
	userAgent    string
	cache        cache.Cache
	metadataSink metadata.MetadataSink
}

// RobotsFetchResult represents the result of fetching a robots.txt file.
type RobotsFetchResult struct {
	Data        *robotstxt.RobotsData
	FetchedAt   time.Time
	SourceURL   string
	HTTPStatus  int
	ContentType string
}

// cachedResult is a serializable representation of RobotsFetchResult for
// cache storage. The cache adapter only stores strings, so the raw body is
// kept (base64-encoded) and re-parsed with robotstxt on every cache hit;
// re-parsing a robots.txt body is cheap compared to a round trip.
type cachedResult struct {
	Body        string    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
	SourceURL   string    `json:"source_url"`
	HTTPStatus  int       `json:"http_status"`
	ContentType string    `json:"content_type"`
}

// NewRobotsFetcher creates a new RobotsFetcher with the given dependencies.
// The cache parameter is optional - if nil, no caching will be performed.
func NewRobotsFetcher(
	metadataSink metadata.MetadataSink,
	userAgent string,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    userAgent,
		cache:        cache,
		metadataSink: metadataSink,
	}
}

// NewRobotsFetcherWithClient creates a new RobotsFetcher with a custom HTTP client.
// This is useful for testing.
// The cache parameter is optional - if nil, no caching will be performed.
func NewRobotsFetcherWithClient(
	metadataSink metadata.MetadataSink,
	userAgent string,
	httpClient *http.Client,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient:   httpClient,
		userAgent:    userAgent,
		cache:        cache,
		metadataSink: metadataSink,
	}
}

// cacheKey generates a cache key for the given scheme and hostname.
func cacheKey(scheme, hostname string) string {
	return fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)
}

func serializeResult(result RobotsFetchResult, body []byte) (string, error) {
	cached := cachedResult{
		Body:        base64.StdEncoding.EncodeToString(body),
		FetchedAt:   result.FetchedAt,
		SourceURL:   result.SourceURL,
		HTTPStatus:  result.HTTPStatus,
		ContentType: result.ContentType,
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deserializeResult(data string) (RobotsFetchResult, error) {
	var cached cachedResult
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return RobotsFetchResult{}, err
	}
	body, err := base64.StdEncoding.DecodeString(cached.Body)
	if err != nil {
		return RobotsFetchResult{}, err
	}
	parsed, err := robotstxt.FromStatusAndBytes(cached.HTTPStatus, body)
	if err != nil {
		return RobotsFetchResult{}, err
	}
	return RobotsFetchResult{
		Data:        parsed,
		FetchedAt:   cached.FetchedAt,
		SourceURL:   cached.SourceURL,
		HTTPStatus:  cached.HTTPStatus,
		ContentType: cached.ContentType,
	}, nil
}

// Fetch retrieves the robots.txt file from the given host.
// The hostname should be in the form "example.com" or "example.com:8080".
// The scheme (http/https) must be provided to construct the URL.
// If a cache is configured, it will check the cache first and store results after fetching.
func (f *RobotsFetcher) Fetch(ctx context.Context, scheme, hostname string) (RobotsFetchResult, *RobotsError) {
	if f.cache != nil {
		key := cacheKey(scheme, hostname)
		if cachedData, found := f.cache.Get(key); found {
			if result, err := deserializeResult(cachedData); err == nil {
				return result, nil
			}
			// If deserialization fails, continue with fetch
		}
	}

	start := time.Now()
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return RobotsFetchResult{}, f.fail(ErrCausePreFetchFailure, fmt.Sprintf("failed to create request: %v", err), false)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,text/html,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return RobotsFetchResult{}, f.fail(ErrCauseHttpFetchFailure, fmt.Sprintf("failed to fetch robots.txt: %v", err), true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Redirects are followed by http.Client automatically; reaching here
		// means a redirect loop or too many hops.
		return RobotsFetchResult{}, f.fail(ErrCauseHttpTooManyRedirects, fmt.Sprintf("redirect loop or too many redirects for %s", robotsURL), true)

	case resp.StatusCode == 429:
		return RobotsFetchResult{}, f.fail(ErrCauseHttpTooManyRequests, fmt.Sprintf("rate limited (429) when fetching %s", robotsURL), true)

	case resp.StatusCode >= 500:
		return RobotsFetchResult{}, f.fail(ErrCauseHttpServerError, fmt.Sprintf("server error (%d) when fetching %s", resp.StatusCode, robotsURL), true)
	}

	const maxSize = 500 * 1024
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return RobotsFetchResult{}, f.fail(ErrCauseParseError, fmt.Sprintf("failed to read robots.txt body: %v", err), true)
	}
	if len(content) > maxSize {
		content = content[:maxSize]
	}

	// FromStatusAndBytes folds the 2xx/4xx/5xx distinction in: a 404 or any
	// other "no robots.txt" status yields a non-nil RobotsData with no
	// groups, which TestAgent treats as allow-all.
	parsed, err := robotstxt.FromStatusAndBytes(resp.StatusCode, content)
	if err != nil {
		return RobotsFetchResult{}, f.fail(ErrCauseParseError, fmt.Sprintf("failed to parse robots.txt for %s: %v", robotsURL, err), false)
	}

	result := RobotsFetchResult{
		Data:        parsed,
		FetchedAt:   start,
		SourceURL:   robotsURL,
		HTTPStatus:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if f.metadataSink != nil {
		f.metadataSink.RecordFetch(robotsURL, resp.StatusCode, time.Since(start), result.ContentType, 0, 0)
	}

	if f.cache != nil {
		key := cacheKey(scheme, hostname)
		if cachedData, err := serializeResult(result, content); err == nil {
			f.cache.Put(key, cachedData)
		}
	}

	return result, nil
}

// fail builds a RobotsError and, if a metadata sink is configured, records
// it as an observational error event before returning.
func (f *RobotsFetcher) fail(cause RobotsErrorCause, message string, retryable bool) *RobotsError {
	robotsErr := &RobotsError{Message: message, Retryable: retryable, Cause: cause}
	if f.metadataSink != nil {
		f.metadataSink.RecordError(
			time.Now(),
			"robots",
			"RobotsFetcher.Fetch",
			mapRobotsErrorToMetadataCause(robotsErr),
			message,
			nil,
		)
	}
	return robotsErr
}

func (f *RobotsFetcher) UserAgent() string {
	return f.userAgent
}

func (f *RobotsFetcher) HttpClient() *http.Client {
	return f.httpClient
}

func (f *RobotsFetcher) Cache() cache.Cache {
	return f.cache
}
