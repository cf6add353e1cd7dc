package robots

import (
	"context"
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the scheduler's sole gateway to robots.txt policy. It is
// responsible for fetching, caching, and evaluating robots.txt on a
// per-host basis for the duration of one crawl.
type Robot interface {
	// Init binds the user agent every subsequent Decide call is evaluated
	// against. Must be called once before the first Decide.
	Init(userAgent string)

	// Decide fetches (or reuses a cached) robots.txt for target's host and
	// reports whether target may be crawled under the configured user
	// agent, along with any Crawl-delay directive that applies.
	Decide(target url.URL) (Decision, *RobotsError)
}

// CachedRobot is the default Robot implementation: a RobotsFetcher backed
// by an in-memory cache of parsed robots.txt results, scoped to the
// lifetime of a single crawl.
type CachedRobot struct {
	fetcher   *RobotsFetcher
	userAgent string
}

// NewCachedRobot constructs a CachedRobot that records fetch/error events
// through sink. Init must be called before Decide to set the user agent.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		fetcher: NewRobotsFetcher(sink, "docs-crawler/1.0", cache.NewMemoryCache()),
	}
}

func (r *CachedRobot) Init(userAgent string) {
	r.userAgent = userAgent
	r.fetcher.userAgent = userAgent
}

// InitWithCache behaves like Init but additionally swaps in a caller-supplied
// cache implementation, overriding the default in-memory one. Useful for
// tests that want to inspect or pre-seed cache contents.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher.userAgent = userAgent
	r.fetcher.cache = c
}

func (r *CachedRobot) Decide(target url.URL) (Decision, *RobotsError) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.fetcher.Fetch(ctx, target.Scheme, target.Host)
	if err != nil {
		return Decision{}, err
	}

	// A 4xx robots.txt response (e.g. 404) carries no rules: allow everything.
	if result.Data == nil || result.HTTPStatus >= 400 {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}, nil
	}

	allowed := result.Data.TestAgent(target.Path, r.userAgent)
	reason := DisallowedByRobots
	if allowed {
		reason = AllowedByRobots
	}

	var crawlDelay time.Duration
	if group := result.Data.FindGroup(r.userAgent); group != nil {
		crawlDelay = group.CrawlDelay
	}

	return Decision{
		Url:        target,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: crawlDelay,
	}, nil
}
