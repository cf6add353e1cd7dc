package robots

import (
	"net/url"
	"time"
)

type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	EmptyRuleSet        DecisionReason = "empty_rule_set"
	NoMatchingRules     DecisionReason = "no_matching_rules"
)

// Decision is the outcome of checking a single URL against a host's
// robots.txt rules for the configured user agent.
type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// CrawlDelay is the Crawl-delay directive for the matched group, or zero
	// if robots.txt specified none.
	CrawlDelay time.Duration
}
