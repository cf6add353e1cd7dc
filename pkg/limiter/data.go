package limiter

import (
	"time"

	"golang.org/x/time/rate"
)

// hostState tracks the per-host knobs feeding into the token bucket's
// effective interval: the politeness floor from robots.txt (crawlDelay) and
// the additional floor imposed by exponential backoff after a 429/5xx.
type hostState struct {
	limiter      *rate.Limiter
	crawlDelay   time.Duration
	backoffDelay time.Duration
	backoffCount int
}

func (h *hostState) CrawlDelay() time.Duration {
	return h.crawlDelay
}

func (h *hostState) BackoffDelay() time.Duration {
	return h.backoffDelay
}

func (h *hostState) BackoffCount() int {
	return h.backoffCount
}
