package limiter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// RateLimiter is the per-host politeness gate the scheduler consults before
// every fetch. Each host is backed by its own token bucket so a slow or
// rate-limit-sensitive origin never throttles fetches against any other
// origin in the same crawl.
//
// Responsibilities:
//   - Derive each host's effective interval from the crawl's base delay,
//     any robots.txt Crawl-delay, and exponential backoff after a 429/5xx.
//   - Gate admission to a host's next fetch via a golang.org/x/time/rate
//     token bucket sized to that interval.
//   - Add bounded jitter so concurrent workers don't all wake in lockstep.
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetCrawlDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	ResolveDelay(host string) time.Duration
	Wait(ctx context.Context, host string) error
}

type ConcurrentRateLimiter struct {
	mu        sync.Mutex
	rngMu     sync.Mutex
	baseDelay time.Duration
	jitter    time.Duration
	hosts     map[string]*hostState
	rng       *rand.Rand
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hosts: make(map[string]*hostState),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseDelay = baseDelay
	for host := range r.hosts {
		r.retuneLocked(host)
	}
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetCrawlDelay installs the politeness floor robots.txt advertised for host.
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateLocked(host).crawlDelay = delay
	r.retuneLocked(host)
}

// Backoff increments host's backoff counter and widens its interval
// exponentially (1s, 2s, 4s, ... capped at 30s), called after a 429/5xx.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.stateLocked(host)
	state.backoffCount++
	state.backoffDelay = timeutil.ExponentialBackoffDelay(
		state.backoffCount,
		0,
		*r.safeRNGLocked(),
		timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	)
	r.retuneLocked(host)
}

// ResetBackoff clears host's backoff state after a successful fetch.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, exists := r.hosts[host]
	if !exists {
		return
	}
	state.backoffCount = 0
	state.backoffDelay = 0
	r.retuneLocked(host)
}

// ResolveDelay reserves the next admission slot for host and returns how
// long the caller must wait before it may fetch. It consumes the
// reservation immediately; callers are expected to actually wait that long.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.Lock()
	state := r.stateLocked(host)
	l := state.limiter
	r.mu.Unlock()

	reservation := l.Reserve()
	if !reservation.OK() {
		return 0
	}
	delay := reservation.Delay()
	return delay + r.jitterDelay()
}

// Wait blocks until host's token bucket admits the next fetch or ctx is
// cancelled, whichever comes first.
func (r *ConcurrentRateLimiter) Wait(ctx context.Context, host string) error {
	r.mu.Lock()
	l := r.stateLocked(host).limiter
	r.mu.Unlock()

	if err := l.Wait(ctx); err != nil {
		return err
	}
	if jitter := r.jitterDelay(); jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *ConcurrentRateLimiter) jitterDelay() time.Duration {
	r.mu.Lock()
	jitter := r.jitter
	r.mu.Unlock()
	if jitter <= 0 {
		return 0
	}
	return timeutil.ComputeJitter(jitter, *r.safeRNGLocked())
}

// stateLocked returns (creating if absent) the hostState for host.
// Caller must hold r.mu.
func (r *ConcurrentRateLimiter) stateLocked(host string) *hostState {
	state, exists := r.hosts[host]
	if !exists {
		state = &hostState{limiter: rate.NewLimiter(rate.Inf, 1)}
		r.hosts[host] = state
		r.retuneLocked(host)
	}
	return state
}

// retuneLocked recomputes host's token-bucket limit as
// max(baseDelay, crawlDelay, backoffDelay). Caller must hold r.mu.
func (r *ConcurrentRateLimiter) retuneLocked(host string) {
	state, exists := r.hosts[host]
	if !exists {
		return
	}
	interval := timeutil.MaxDuration([]time.Duration{r.baseDelay, state.crawlDelay, state.backoffDelay})
	if interval <= 0 {
		state.limiter.SetLimit(rate.Inf)
		return
	}
	state.limiter.SetLimit(rate.Every(interval))
}

// safeRNGLocked returns the shared RNG, lazily initializing it. It guards
// access with its own rngMu, independent of r.mu, so it is safe to call
// whether or not the caller already holds r.mu.
func (r *ConcurrentRateLimiter) safeRNGLocked() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rng
}
