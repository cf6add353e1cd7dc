package frontier

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
*/

import (
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

// Frontier is a depth-bucketed FIFO that enforces strict breadth-first
// ordering: a token at depth N is never dequeued while any token at a
// depth < N is still pending, no matter the order URLs were submitted in.
type Frontier struct {
	mu            sync.Mutex
	cfg           config.Config
	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	maxDepthSeen  int
	visited       Set[string]
}

// NewCrawlFrontier constructs an empty frontier. Call Init before use.
func NewCrawlFrontier() *Frontier {
	return &Frontier{
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited:       NewSet[string](),
		maxDepthSeen:  -1,
	}
}

// Init binds the frontier to the crawl's scope limits (max depth, max pages).
func (f *Frontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Submit admits candidate into the frontier, enforcing depth and page-count
// limits and deduplicating against every URL ever admitted (not just what's
// currently queued). Candidates are assumed to already have passed robots
// and policy checks upstream; Submit only applies frontier-local scope.
func (f *Frontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()
	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}
	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.visited.Size() >= maxPages {
		return
	}

	canonical := urlutil.Canonicalize(candidate.TargetURL())
	key := canonical.String()
	if f.visited.Contains(key) {
		return
	}
	f.visited.Add(key)

	queue, exists := f.queuesByDepth[depth]
	if !exists {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(canonical, depth))

	if depth > f.maxDepthSeen {
		f.maxDepthSeen = depth
	}
}

// Dequeue returns the next token in strict BFS order: the lowest depth with
// a pending token, scanning upward from 0. It returns false once every
// depth level is exhausted.
func (f *Frontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxDepthSeen; depth++ {
		queue, exists := f.queuesByDepth[depth]
		if !exists {
			continue
		}
		if token, ok := queue.Dequeue(); ok {
			return token, true
		}
	}
	return CrawlToken{}, false
}

// IsDepthExhausted reports whether depth has no pending tokens. A depth
// that never had any URL submitted, or a negative depth, counts as exhausted.
func (f *Frontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if depth < 0 {
		return true
	}
	queue, exists := f.queuesByDepth[depth]
	if !exists {
		return true
	}
	return queue.Size() == 0
}

// CurrentMinDepth returns the lowest depth with a pending token, or -1 if
// the frontier is empty.
func (f *Frontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxDepthSeen; depth++ {
		queue, exists := f.queuesByDepth[depth]
		if !exists {
			continue
		}
		if queue.Size() > 0 {
			return depth
		}
	}
	return -1
}

// VisitedCount returns the number of unique URLs ever admitted, regardless
// of whether they have since been dequeued. It is append-only for the
// lifetime of the frontier.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}
