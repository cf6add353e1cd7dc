package dedup

/*
Responsibilities
- Detect and skip duplicate page content to avoid re-indexing the same information
- Normalize content before hashing (lowercase, collapse whitespace)
- Stay safe for concurrent access across crawl worker goroutines

Duplicate detection happens after extraction, before chunking: two URLs that
render the same documentation page (redirects, mirrors, trailing-slash
variants) must not produce duplicate chunks in the index.
*/

import (
	"strings"
	"sync"

	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

// ContentDedup tracks which normalized page bodies have already been seen
// during a crawl, keyed by SHA-256 hash.
type ContentDedup struct {
	mu         sync.RWMutex
	seenHashes map[string]struct{}
}

// NewContentDedup returns an empty ContentDedup ready for concurrent use.
func NewContentDedup() *ContentDedup {
	return &ContentDedup{
		seenHashes: make(map[string]struct{}),
	}
}

// normalize lowercases content and collapses runs of whitespace to a single
// space, so that cosmetic differences (extra blank lines, trailing spaces)
// never cause two otherwise-identical pages to hash differently.
func normalize(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	return strings.Join(fields, " ")
}

func hash(content string) (string, error) {
	return hashutil.HashBytes([]byte(normalize(content)), hashutil.HashAlgoSHA256)
}

// CheckAndAdd reports whether content has already been seen. If it has not,
// its hash is recorded before returning so a concurrent caller racing on the
// same content cannot both observe "not a duplicate".
func (d *ContentDedup) CheckAndAdd(content string) (bool, error) {
	h, err := hash(content)
	if err != nil {
		return false, err
	}

	d.mu.RLock()
	_, seen := d.seenHashes[h]
	d.mu.RUnlock()
	if seen {
		return true, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.seenHashes[h]; seen {
		return true, nil
	}
	d.seenHashes[h] = struct{}{}
	return false, nil
}

// UniqueCount returns the number of distinct content hashes seen so far.
func (d *ContentDedup) UniqueCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seenHashes)
}
