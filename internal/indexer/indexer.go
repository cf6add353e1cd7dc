package indexer

/*
Responsibilities
- Upsert chunks into an external vector store over its REST API
- Derive a stable object ID per chunk so re-crawls update in place instead
  of accumulating duplicates
- Never block the crawl on indexing failures that are clearly per-chunk

Object IDs are UUIDv5, derived from "{url}#chunk{index}" under the URL
namespace UUID, so the same chunk of the same page always resolves to the
same object regardless of when it was crawled.

Upsert semantics: try create first; if the store reports the object already
exists (409, or 422 with an "already exists" body), fall back to update.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/docs-crawler/internal/chunker"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// urlNamespace anchors chunk IDs to a stable UUID namespace so that the same
// (url, chunk index) pair always yields the same object ID.
var urlNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

type Indexer interface {
	Upsert(ctx context.Context, chunks []chunker.Chunk, page PageMetadata) (IndexResult, failure.ClassifiedError)
}

var _ Indexer = (*HTTPIndexer)(nil)

// HTTPIndexer upserts chunks into a Weaviate-compatible vector store over
// its REST objects API.
type HTTPIndexer struct {
	httpClient   *http.Client
	baseURL      string
	className    string
	metadataSink metadata.MetadataSink
}

func NewHTTPIndexer(metadataSink metadata.MetadataSink, baseURL, className string) *HTTPIndexer {
	return &HTTPIndexer{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		className:    className,
		metadataSink: metadataSink,
	}
}

func NewHTTPIndexerWithClient(metadataSink metadata.MetadataSink, baseURL, className string, httpClient *http.Client) *HTTPIndexer {
	return &HTTPIndexer{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		className:    className,
		metadataSink: metadataSink,
	}
}

// SetTarget points the indexer at a (possibly different) vector-store
// collection after construction, mirroring Robot.Init: the scheduler learns
// the real target from config only once a crawl starts.
func (h *HTTPIndexer) SetTarget(baseURL, className string) {
	h.baseURL = strings.TrimRight(baseURL, "/")
	h.className = className
}

// chunkObjectID derives the deterministic UUIDv5 object ID for chunk index
// idx of the page at pageURL.
func chunkObjectID(pageURL string, idx int) string {
	return uuid.NewSHA1(urlNamespace, []byte(fmt.Sprintf("%s#chunk%d", pageURL, idx))).String()
}

func chunkProperties(chunk chunker.Chunk, page PageMetadata) map[string]any {
	return map[string]any{
		"chunk_content": chunk.Content,
		"chunk_heading": chunk.Heading,
		"source_url":    page.SourceURL,
		"page_title":    page.Title,
		"description":   page.Description,
		"crawled_at":    page.CrawledAt,
	}
}

// Upsert indexes every chunk for one page, creating new objects and falling
// back to an update when the object already exists. Every failure,
// transport-level ones included, is recorded to the metadata sink and
// tallied in IndexResult.Failed rather than aborting the page; the returned
// error is always nil.
func (h *HTTPIndexer) Upsert(ctx context.Context, chunks []chunker.Chunk, page PageMetadata) (IndexResult, failure.ClassifiedError) {
	var result IndexResult

	for idx, chunk := range chunks {
		objectID := chunkObjectID(page.SourceURL, idx)
		properties := chunkProperties(chunk, page)

		created, err := h.createObject(ctx, objectID, properties)
		if err != nil {
			h.recordError(err, page.SourceURL)
			result.Failed++
			continue
		}
		if created {
			result.Created++
			continue
		}

		if err := h.updateObject(ctx, objectID, properties); err != nil {
			h.recordError(err, page.SourceURL)
			result.Failed++
			continue
		}
		result.Updated++
	}

	h.metadataSink.RecordArtifact(
		metadata.ArtifactChunk,
		page.SourceURL,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, page.SourceURL),
		},
	)

	return result, nil
}

// createObject POSTs a new object. It returns (true, nil) on success and
// (false, nil) when the store reports the object already exists, signaling
// the caller to fall back to an update.
func (h *HTTPIndexer) createObject(ctx context.Context, id string, properties map[string]any) (bool, *IndexError) {
	body, err := json.Marshal(map[string]any{
		"id":         id,
		"class":      h.className,
		"properties": properties,
	})
	if err != nil {
		return false, &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseEncodeFailure}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/objects", bytes.NewReader(body))
	if err != nil {
		return false, &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseHTTPFailure}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false, &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseHTTPFailure}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return true, nil
	case resp.StatusCode == http.StatusConflict:
		return false, nil
	case resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(string(respBody)), "already exists"):
		return false, nil
	default:
		return false, &IndexError{
			Message:   fmt.Sprintf("unexpected status %d creating object: %s", resp.StatusCode, string(respBody)),
			Retryable: resp.StatusCode >= 500,
			Cause:     ErrCauseUnexpectedRes,
		}
	}
}

func (h *HTTPIndexer) updateObject(ctx context.Context, id string, properties map[string]any) *IndexError {
	body, err := json.Marshal(map[string]any{
		"id":         id,
		"class":      h.className,
		"properties": properties,
	})
	if err != nil {
		return &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseEncodeFailure}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.baseURL+"/v1/objects/"+id, bytes.NewReader(body))
	if err != nil {
		return &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseHTTPFailure}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseHTTPFailure}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return &IndexError{
			Message:   fmt.Sprintf("unexpected status %d updating object: %s", resp.StatusCode, string(respBody)),
			Retryable: resp.StatusCode >= 500,
			Cause:     ErrCauseUnexpectedRes,
		}
	}
	return nil
}

func (h *HTTPIndexer) recordError(err *IndexError, sourceURL string) {
	h.metadataSink.RecordError(
		time.Now(),
		"indexer",
		"HTTPIndexer.Upsert",
		mapIndexErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, sourceURL),
		},
	)
}
