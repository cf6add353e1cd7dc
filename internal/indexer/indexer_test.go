package indexer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/chunker"
	"github.com/rohmanhakim/docs-crawler/internal/indexer"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
)

func newSink() metadata.MetadataSink {
	return metadata.NewRecorder(&bytes.Buffer{})
}

func samplePage() indexer.PageMetadata {
	return indexer.NewPageMetadata("https://example.com/docs/intro", "Intro", "an intro page", 1700000000)
}

func sampleChunks() []chunker.Chunk {
	return []chunker.Chunk{
		chunker.NewChunk("", "https://example.com/docs/intro", "Overview", "first chunk body", 0),
		chunker.NewChunk("", "https://example.com/docs/intro", "Details", "second chunk body", 1),
	}
}

func TestHTTPIndexer_Upsert_CreatesNewObjects(t *testing.T) {
	var creates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		creates++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	result, err := idx.Upsert(context.Background(), sampleChunks(), samplePage())

	require.Nil(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, creates)
}

func TestHTTPIndexer_Upsert_FallsBackToUpdateOnConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	result, err := idx.Upsert(context.Background(), sampleChunks(), samplePage())

	require.Nil(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Failed)
}

func TestHTTPIndexer_Upsert_UnprocessableEntityAlreadyExistsFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":[{"message":"object already exists"}]}`))
		case http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	result, err := idx.Upsert(context.Background(), sampleChunks(), samplePage())

	require.Nil(t, err)
	assert.Equal(t, 2, result.Updated)
}

func TestHTTPIndexer_Upsert_TalliesPerChunkFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	result, err := idx.Upsert(context.Background(), sampleChunks(), samplePage())

	require.Nil(t, err)
	assert.Equal(t, 2, result.Failed)
}

func TestHTTPIndexer_Upsert_SendsExpectedProperties(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		captured = payload["properties"].(map[string]any)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	chunks := sampleChunks()[:1]
	_, err := idx.Upsert(context.Background(), chunks, samplePage())
	require.Nil(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "first chunk body", captured["chunk_content"])
	assert.Equal(t, "Overview", captured["chunk_heading"])
	assert.Equal(t, "https://example.com/docs/intro", captured["source_url"])
}

func TestHTTPIndexer_ChunkIDIsDeterministic(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		ids = append(ids, payload["id"].(string))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	_, err := idx.Upsert(context.Background(), sampleChunks(), samplePage())
	require.Nil(t, err)
	require.Len(t, ids, 2)

	idx2 := indexer.NewHTTPIndexer(newSink(), srv.URL, "DocsChunk")
	var ids2 []string
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		ids2 = append(ids2, payload["id"].(string))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv2.Close()
	idx2 = indexer.NewHTTPIndexer(newSink(), srv2.URL, "DocsChunk")
	_, err = idx2.Upsert(context.Background(), sampleChunks(), samplePage())
	require.Nil(t, err)

	assert.Equal(t, ids, ids2, "the same url+chunk-index pair must always produce the same object id")
}
