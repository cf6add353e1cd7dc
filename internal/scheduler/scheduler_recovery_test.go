package scheduler_test

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/indexer"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
)

// writeCrawlConfigFile writes a minimal config file in the shape
// config.WithConfigFile expects, scoped to what this test needs.
func writeCrawlConfigFile(t *testing.T, seed string, outputDir string) string {
	t.Helper()
	seedURL, err := url.Parse(seed)
	require.NoError(t, err)

	dto := struct {
		SeedURLs    []url.URL `json:"seedUrls"`
		OutputDir   string    `json:"outputDir,omitempty"`
		Concurrency int       `json:"concurrency,omitempty"`
	}{
		SeedURLs:    []url.URL{*seedURL},
		OutputDir:   outputDir,
		Concurrency: 1,
	}
	raw, err := json.Marshal(dto)
	require.NoError(t, err)

	f, err := os.CreateTemp(t.TempDir(), "crawl-config-*.json")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(raw)
	require.NoError(t, err)
	return f.Name()
}

// TestExecuteCrawling_PersistsRecoveryState confirms ExecuteCrawling wires a
// LocalRecoveryStore off the resolved config's OutputDir and that the seed
// URL ends up marked visited on disk once the crawl finishes.
func TestExecuteCrawling_PersistsRecoveryState(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	robot := newRobotsMockForTest(t)
	allowAnyURL(robot)

	htmlFetcher := newFetcherMockForTest(t)
	setupFetcherMockWithSuccess(t, htmlFetcher, "https://example.com/docs/intro", []byte(strings.Repeat("x", 600)))

	root := parseFragment(t, `<html><body><h1>Intro</h1><p>Hello world, this is the introduction.</p></body></html>`)
	content := root.FirstChild.LastChild

	ext := newExtractorMockForTest(t)
	setupExtractorMockWithContent(ext, root, content)
	san := newSanitizerMockForTest(t)
	setupSanitizerMockWithContentNode(san, content)

	idx := newIndexerMockForTest(t)
	idx.Mock.ExpectedCalls = nil
	idx.On("SetTarget", mock.Anything, mock.Anything).Return()
	idx.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(indexer.IndexResult{Created: 1}, nil)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot, ext, san, newBrowserMockForTest(t), idx)

	outputDir := t.TempDir()
	configPath := writeCrawlConfigFile(t, "https://example.com/docs/intro", outputDir)

	_, err := s.ExecuteCrawling(configPath)
	require.NoError(t, err)

	entries, readErr := os.ReadDir(outputDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1, "expected exactly one recovery state file")

	raw, readErr := os.ReadFile(filepath.Join(outputDir, entries[0].Name()))
	require.NoError(t, readErr)
	var state storage.RecoveryState
	require.NoError(t, json.Unmarshal(raw, &state))
	require.Contains(t, state.Visited, "https://example.com/docs/intro")
	require.Empty(t, state.Pending, "a fully drained crawl should leave nothing pending")
}
