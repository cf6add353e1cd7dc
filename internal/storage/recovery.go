package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

/*
Responsibilities
- Persist the frontier's pending and visited URL sets
- Ensure deterministic, origin-scoped filenames
- Let an interrupted crawl resume instead of restarting from the seeds

Output Characteristics
- Stable directory layout
- Idempotent writes
- Overwrite-safe reruns
*/

// RecoveryStore lets the scheduler survive a restart: it mirrors the
// frontier's pending queue and visited set to disk so a crawl that was
// interrupted mid-run can resume from where it left off instead of
// re-walking every page from the seeds.
type RecoveryStore interface {
	AddPending(pendingURL string) (WriteResult, failure.ClassifiedError)
	MarkVisited(visitedURL string) (WriteResult, failure.ClassifiedError)
	IsVisited(candidateURL string) (bool, failure.ClassifiedError)
	LoadPending() ([]string, failure.ClassifiedError)
	ClearPending(pendingURL string) (WriteResult, failure.ClassifiedError)
}

// LocalRecoveryStore persists one crawl's recovery state as a single JSON
// file per origin under outputDir, named by a hash of the origin so
// concurrent crawls against different seeds never collide.
type LocalRecoveryStore struct {
	mu           sync.Mutex
	outputDir    string
	origin       string
	hashAlgo     hashutil.HashAlgo
	metadataSink metadata.MetadataSink
	loaded       bool
	pending      map[string]struct{}
	visited      map[string]struct{}
}

func NewLocalRecoveryStore(
	outputDir string,
	origin string,
	hashAlgo hashutil.HashAlgo,
	metadataSink metadata.MetadataSink,
) *LocalRecoveryStore {
	return &LocalRecoveryStore{
		outputDir:    outputDir,
		origin:       origin,
		hashAlgo:     hashAlgo,
		metadataSink: metadataSink,
		pending:      make(map[string]struct{}),
		visited:      make(map[string]struct{}),
	}
}

func (s *LocalRecoveryStore) AddPending(pendingURL string) (WriteResult, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return WriteResult{}, err
	}
	if _, done := s.visited[pendingURL]; done {
		return s.currentWriteResult(), nil
	}
	s.pending[pendingURL] = struct{}{}
	return s.persist()
}

func (s *LocalRecoveryStore) MarkVisited(visitedURL string) (WriteResult, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return WriteResult{}, err
	}
	delete(s.pending, visitedURL)
	s.visited[visitedURL] = struct{}{}
	return s.persist()
}

func (s *LocalRecoveryStore) IsVisited(candidateURL string) (bool, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	_, ok := s.visited[candidateURL]
	return ok, nil
}

func (s *LocalRecoveryStore) LoadPending() ([]string, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	pending := make([]string, 0, len(s.pending))
	for u := range s.pending {
		pending = append(pending, u)
	}
	sort.Strings(pending)
	return pending, nil
}

func (s *LocalRecoveryStore) ClearPending(pendingURL string) (WriteResult, failure.ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return WriteResult{}, err
	}
	delete(s.pending, pendingURL)
	return s.persist()
}

func (s *LocalRecoveryStore) ensureLoaded() failure.ClassifiedError {
	if s.loaded {
		return nil
	}
	s.loaded = true

	path, stateErr := s.statePath()
	if stateErr != nil {
		return stateErr
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: path}
	}

	var state RecoveryState
	if err := json.Unmarshal(raw, &state); err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseDecodeFailure, Path: path}
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalRecoveryStore.ensureLoaded",
			mapStorageErrorToMetadataCause(storageErr),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, path)},
		)
		return storageErr
	}
	for _, u := range state.Pending {
		s.pending[u] = struct{}{}
	}
	for _, u := range state.Visited {
		s.visited[u] = struct{}{}
	}
	return nil
}

// persist writes the full in-memory state to disk and must be called with
// s.mu held.
func (s *LocalRecoveryStore) persist() (WriteResult, failure.ClassifiedError) {
	path, pathErr := s.statePath()
	if pathErr != nil {
		s.recordError("LocalRecoveryStore.persist", pathErr.(*StorageError))
		return WriteResult{}, pathErr
	}

	if dirErr := fileutil.EnsureDir(s.outputDir); dirErr != nil {
		var fileErr *fileutil.FileError
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.As(dirErr, &fileErr) && fileErr.Cause == fileutil.ErrCausePathError {
			cause = ErrCausePathError
			retryable = true
		}
		storageErr := &StorageError{Message: dirErr.Error(), Retryable: retryable, Cause: cause, Path: s.outputDir}
		s.recordError("LocalRecoveryStore.persist", storageErr)
		return WriteResult{}, storageErr
	}

	state := RecoveryState{
		Pending: sortedKeys(s.pending),
		Visited: sortedKeys(s.visited),
	}
	raw, marshalErr := json.MarshalIndent(state, "", "  ")
	if marshalErr != nil {
		storageErr := &StorageError{Message: marshalErr.Error(), Retryable: false, Cause: ErrCauseDecodeFailure, Path: path}
		s.recordError("LocalRecoveryStore.persist", storageErr)
		return WriteResult{}, storageErr
	}

	if writeErr := os.WriteFile(path, raw, 0644); writeErr != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(writeErr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		storageErr := &StorageError{Message: writeErr.Error(), Retryable: retryable, Cause: cause, Path: path}
		s.recordError("LocalRecoveryStore.persist", storageErr)
		return WriteResult{}, storageErr
	}

	result := s.currentWriteResult()
	s.metadataSink.RecordArtifact(
		metadata.ArtifactRecoveryState,
		result.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, result.Path()),
			metadata.NewAttr(metadata.AttrField, result.StateHash()),
		},
	)
	return result, nil
}

func (s *LocalRecoveryStore) currentWriteResult() WriteResult {
	path, _ := s.statePath()
	hash, _ := hashutil.HashBytes([]byte(s.origin), s.hashAlgo)
	return NewWriteResult(shortHash(hash), path, len(s.pending), len(s.visited))
}

func (s *LocalRecoveryStore) statePath() (string, failure.ClassifiedError) {
	hash, err := hashutil.HashBytes([]byte(s.origin), s.hashAlgo)
	if err != nil {
		return "", &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseHashComputationFailed, Path: ""}
	}
	return filepath.Join(s.outputDir, shortHash(hash)+".recovery.json"), nil
}

func (s *LocalRecoveryStore) recordError(action string, storageErr *StorageError) {
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		action,
		mapStorageErrorToMetadataCause(storageErr),
		storageErr.Message,
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, storageErr.Path)},
	)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
