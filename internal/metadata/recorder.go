package metadata

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the narrow write surface every pipeline stage records
// observational events through. No pipeline package may branch on the
// return value of any of these calls; they are fire-and-forget.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(assetUrl string, httpStatus int, duration time.Duration, retryCount int)
	RecordArtifact(artifactType ArtifactType, path string, attrs []Attribute)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
}

// NoopSink is a MetadataSink that discards every event.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)               {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)                       {}
func (NoopSink) RecordArtifact(ArtifactType, string, []Attribute)                       {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}

// CrawlFinalizer records the terminal summary of a crawl exactly once.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration)
}

// Recorder is the zerolog-backed implementation of MetadataSink and
// CrawlFinalizer. It performs no buffering and no aggregation beyond what
// zerolog itself batches; every Record call emits one structured log line.
type Recorder struct {
	logger zerolog.Logger
}

// NewRecorder builds a Recorder writing structured JSON lines to w.
// Pass os.Stdout for production use; tests typically pass an io.Writer
// they can inspect, such as a bytes.Buffer.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// NewDefaultRecorder builds a Recorder writing to stderr, the teacher's
// default destination for operational logs so stdout stays free for
// pipeable output.
func NewDefaultRecorder() *Recorder {
	return NewRecorder(os.Stderr)
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.logger.Info().
		Str("event", "fetch").
		Str(string(AttrURL), fetchUrl).
		Int(string(AttrHTTPStatus), httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int(string(AttrDepth), crawlDepth).
		Msg("fetch recorded")
}

func (r *Recorder) RecordAssetFetch(assetUrl string, httpStatus int, duration time.Duration, retryCount int) {
	r.logger.Info().
		Str("event", "asset_fetch").
		Str(string(AttrAssetURL), assetUrl).
		Int(string(AttrHTTPStatus), httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset fetch recorded")
}

func (r *Recorder) RecordArtifact(artifactType ArtifactType, path string, attrs []Attribute) {
	event := r.logger.Info().
		Str("event", "artifact").
		Str("artifact_type", string(artifactType)).
		Str(string(AttrWritePath), path)
	appendAttrs(event, attrs)
	event.Msg("artifact recorded")
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	event := r.logger.Warn().
		Str("event", "error").
		Time(string(AttrTime), observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str("error", errorString)
	appendAttrs(event, attrs)
	event.Msg("error recorded")
}

func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	r.logger.Info().
		Str("event", "crawl_finished").
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl finished")
}

func appendAttrs(event *zerolog.Event, attrs []Attribute) {
	for _, a := range attrs {
		event.Str(string(a.Key), a.Value)
	}
}
