package indexer

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type IndexErrorCause string

const (
	ErrCauseHTTPFailure   IndexErrorCause = "http_failure"
	ErrCauseUnexpectedRes IndexErrorCause = "unexpected_response"
	ErrCauseEncodeFailure IndexErrorCause = "encode_failure"
)

type IndexError struct {
	Message   string
	Retryable bool
	Cause     IndexErrorCause
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index error: %s: %s", e.Cause, e.Message)
}

func (e *IndexError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapIndexErrorToMetadataCause maps indexer-local error semantics to the
// canonical metadata.ErrorCause table. Observational only.
func mapIndexErrorToMetadataCause(err *IndexError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseHTTPFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseUnexpectedRes, ErrCauseEncodeFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
