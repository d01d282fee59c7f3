package extractor

import (
	"fmt"

	"github.com/webxcore/webx/pkg/failure"
)

type ExtractionErrorCause string

const (
	ErrCauseNotHTML   ExtractionErrorCause = "not_html"
	ErrCauseNoContent ExtractionErrorCause = "no_content"
	ErrCauseParseFail ExtractionErrorCause = "parse_failure"
)

// ExtractionError is always non-retryable: the input HTML itself is at
// fault, and retrying the same bytes will not change the outcome.
type ExtractionError struct {
	Message string
	Cause   ExtractionErrorCause
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error [%s]: %s", e.Cause, e.Message)
}

func (e *ExtractionError) Severity() failure.Severity {
	return failure.SeverityFatal
}
