package normalize

import (
	"fmt"

	"github.com/webxcore/webx/pkg/failure"
)

type TruncationErrorCause string

const (
	ErrCauseParseFailure TruncationErrorCause = "markdown parse failure"
)

type TruncationError struct {
	Message string
	Cause   TruncationErrorCause
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("normalize: %s: %s", e.Cause, e.Message)
}

func (e *TruncationError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
