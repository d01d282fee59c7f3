package robots

import (
	"fmt"

	"github.com/webxcore/webx/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCauseDisallowRoot         RobotsErrorCause = "root disallowed to be crawled"
	ErrCauseInvalidRobotsUrl     RobotsErrorCause = "invalid robots.txt URL"
	ErrCausePreFetchFailure      RobotsErrorCause = "failed before making fetch"
	ErrCauseHttpFetchFailure     RobotsErrorCause = "failed to fetch"
	ErrCauseHttpTooManyRequests  RobotsErrorCause = "too many requests"
	ErrCauseHttpTooManyRedirects RobotsErrorCause = "too many redirects"
	ErrCauseHttpServerError      RobotsErrorCause = "http server error"
	ErrCauseHttpUnexpectedStatus RobotsErrorCause = "unexpected http status"
	ErrCauseParseError           RobotsErrorCause = "failed to parse robots.txt"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s: %s", e.Cause, e.Message)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable lets pkg/retry.Retry distinguish a transient transport failure
// (worth a couple of quick retries before falling back to an empty ruleset)
// from a definitive non-2xx response, which Fetch never wraps as an error.
func (e *RobotsError) IsRetryable() bool {
	return e.Retryable
}
