package store

import (
	"fmt"

	"github.com/webxcore/webx/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseMigration       StoreErrorCause = "migration failed"
	ErrCauseQuery           StoreErrorCause = "query failed"
	ErrCauseUnknownJob      StoreErrorCause = "unknown job"
	ErrCauseUnknownPage     StoreErrorCause = "unknown page"
	ErrCauseUnknownQueueRow StoreErrorCause = "unknown queue row"
	ErrCauseSerialization   StoreErrorCause = "serialization failed"
)

// StoreError is always Fatal: a failing store operation means the caller's
// invariant (durable state reachable, schema present) has broken, which is
// never something a queue-level retry fixes on its own (spec.md §7,
// `Invariant` kind).
type StoreError struct {
	Message string
	Cause   StoreErrorCause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	return failure.SeverityFatal
}
