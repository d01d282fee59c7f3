package engine

import (
	"fmt"

	"github.com/webxcore/webx/pkg/failure"
)

// EngineErrorCause names the terminal, caller-facing failures the engine
// boundary can return (spec.md §6.3).
type EngineErrorCause string

const (
	ErrCauseNoValidSeeds EngineErrorCause = "no valid seeds"
	ErrCauseUnknownJob   EngineErrorCause = "unknown job"
)

// EngineError is returned by Start/Status when the request itself cannot be
// satisfied; it is never returned from the tick loop (ProcessActiveJobsOnce
// swallows per-job failures into the job's own failed status, per spec.md
// §4.7 step 12).
type EngineError struct {
	Message string
	Cause   EngineErrorCause
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error: %s: %s", e.Cause, e.Message)
}

func (e *EngineError) Severity() failure.Severity {
	return failure.SeverityFatal
}
