// Package logging provides the structured logging backend used throughout
// webx, replacing the documentation-crawler lineage's unimplemented
// metadata.Recorder stub with a concrete go-logfmt writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger emits key=value lines via go-logfmt. Safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	enc   *logfmt.Encoder
	level Level
}

// New returns a Logger writing to w at or above minLevel.
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{enc: logfmt.NewEncoder(w), level: minLevel}
}

// NewStderr returns the process-default logger, writing to stderr at info level.
func NewStderr() *Logger {
	return New(os.Stderr, LevelInfo)
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)   { l.log(LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)   { l.log(LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...any)  { l.log(LevelError, msg, kv...) }

func (l *Logger) log(level Level, msg string, kv ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fields := make([]any, 0, len(kv)+6)
	fields = append(fields,
		"ts", time.Now().UTC().Format(time.RFC3339Nano),
		"level", level.String(),
		"msg", msg,
	)
	fields = append(fields, kv...)

	if err := l.enc.EncodeKeyvals(fields...); err != nil {
		fmt.Fprintf(os.Stderr, "logging: encode failed: %v\n", err)
		return
	}
	if err := l.enc.EndRecord(); err != nil {
		fmt.Fprintf(os.Stderr, "logging: end record failed: %v\n", err)
	}
}

// Attribute keys shared across packages, carried over from the
// metadata.AttributeKey idiom.
const (
	AttrURL        = "url"
	AttrHost       = "host"
	AttrDepth      = "depth"
	AttrJobID      = "job_id"
	AttrStatus     = "status"
	AttrDurationMs = "duration_ms"
	AttrHTTPStatus = "http_status"
	AttrCause      = "cause"
)
