// =============================================================================
// pkg/logging/logger.go - Dual Logging Implementation
// =============================================================================
//
// This package provides a dual-output logger that writes:
//   - Informational messages to a log file (stdout when no file is configured)
//   - Error messages to a separate error file (stderr when none is configured)
//
// Errors are written to both outputs so the main log reads as a full timeline.
//
// SCOPED LOGGING:
//   Loggers can be scoped with a prefix using WithScope():
//
//     logger, _ := NewDualLogger("sync.log", "sync.err")
//     importLog := logger.WithScope("IMPORT")
//     importLog.Info("products_01.json.gz: 100 records") // → [2006-01-02 15:04:05.000] [IMPORT] products_01.json.gz: 100 records
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// SeparatorLine is the visual separator used in logs
	SeparatorLine = "========================================================================="

	// TimeFormat is the timestamp format for log messages
	TimeFormat = "2006-01-02 15:04:05.000"
)

// =============================================================================
// DualLogger Implementation
// =============================================================================

// DualLogger implements the Logger interface with separate log and error outputs.
type DualLogger struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	closers []*os.File
	now     func() time.Time
}

var _ interfaces.Logger = (*DualLogger)(nil)

// NewDualLogger creates a DualLogger writing to the given files. Existing
// files are appended to. An empty path selects stdout (log) or stderr (errors).
func NewDualLogger(logPath, errorPath string) (*DualLogger, error) {
	l := &DualLogger{out: os.Stdout, errOut: os.Stderr, now: time.Now}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", logPath)
		}
		l.out = f
		l.closers = append(l.closers, f)
	}

	if errorPath != "" {
		f, err := os.OpenFile(errorPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			l.Close()
			return nil, errors.Wrapf(err, "failed to open error file %s", errorPath)
		}
		l.errOut = f
		l.closers = append(l.closers, f)
	}

	return l, nil
}

// NewWriterLogger creates a DualLogger over arbitrary writers. The writers are
// never closed by the logger.
func NewWriterLogger(out, errOut io.Writer) *DualLogger {
	return &DualLogger{out: out, errOut: errOut, now: time.Now}
}

// WithScope creates a scoped logger that prefixes all messages with the scope name.
// The returned ScopedLogger shares the same underlying outputs as the parent.
func (l *DualLogger) WithScope(scope string) interfaces.Logger {
	return &ScopedLogger{
		parent: l,
		scope:  scope,
	}
}

// Info logs an informational message to the log output.
func (l *DualLogger) Info(format string, args ...interface{}) {
	l.write("", format, args...)
}

// Error logs an error message to both the error output and the log output.
func (l *DualLogger) Error(format string, args ...interface{}) {
	l.writeError("", format, args...)
}

// Separator logs a visual separator line to the log output.
func (l *DualLogger) Separator() {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.out, SeparatorLine)
}

// Sync forces a flush of all log data to disk.
func (l *DualLogger) Sync() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range l.closers {
		f.Sync()
	}
}

// Close closes all log files after syncing. Standard streams are left open.
func (l *DualLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range l.closers {
		f.Sync()
		f.Close()
	}
	l.closers = nil
	l.out = io.Discard
	l.errOut = io.Discard
}

func (l *DualLogger) write(scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "[%s] %s%s\n", l.now().Format(TimeFormat), scopePrefix(scope), fmt.Sprintf(format, args...))
}

func (l *DualLogger) writeError(scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] %sERROR: %s\n", l.now().Format(TimeFormat), scopePrefix(scope), fmt.Sprintf(format, args...))
	io.WriteString(l.errOut, line)
	if l.errOut != l.out {
		io.WriteString(l.out, line)
	}
}

func scopePrefix(scope string) string {
	if scope == "" {
		return ""
	}
	return "[" + scope + "] "
}

// =============================================================================
// ScopedLogger - Logger with a Prefix
// =============================================================================

// ScopedLogger wraps a DualLogger and prefixes all messages with a scope name.
//
// ScopedLogger shares the underlying outputs with its parent DualLogger.
// Closing the parent will close the files; do not close ScopedLogger directly.
type ScopedLogger struct {
	parent *DualLogger
	scope  string
}

// WithScope creates a nested scoped logger.
// The scopes are combined: parent.WithScope("A").WithScope("B") → [A:B]
func (l *ScopedLogger) WithScope(scope string) interfaces.Logger {
	return &ScopedLogger{
		parent: l.parent,
		scope:  l.scope + ":" + scope,
	}
}

func (l *ScopedLogger) Info(format string, args ...interface{}) {
	l.parent.write(l.scope, format, args...)
}

func (l *ScopedLogger) Error(format string, args ...interface{}) {
	l.parent.writeError(l.scope, format, args...)
}

// Separator logs a visual separator line (no scope prefix for separators).
func (l *ScopedLogger) Separator() {
	l.parent.Separator()
}

func (l *ScopedLogger) Sync() {
	l.parent.Sync()
}

// Close is a no-op for ScopedLogger. Close the parent DualLogger instead.
func (l *ScopedLogger) Close() {}

// =============================================================================
// NopLogger
// =============================================================================

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() interfaces.Logger { return NopLogger{} }

func (NopLogger) Info(string, ...interface{}) {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Separator() {}
func (n NopLogger) WithScope(string) interfaces.Logger { return n }
func (NopLogger) Sync() {}
func (NopLogger) Close() {}
