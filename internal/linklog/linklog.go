// Package linklog provides the resolver and linker's diagnostic logging.
//
// It deliberately stays on the standard library's log package rather than
// a structured logging library: the core reads no environment variables
// and takes no process-wide dependency, so diagnostics are a plain,
// timestamped, explicitly-injected sink, in the style of the package
// manager's security logger.
package linklog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger is the sink used by the finder, resolver, and plugin pipeline for
// non-fatal diagnostics: skipped scan entries, plugin progress, resolver
// decisions worth surfacing to an operator.
type Logger struct {
	mu     sync.Mutex
	std    *log.Logger
	silent bool
}

// New creates a Logger writing to os.Stderr with the given prefix.
func New(prefix string) *Logger {
	return &Logger{std: log.New(os.Stderr, prefix, log.LstdFlags)}
}

// Discard returns a Logger that drops every message; useful in tests and
// for callers that want the core silent.
func Discard() *Logger {
	return &Logger{silent: true}
}

// Warnf logs a recoverable condition: a finder skipping an unreadable
// entry, a plugin emitting a non-fatal note.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf("WARN", format, args...)
}

// Infof logs routine progress: a resolution starting, a plugin stage
// completing.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf("INFO", format, args...)
}

func (l *Logger) logf(level, format string, args ...interface{}) {
	if l == nil || l.silent {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.std.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}
