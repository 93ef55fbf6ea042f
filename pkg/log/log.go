// Package log provides the console logging for the transport shim and the
// benchmark programs, plus the JSON-lines latency writer. Loggers carry a
// scope so events raised on provider goroutines stay attributable to the
// connection or stream they belong to when several clients share a
// process.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	errorTag = color.New(color.FgRed).SprintFunc()
	warnTag  = color.New(color.FgYellow).SprintFunc()
	infoTag  = color.New(color.FgCyan).SprintFunc()
	debugTag = color.New(color.FgHiBlack).SprintFunc()
)

// Logger writes leveled, scoped lines to one destination. Derived loggers
// share the destination and verbosity of their parent, so a connection
// and its control stream interleave cleanly on stderr.
type Logger struct {
	mu      *sync.Mutex
	out     io.Writer
	verbose bool
	scope   string
}

// NewLogger creates a logger writing to stderr. Debug lines are dropped
// unless verbose is set.
func NewLogger(verbose bool) *Logger {
	return &Logger{
		mu:  &sync.Mutex{},
		out: os.Stderr,

		verbose: verbose,
	}
}

// WithScope derives a logger whose lines carry the given scope, e.g. a
// connection or stream identifier. Scopes nest: deriving "stream" from
// "conn 3" yields "conn 3/stream".
func (l *Logger) WithScope(format string, a ...interface{}) *Logger {
	if l == nil {
		return nil
	}

	scope := fmt.Sprintf(format, a...)
	if l.scope != "" {
		scope = l.scope + "/" + scope
	}

	child := *l
	child.scope = scope
	return &child
}

// Debugf logs shim plumbing detail: handshake progress, partial consumes,
// send completions. Dropped unless verbose. Safe on a nil Logger.
func (l *Logger) Debugf(format string, a ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.printf(debugTag("debug"), format, a...)
}

// Infof logs connection lifecycle milestones.
func (l *Logger) Infof(format string, a ...interface{}) {
	if l == nil {
		l = defaultLogger
	}
	l.printf(infoTag(" info"), format, a...)
}

// Warnf logs conditions that degrade but do not fail an operation, e.g. a
// local address that could not be bound, or certificate validation being
// disabled.
func (l *Logger) Warnf(format string, a ...interface{}) {
	if l == nil {
		l = defaultLogger
	}
	l.printf(warnTag(" warn"), format, a...)
}

// Errorf logs failures.
func (l *Logger) Errorf(format string, a ...interface{}) {
	if l == nil {
		l = defaultLogger
	}
	l.printf(errorTag("error"), format, a...)
}

func (l *Logger) printf(tag string, format string, a ...interface{}) {
	msg := strings.TrimSuffix(fmt.Sprintf(format, a...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scope != "" {
		fmt.Fprintf(l.out, "%s [%s] %s\n", tag, l.scope, msg)
	} else {
		fmt.Fprintf(l.out, "%s %s\n", tag, msg)
	}
}

// defaultLogger serves entry points that have no configured logger yet.
var defaultLogger = NewLogger(false)

// Infof logs a lifecycle milestone through the default logger.
func Infof(format string, a ...interface{}) {
	defaultLogger.Infof(format, a...)
}

// Errorf logs a failure through the default logger.
func Errorf(format string, a ...interface{}) {
	defaultLogger.Errorf(format, a...)
}
