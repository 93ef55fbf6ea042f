package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func newBufferLogger(verbose bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{
		mu:      &sync.Mutex{},
		out:     &buf,
		verbose: verbose,
	}, &buf
}

func TestLogger_DebugGating(t *testing.T) {
	t.Parallel()

	quiet, quietBuf := newBufferLogger(false)
	quiet.Debugf("dropped")
	if quietBuf.Len() != 0 {
		t.Errorf("Debugf on quiet logger wrote %q", quietBuf.String())
	}

	loud, loudBuf := newBufferLogger(true)
	loud.Debugf("emitted")
	if !strings.Contains(loudBuf.String(), "emitted") {
		t.Errorf("Debugf on verbose logger wrote %q", loudBuf.String())
	}
}

func TestLogger_ScopeNesting(t *testing.T) {
	t.Parallel()

	l, buf := newBufferLogger(false)

	conn := l.WithScope("conn %d", 3)
	stream := conn.WithScope("stream")

	conn.Infof("handshake complete")
	stream.Warnf("partial consume")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "[conn 3]") {
		t.Errorf("line %q missing connection scope", lines[0])
	}
	if !strings.Contains(lines[1], "[conn 3/stream]") {
		t.Errorf("line %q missing nested scope", lines[1])
	}
}

func TestLogger_TrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	l, buf := newBufferLogger(false)
	l.Infof("with newline\n")

	if got := buf.String(); strings.Contains(got, "\n\n") {
		t.Errorf("double newline in %q", got)
	}
}

func TestLogger_NilSafety(t *testing.T) {
	t.Parallel()

	var l *Logger
	// must not panic; Debugf on a nil logger returns without writing
	l.Debugf("nil logger debug")
	if l.WithScope("conn %d", 1) != nil {
		t.Error("WithScope on nil logger should stay nil")
	}
}
