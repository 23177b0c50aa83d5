package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
	now func() time.Time
}

// Write buffers bytes until a newline is found; for each full line, write a timestamped
// line to the underlying writer. Partial lines are kept in the buffer.
func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			// put the partial line back for the next write
			t.buf.Reset()
			t.buf.WriteString(line)
			break
		}
		now := time.Now
		if t.now != nil {
			now = t.now
		}
		if _, err := t.w.Write([]byte(now().Format(time.RFC3339) + " " + line)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// terminalWriter wraps an io.Writer and exposes an Fd method so charm log can
// detect a TTY through the wrapping writers.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }

// Fd exposes the underlying file descriptor (e.g., os.Stderr.Fd()).
func (tw *terminalWriter) Fd() uintptr { return tw.fd }

// Options configure New.
type Options struct {
	// LogFile, if set, receives a copy of every line.
	LogFile string
	Level   string
	Verbose bool
	Prefix  string
}

// New builds the process logger on stderr. The returned close func releases
// the log file, if one was opened.
func New(opts Options) (*log.Logger, func()) {
	var out io.Writer = os.Stderr
	closeFn := func() {}
	var fileErr error
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			// write to both stderr and file so running interactively still shows logs
			out = io.MultiWriter(os.Stderr, f)
			closeFn = func() { _ = f.Close() }
		} else {
			fileErr = err
		}
	}
	tw := &timestampWriter{w: out}
	logger := log.NewWithOptions(&terminalWriter{w: tw, fd: os.Stderr.Fd()}, log.Options{Prefix: opts.Prefix})

	level, known := ParseLevel(opts.Level)
	if opts.Verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	if !known {
		logger.Warn("unknown log_level in config.json, defaulting to info", "provided", opts.Level)
	}
	if fileErr != nil {
		logger.Warn("log_file specified but could not be opened; logging to stderr only", "path", opts.LogFile, "err", fileErr)
	}
	return logger, closeFn
}

// ParseLevel maps a config level name to a charm log level. Unknown names
// map to info and report false.
func ParseLevel(s string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, true
	case "info", "":
		return log.InfoLevel, true
	case "warn", "warning":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	}
	return log.InfoLevel, false
}
