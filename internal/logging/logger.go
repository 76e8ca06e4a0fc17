// Package logging provides component-scoped file logging.
//
// stdout belongs to the MCP stdio transport, so nothing in here ever writes
// to it: log lines go to a per-session file, or to stderr when the file
// cannot be opened.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes timestamped, levelled lines for one component.
// A nil *Logger is valid and discards everything.
type Logger struct {
	component string
	debug     bool
	sink      *sink
}

// sink is the file (or stderr) shared by every component logger of a session.
type sink struct {
	mu        sync.Mutex
	logger    *log.Logger
	file      *os.File
	path      string
	closeOnce sync.Once
}

var (
	sessionID     string
	sessionIDOnce sync.Once
)

func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// New opens <dir>/<session-id>-granola-mcp.log and returns a root logger.
//
// If the directory cannot be created or the file cannot be opened, it
// returns a logger writing to stderr along with the error so the caller can
// report fallback mode.
func New(dir, component string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return newFallback(component, debug), fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-granola-mcp.log", getSessionID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return newFallback(component, debug), fmt.Errorf("failed to open log file: %w", err)
	}
	return &Logger{
		component: component,
		debug:     debug,
		sink:      &sink{logger: log.New(file, "", 0), file: file, path: path},
	}, nil
}

// NewWriter returns a logger writing to w. Tests use it to capture output.
func NewWriter(w io.Writer, component string, debug bool) *Logger {
	return &Logger{
		component: component,
		debug:     debug,
		sink:      &sink{logger: log.New(w, "", 0)},
	}
}

func newFallback(component string, debug bool) *Logger {
	return NewWriter(os.Stderr, component, debug)
}

// With returns a logger for another component sharing the same output.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{component: component, debug: l.debug, sink: l.sink}
}

func (l *Logger) write(level, format string, v ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, fmt.Sprintf(format, v...))

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.logger.Println(entry)
}

// Debugf logs only when debug output is enabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.write("DEBUG", format, v...)
}

func (l *Logger) Infof(format string, v ...interface{})  { l.write("INFO", format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.write("WARN", format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }

// Path returns the log file path, or "" when logging to a writer.
func (l *Logger) Path() string {
	if l == nil || l.sink == nil {
		return ""
	}
	return l.sink.path
}

// SessionID returns the id shared by every logger in this process.
func SessionID() string {
	return getSessionID()
}

// Close closes the underlying file. Safe to call multiple times.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	var err error
	l.sink.closeOnce.Do(func() {
		if l.sink.file != nil {
			err = l.sink.file.Close()
		}
	})
	return err
}
