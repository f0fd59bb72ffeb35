// Package logging wraps charmbracelet/log with package-level helpers so every
// component logs key/value pairs through one configured logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu sync.RWMutex

	// Logger is the global logger instance. Nil until Init is called, in which
	// case the helpers below are no-ops.
	Logger *log.Logger
)

// Options controls how Init builds the global logger.
type Options struct {
	Level string // debug, info, warn, error
	JSON  bool   // JSON lines instead of the text formatter
}

// Init installs the global logger writing to w. A nil writer means stderr.
func Init(w io.Writer, opts Options) error {
	if w == nil {
		w = os.Stderr
	}

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		level = parsed
	}

	lo := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	}
	if opts.JSON {
		lo.Formatter = log.JSONFormatter
	}

	l := log.NewWithOptions(w, lo)

	mu.Lock()
	Logger = l
	mu.Unlock()
	return nil
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Logger
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if l := current(); l != nil {
		l.Info(msg, keyvals...)
	}
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if l := current(); l != nil {
		l.Debug(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if l := current(); l != nil {
		l.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if l := current(); l != nil {
		l.Error(msg, keyvals...)
	}
}

// Fatal logs an error message and exits. Without a configured logger it
// still exits.
func Fatal(msg string, keyvals ...interface{}) {
	if l := current(); l != nil {
		l.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}

// WithPrefix returns a logger with a prefix. Before Init it returns a logger
// that discards everything, never nil.
func WithPrefix(prefix string) *log.Logger {
	if l := current(); l != nil {
		return l.WithPrefix(prefix)
	}
	return log.New(io.Discard)
}
