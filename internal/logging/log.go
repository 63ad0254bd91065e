// Package logging provides the process-wide leveled logger used by the CLI.
// It is a thin slog front-end with printf-style helpers and a compact text
// handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

var (
	logLevel = new(slog.LevelVar)
	mu       sync.RWMutex
	logger   = slog.New(newTextHandler(os.Stderr, logLevel))
	nowFunc  = time.Now
)

// Fields attaches structured key-value context to a log line.
type Fields map[string]any

// SetLevel adjusts the minimum level emitted by the shared logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetOutput redirects the shared logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(newTextHandler(w, logLevel))
}

func Debugf(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func Infof(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func Warnf(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func Errorf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), nil)
}

func Fatalf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// Entry carries structured context to attach to a log line.
type Entry struct {
	attrs []slog.Attr
}

// WithFields starts an Entry with the given structured context.
func WithFields(fields Fields) *Entry {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return &Entry{attrs: attrs}
}

// WithError starts an Entry carrying err under the "error" key.
func WithError(err error) *Entry {
	return &Entry{attrs: []slog.Attr{slog.Any("error", err)}}
}

func (e *Entry) Debugf(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Infof(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Warnf(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Errorf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), e.attrs)
}

func logAt(level slog.Level, msg string, attrs []slog.Attr) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	if !l.Enabled(context.Background(), level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(nowFunc(), level, msg, pcs[0])
	if len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	_ = l.Handler().Handle(context.Background(), r)
}
