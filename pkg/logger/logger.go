// Package logger provides component-tagged leveled logging for all clawcron
// components. It is a thin layer over log/slog with a tinted console handler;
// an optional plain-text file sink can mirror everything written to the
// console into the workspace logs directory.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level mirrors slog levels plus a dedicated JOB level for per-run
// execution records, which sorts above INFO so it survives default filtering.
type Level = slog.Level

const (
	DEBUG Level = slog.LevelDebug
	INFO  Level = slog.LevelInfo
	JOB   Level = slog.LevelInfo + 2
	WARN  Level = slog.LevelWarn
	ERROR Level = slog.LevelError
)

var (
	mu       sync.RWMutex
	levelVar = func() *slog.LevelVar {
		lv := &slog.LevelVar{}
		lv.Set(INFO)
		return lv
	}()
	root     = newConsoleLogger(os.Stderr)
	fileSink *os.File
)

func newConsoleLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.TimeOnly,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == JOB {
					a.Value = slog.StringValue("JOB")
				}
			}
			return a
		},
	}))
}

// SetLevel adjusts the minimum level emitted by the console handler.
func SetLevel(l Level) {
	levelVar.Set(l)
}

// SetOutput replaces the console writer. Used by tests and by the gateway
// when stderr is redirected.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = newConsoleLogger(w)
}

// EnableFileSink mirrors log lines into <dir>/clawcron.log. The file is
// appended across restarts so failures remain inspectable after the process
// exits.
func EnableFileSink(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "clawcron.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
	}
	fileSink = f
	return nil
}

// CloseFileSink releases the file sink, if any.
func CloseFileSink() {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}

func logAt(level Level, component, msg string, fields map[string]any) {
	mu.RLock()
	lg := root
	sink := fileSink
	mu.RUnlock()

	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "component", component)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	lg.Log(context.Background(), level, msg, attrs...)

	if sink != nil && level >= levelVar.Level() {
		fmt.Fprintf(sink, "[%s] %-5s [%s] %s%s\n",
			time.Now().Format(time.RFC3339), levelName(level), component, msg, renderFields(fields))
	}
}

func levelName(l Level) string {
	switch {
	case l == JOB:
		return "JOB"
	case l >= ERROR:
		return "ERROR"
	case l >= WARN:
		return "WARN"
	case l >= INFO:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func renderFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) { logAt(DEBUG, component, msg, nil) }

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]any) { logAt(DEBUG, component, msg, fields) }

// InfoC logs an info message for a component.
func InfoC(component, msg string) { logAt(INFO, component, msg, nil) }

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]any) { logAt(INFO, component, msg, fields) }

// JobCF records a job execution event. Always emitted at default level.
func JobCF(component, msg string, fields map[string]any) { logAt(JOB, component, msg, fields) }

// WarnC logs a warning for a component.
func WarnC(component, msg string) { logAt(WARN, component, msg, nil) }

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]any) { logAt(WARN, component, msg, fields) }

// ErrorC logs an error for a component.
func ErrorC(component, msg string) { logAt(ERROR, component, msg, nil) }

// ErrorCF logs an error with structured fields.
func ErrorCF(component, msg string, fields map[string]any) { logAt(ERROR, component, msg, fields) }
