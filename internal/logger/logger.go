// Package logger provides levelled logging for docqa.
// Messages at or above the configured level are written to stderr, either
// as "[LEVEL] message" lines or, in json format, as one JSON object per
// line for log collectors.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level is a logging severity.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu     sync.RWMutex
	level            = LevelInfo
	jsonOn bool
	output io.Writer = os.Stderr
	jsonH  slog.Handler
)

// SetVerbose switches between debug and info level.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		level = LevelDebug
	} else {
		level = LevelInfo
	}
	rebuild()
}

// IsVerbose returns true if debug messages are written.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return level == LevelDebug
}

// SetLevel sets the minimum level written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	rebuild()
}

// Configure applies a level name and a format ("text", "console" or "json").
func Configure(levelName, format string) error {
	l, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	var useJSON bool
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "console":
	case "json":
		useJSON = true
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	mu.Lock()
	defer mu.Unlock()
	level = l
	jsonOn = useJSON
	rebuild()
	return nil
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// rebuild recreates the JSON handler. Callers hold mu.
func rebuild() {
	if !jsonOn {
		jsonH = nil
		return
	}
	jsonH = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level.slog()})
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonH != nil {
		slog.New(jsonH).Log(context.Background(), l.slog(), msg)
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", l, msg)
}

// Debug prints a message at debug level.
func Debug(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(LevelError, format, args...)
}

// Section prints a section header at debug level. Sections are omitted
// in json format.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if level == LevelDebug && jsonH == nil {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
