// Package logging wraps klog with the level names used by the CLI.
package logging

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"k8s.io/klog/v2"
)

// Level represents severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// debugVerbosity is the klog -v value that enables Debugf.
const debugVerbosity = 1

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var currentLevel = int32(LevelInfo)

var klogFlags = flag.NewFlagSet("klog", flag.ContinueOnError)

func init() {
	klog.InitFlags(klogFlags)
	// Every severity goes to the configured writer exactly once and
	// nothing leaks to stderr behind the writer's back.
	_ = klogFlags.Set("one_output", "true")
	_ = klogFlags.Set("stderrthreshold", "FATAL")
}

// SetLevel parses and sets the global level. Unknown names are rejected.
func SetLevel(s string) error {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return fmt.Errorf("unknown log level %q", s)
	}
	v := "0"
	if l == LevelDebug {
		v = fmt.Sprint(debugVerbosity)
	}
	if err := klogFlags.Set("v", v); err != nil {
		return fmt.Errorf("failed to set verbosity: %w", err)
	}
	atomic.StoreInt32(&currentLevel, int32(l))
	return nil
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	klog.LogToStderr(false)
	klog.SetOutput(w)
}

// ToFile routes log output to path so it does not draw over the TUI.
// The returned closer must be closed on exit.
func ToFile(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "worldboard")
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	SetOutput(f)
	return flushCloser{f}, nil
}

type flushCloser struct{ io.Closer }

func (c flushCloser) Close() error {
	klog.Flush()
	return c.Closer.Close()
}

func enabled(l Level) bool {
	return Level(atomic.LoadInt32(&currentLevel)) <= l
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) {
	if klog.V(debugVerbosity).Enabled() {
		klog.InfofDepth(1, format, args...)
	}
}

// Infof logs at info level.
func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		klog.InfofDepth(1, format, args...)
	}
}

// Warnf logs at warn level.
func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		klog.WarningfDepth(1, format, args...)
	}
}

// Errorf logs at error level.
func Errorf(format string, args ...any) {
	klog.ErrorfDepth(1, format, args...)
}

// Info logs a structured message at info level.
func Info(msg string, kv ...any) {
	if enabled(LevelInfo) {
		klog.InfoSDepth(1, msg, kv...)
	}
}

// Error logs a structured error.
func Error(err error, msg string, kv ...any) {
	klog.ErrorSDepth(1, err, msg, kv...)
}
