// Package colors provides color output utilities.
package colors

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Color constants
const (
	Red     = "\033[0;31m"
	Green   = "\033[0;32m"
	Yellow  = "\033[1;33m"
	Blue    = "\033[0;34m"
	Magenta = "\033[0;35m"
	Cyan    = "\033[0;36m"
	Reset   = "\033[0m"
)

const checkmark = "✓"

// Logger defines the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	debugEnabled    = false
	quietEnabled    = false
	inErrorHandling = false
	errorMutex      sync.RWMutex
	logger          Logger
	loggerMu        sync.RWMutex
)

func init() {
	if val := os.Getenv("PHARMACY_NOTIFY_DEBUG"); val == "true" || val == "1" {
		debugEnabled = true
	}
}

// SetDebug enables or disables debug output.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// SetQuiet suppresses info and success output when enabled.
func SetQuiet(enabled bool) {
	quietEnabled = enabled
}

// SetLogger sets the structured logger to mirror console output.
func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func currentLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// errorFallback logs an error message without using colors to avoid recursion.
func errorFallback(msg string) {
	fmt.Fprintf(os.Stderr, "%s\n", msg)
}

// write prints a formatted line and reports write failures once, falling
// back to plain stderr when the report itself fails.
func write(w io.Writer, format, msg, kind string) {
	_, err := fmt.Fprintf(w, format, msg)
	if err == nil {
		return
	}

	errorMutex.RLock()
	alreadyHandling := inErrorHandling
	errorMutex.RUnlock()
	if alreadyHandling {
		errorFallback("Warning: failed to print " + kind + " message: " + err.Error())
		return
	}

	errorMutex.Lock()
	inErrorHandling = true
	errorMutex.Unlock()
	defer func() {
		errorMutex.Lock()
		inErrorHandling = false
		errorMutex.Unlock()
	}()
	Warning("failed to print " + kind + " message: " + err.Error())
}

// Error outputs an error message to stderr.
func Error(msgs ...string) {
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Error(msg)
	}
	write(os.Stderr, Red+"Error:"+Reset+" %s"+Reset+"\n", msg, "error")
}

// Warning outputs a warning message to stderr.
func Warning(msgs ...string) {
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Warn(msg)
	}
	write(os.Stderr, Yellow+"Warning:"+Reset+" %s"+Reset+"\n", msg, "warning")
}

// Success outputs a success message to stdout.
func Success(msgs ...string) {
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Info(msg, "type", "success")
	}
	if quietEnabled {
		return
	}
	write(os.Stdout, Green+checkmark+Reset+" %s"+Reset+"\n", msg, "success")
}

// Info outputs an informational message to stdout.
func Info(msgs ...string) {
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Info(msg)
	}
	if quietEnabled {
		return
	}
	write(os.Stdout, Blue+"%s"+Reset+"\n", msg, "info")
}

// LogInfo outputs a log informational message to stderr.
func LogInfo(msgs ...string) {
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Info(msg)
	}
	if quietEnabled {
		return
	}
	write(os.Stderr, Blue+"%s"+Reset+"\n", msg, "log info")
}

// Debug outputs a debug message to stderr if debug is enabled.
func Debug(msgs ...string) {
	if !debugEnabled {
		return
	}
	msg := strings.Join(msgs, " ")
	if l := currentLogger(); l != nil {
		l.Debug(msg)
	}
	write(os.Stderr, Cyan+"Debug:"+Reset+" %s"+Reset+"\n", msg, "debug")
}
