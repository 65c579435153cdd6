package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
)

// Logger is the structured logging interface shared by every component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a new logger with additional key-value pairs.
	With(args ...any) Logger
	// Shutdown flushes any buffered logs and releases resources.
	Shutdown() error
}

// clogLogger is the charmbracelet/log based implementation. Child loggers
// created by With share the parent's sink.
type clogLogger struct {
	clogger *clog.Logger
	sink    *sink
}

// sink owns the file behind a logger family.
type sink struct {
	mu     sync.Mutex
	closer io.Closer
	path   string
}

func (s *sink) close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Init initializes a new Logger with the given configuration.
// If cfg.Enabled is false, returns a no-op logger. Otherwise it opens a JSON
// log file, prunes older files down to cfg.MaxFiles and tags every entry
// with the pid and command.
func Init(cfg Config) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	logDir := cfg.Dir
	if logDir == "" {
		var err error
		if logDir, err = LogDir(); err != nil {
			return nil, fmt.Errorf("failed to determine log directory: %w", err)
		}
	} else if err := writableDir(logDir); err != nil {
		return nil, fmt.Errorf("log directory %s: %w", logDir, err)
	}

	path := filepath.Join(logDir, logFileName(cfg, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if err := pruneLogs(logDir, cfg.MaxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "log pruning failed: %v\n", err)
	}

	l := newClogLogger(f, cfg.Level, clog.JSONFormatter)
	l.sink = &sink{closer: f, path: path}
	l.clogger = l.clogger.With("pid", cfg.PID, "command", cfg.Command)
	return l, nil
}

// NewWriter returns a logger writing logfmt lines to w. Used for console
// output in the daemon and for capturing logs in tests.
func NewWriter(w io.Writer, level string) Logger {
	return newClogLogger(w, level, clog.LogfmtFormatter)
}

func newClogLogger(w io.Writer, level string, formatter clog.Formatter) *clogLogger {
	clogger := clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Level:           parseLevel(level),
	})
	clogger.SetFormatter(formatter)
	return &clogLogger{clogger: clogger}
}

// parseLevel converts a string level to clog.Level.
func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

func (l *clogLogger) Debug(msg string, args ...any) { l.log(clog.DebugLevel, msg, args) }
func (l *clogLogger) Info(msg string, args ...any)  { l.log(clog.InfoLevel, msg, args) }
func (l *clogLogger) Warn(msg string, args ...any)  { l.log(clog.WarnLevel, msg, args) }
func (l *clogLogger) Error(msg string, args ...any) { l.log(clog.ErrorLevel, msg, args) }

func (l *clogLogger) log(level clog.Level, msg string, args []any) {
	l.clogger.Log(level, msg, scrub(args)...)
}

func (l *clogLogger) With(args ...any) Logger {
	return &clogLogger{
		clogger: l.clogger.With(scrub(args)...),
		sink:    l.sink,
	}
}

func (l *clogLogger) Shutdown() error {
	return l.sink.close()
}

func (l *clogLogger) filePath() string {
	if l.sink == nil {
		return ""
	}
	return l.sink.path
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (n noopLogger) With(...any) Logger { return n }
func (noopLogger) Shutdown() error      { return nil }

// Nop returns a logger that discards everything.
func Nop() Logger { return noopLogger{} }

var (
	globalLogger     Logger
	globalLoggerOnce sync.Once
	globalLoggerMu   sync.RWMutex
)

// InitGlobal initializes the global logger using configuration from the global config.
// It is safe to call multiple times; only the first call initializes the logger.
func InitGlobal(command string) error {
	var err error
	globalLoggerOnce.Do(func() {
		cfg := FromGlobalConfig()
		if command != "" {
			cfg.Command = command
		}
		var l Logger
		l, err = Init(cfg)
		if err != nil {
			return
		}
		globalLoggerMu.Lock()
		globalLogger = l
		globalLoggerMu.Unlock()
		colors.SetLogger(l)
		if path := CurrentLogFile(); path != "" {
			colors.Debug("Logging to file:", path)
		}
	})
	return err
}

// GetGlobal returns the global logger, or a no-op logger if not initialized.
func GetGlobal() Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

// Component returns the global logger scoped to a component name.
func Component(name string) Logger {
	return GetGlobal().With("component", name)
}

// ShutdownGlobal shuts down the global logger.
func ShutdownGlobal() error {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Shutdown()
	}
	return nil
}

// CurrentLogFile returns the path to the current log file, or "" when file
// logging is disabled.
func CurrentLogFile() string {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	if impl, ok := globalLogger.(*clogLogger); ok {
		return impl.filePath()
	}
	return ""
}
