// Package logging writes structured JSON logs for pharmacy-notify under the
// state directory. Console output stays in internal/colors.
package logging

import (
	"os"
	"path/filepath"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Enabled bool
	// Level is the minimum level written: debug, info, warn or error.
	Level string
	// MaxFiles is how many log files survive in the log directory.
	MaxFiles int
	// Command and PID tag every entry and name the file.
	Command string
	PID     int
	// Dir overrides LogDir.
	Dir string
}

// DefaultConfig returns a disabled Config for the current process.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		MaxFiles: 10,
		Command:  filepath.Base(os.Args[0]),
		PID:      os.Getpid(),
	}
}

// FromGlobalConfig reads the logging_* keys. debug forces the debug level;
// quiet raises it to error unless debug is also set.
func FromGlobalConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = config.GetBool("logging_enabled", false)
	cfg.Level = config.Get("logging_level", cfg.Level)
	cfg.MaxFiles = config.GetInt("logging_max_files", cfg.MaxFiles)
	if config.GetBool("debug", false) {
		cfg.Level = "debug"
	} else if config.GetBool("quiet", false) {
		cfg.Level = "error"
	}
	return cfg
}

// LogDir returns {state_dir}/logs, falling back to a directory under the
// system temp dir when the state dir cannot be written.
func LogDir() (string, error) {
	var dirs []string
	if stateDir := config.Get("state_dir", ""); stateDir != "" {
		dirs = append(dirs, filepath.Join(stateDir, "logs"))
	}
	dirs = append(dirs, filepath.Join(os.TempDir(), "pharmacy-notify", "logs"))

	var err error
	for _, dir := range dirs {
		if err = writableDir(dir); err == nil {
			return dir, nil
		}
	}
	return "", err
}

func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
