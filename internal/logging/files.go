package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const logFilePrefix = "pharmacy-notify_"

// logFileName names the file of one process run.
func logFileName(cfg Config, started time.Time) string {
	return fmt.Sprintf("%s%s_PID%d_%s.log",
		logFilePrefix,
		started.Format("20060102_150405"),
		cfg.PID,
		strings.ReplaceAll(cfg.Command, " ", "_"))
}

// pruneLogs keeps the keep most recently modified log files in dir.
// Files not named by logFileName are left alone.
func pruneLogs(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	if err != nil || len(paths) <= keep {
		return err
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	files := make([]logFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, logFile{path: p, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	var errs []error
	for _, f := range files[min(keep, len(files)):] {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
