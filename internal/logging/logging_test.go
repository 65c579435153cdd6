package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("HOME", tmp)
	t.Setenv("PHARMACY_NOTIFY_DOTENV_PATH", filepath.Join(tmp, "none.env"))
	config.Load()
	return tmp
}

func TestConfigFromGlobal(t *testing.T) {
	setupTest(t)
	t.Setenv("PHARMACY_NOTIFY_LOGGING_ENABLED", "true")
	t.Setenv("PHARMACY_NOTIFY_LOGGING_LEVEL", "warn")
	t.Setenv("PHARMACY_NOTIFY_LOGGING_MAX_FILES", "5")
	config.Load()

	cfg := FromGlobalConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, "warn", cfg.Level)
	require.Equal(t, 5, cfg.MaxFiles)
	require.Equal(t, os.Getpid(), cfg.PID)
}

func TestLogLevelMapping(t *testing.T) {
	setupTest(t)

	t.Setenv("PHARMACY_NOTIFY_DEBUG", "true")
	t.Setenv("PHARMACY_NOTIFY_QUIET", "true")
	config.Load()
	require.Equal(t, "debug", FromGlobalConfig().Level)

	t.Setenv("PHARMACY_NOTIFY_DEBUG", "")
	config.Load()
	require.Equal(t, "error", FromGlobalConfig().Level)
}

func TestLogDir(t *testing.T) {
	tmp := setupTest(t)

	logDir, err := LogDir()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(logDir, tmp))
	require.Equal(t, filepath.Join(config.Get("state_dir", ""), "logs"), logDir)

	info, err := os.Stat(logDir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestInitDisabled(t *testing.T) {
	logger, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	require.IsType(t, noopLogger{}, logger)

	logger.Info("test")
	require.NoError(t, logger.Shutdown())
}

func TestLoggingWritesRedactedJSON(t *testing.T) {
	setupTest(t)
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Command = "run"

	logger, err := Init(cfg)
	require.NoError(t, err)

	logger.With("component", "gateway").Info("token registered", "fcm_token", "abc123", "device_type", "web")
	require.NoError(t, logger.Shutdown())

	logDir := filepath.Join(config.Get("state_dir", ""), "logs")
	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	require.True(t, strings.HasPrefix(name, logFilePrefix))
	require.Contains(t, name, fmt.Sprintf("_PID%d_run.log", os.Getpid()))

	data, err := os.ReadFile(filepath.Join(logDir, name))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "token registered", entry["msg"])
	require.Equal(t, "gateway", entry["component"])
	require.Equal(t, "[REDACTED]", entry["fcm_token"])
	require.Equal(t, "web", entry["device_type"])
}

func TestNewWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("poll failed", "status", 502)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "poll failed")
	require.Contains(t, out, "status=502")
}

func TestScrub(t *testing.T) {
	got := scrub([]any{"auth_token", "t", "user", "42", "vapid-key", "k", "title", "New order"})
	require.Equal(t, []any{"auth_token", redacted, "user", "42", "vapid-key", redacted, "title", "New order"}, got)

	// Segments must match whole words
	require.False(t, sensitiveKey("keyboard"))
	require.True(t, sensitiveKey("Authorization"))
}

func TestScrubCredentialValues(t *testing.T) {
	got := scrub([]any{
		"header", "Token 9f8e7d",
		"url", "http://127.0.0.1:8787/v1/push/abc123?x=1",
		"status", 404,
	})
	require.Equal(t, redacted, got[1])
	require.Equal(t, "http://127.0.0.1:8787/v1/push/[REDACTED]?x=1", got[3])
	require.Equal(t, 404, got[5])
	require.Equal(t, "Tokens are fine", scrubValue("Tokens are fine"))
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.log", logFilePrefix, i))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.log"), []byte("x"), 0600))

	require.NoError(t, pruneLogs(dir, 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{logFilePrefix + "3.log", logFilePrefix + "4.log", "other.log"}, names)
}

func TestInitKeepsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, logFilePrefix+"old.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	logger, err := Init(Config{Enabled: true, Level: "info", MaxFiles: 1, Command: "poll", PID: 7, Dir: dir})
	require.NoError(t, err)
	logger.Info("polling started")
	require.NoError(t, logger.Shutdown())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), "_PID7_poll.log")
}
